package remote

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"briefboard/internal/models"
	"briefboard/internal/util"
)

// RawRecord is a history entry as the service returns it. The structured
// fields may arrive either as JSON values or as JSON-encoded strings, and
// may live at the top level or inside the metadata envelope.
type RawRecord struct {
	ID                  json.RawMessage `json:"id"`
	UserID              string          `json:"user_id,omitempty"`
	Filename            string          `json:"filename"`
	Summary             *string         `json:"summary"`
	Error               *string         `json:"error,omitempty"`
	Model               string          `json:"model,omitempty"`
	CreatedAt           string          `json:"created_at"`
	Metadata            json.RawMessage `json:"metadata,omitempty"`
	QualityScores       json.RawMessage `json:"quality_scores,omitempty"`
	DetoxReport         json.RawMessage `json:"detox_report,omitempty"`
	DetoxSummary        json.RawMessage `json:"detox_summary,omitempty"`
	PercentageReduction json.RawMessage `json:"percentage_reduction,omitempty"`

	// decodeErr holds scalar fields that arrived with an unexpected type.
	decodeErr error
}

type rawFields struct {
	ID                  json.RawMessage `json:"id"`
	UserID              json.RawMessage `json:"user_id"`
	Filename            json.RawMessage `json:"filename"`
	Summary             json.RawMessage `json:"summary"`
	Error               json.RawMessage `json:"error"`
	Model               json.RawMessage `json:"model"`
	CreatedAt           json.RawMessage `json:"created_at"`
	Metadata            json.RawMessage `json:"metadata"`
	QualityScores       json.RawMessage `json:"quality_scores"`
	DetoxReport         json.RawMessage `json:"detox_report"`
	DetoxSummary        json.RawMessage `json:"detox_summary"`
	PercentageReduction json.RawMessage `json:"percentage_reduction"`
}

// UnmarshalJSON only fails when data is not an object. A scalar field of the
// wrong type is left empty and reported by Normalize.
func (r *RawRecord) UnmarshalJSON(data []byte) error {
	var f rawFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	var errs []error
	optional := func(name string, raw json.RawMessage) *string {
		if isAbsent(raw) {
			return nil
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return nil
		}
		return &s
	}
	plain := func(name string, raw json.RawMessage) string {
		if s := optional(name, raw); s != nil {
			return *s
		}
		return ""
	}
	createdAt, err := decodeCreatedAt(f.CreatedAt)
	if err != nil {
		errs = append(errs, fmt.Errorf("created_at: %w", err))
	}
	*r = RawRecord{
		ID:                  f.ID,
		UserID:              plain("user_id", f.UserID),
		Filename:            plain("filename", f.Filename),
		Summary:             optional("summary", f.Summary),
		Error:               optional("error", f.Error),
		Model:               plain("model", f.Model),
		CreatedAt:           createdAt,
		Metadata:            f.Metadata,
		QualityScores:       f.QualityScores,
		DetoxReport:         f.DetoxReport,
		DetoxSummary:        f.DetoxSummary,
		PercentageReduction: f.PercentageReduction,
	}
	r.decodeErr = errors.Join(errs...)
	return nil
}

// decodeCreatedAt accepts a timestamp string or Unix epoch seconds
// (milliseconds when the value is too large to be seconds).
func decodeCreatedAt(raw json.RawMessage) (string, error) {
	if isAbsent(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("want string or number, got %s", bytes.TrimSpace(raw))
	}
	if n > 1e12 {
		return time.UnixMilli(int64(n)).UTC().Format(time.RFC3339Nano), nil
	}
	sec := int64(n)
	return time.Unix(sec, int64((n-float64(sec))*1e9)).UTC().Format(time.RFC3339Nano), nil
}

type metadataEnvelope struct {
	Filename            string          `json:"filename"`
	Model               string          `json:"model"`
	QualityScores       json.RawMessage `json:"quality_scores"`
	DetoxReport         json.RawMessage `json:"detox_report"`
	DetoxSummary        json.RawMessage `json:"detox_summary"`
	PercentageReduction json.RawMessage `json:"percentage_reduction"`
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// Normalize converts a raw history entry into a SummaryRecord. The record is
// always returned; a non-nil error lists the optional fields that failed to
// decode and were left absent (it wraps util.ErrMalformedMetadata).
func Normalize(raw RawRecord) (models.SummaryRecord, error) {
	rec := models.SummaryRecord{
		ID:        decodeID(raw.ID),
		Filename:  raw.Filename,
		CreatedAt: parseTime(raw.CreatedAt),
		ModelName: strings.TrimSpace(raw.Model),
	}

	var errs []error
	if raw.decodeErr != nil {
		errs = append(errs, raw.decodeErr)
	}
	env, err := decodeEnvelope(raw.Metadata)
	if err != nil {
		errs = append(errs, fmt.Errorf("metadata: %w", err))
	}
	if rec.Filename == "" {
		rec.Filename = env.Filename
	}
	if rec.ModelName == "" {
		rec.ModelName = strings.TrimSpace(env.Model)
	}
	if rec.ModelName == "" {
		rec.ModelName = models.UnknownModel
	}

	errs = append(errs, applyStructured(&rec, env, structuredFields{
		QualityScores:       raw.QualityScores,
		DetoxReport:         raw.DetoxReport,
		DetoxSummary:        raw.DetoxSummary,
		PercentageReduction: raw.PercentageReduction,
	})...)

	switch {
	case raw.Error != nil:
		msg := *raw.Error
		rec.ErrorText = &msg
	case raw.Summary != nil:
		s := *raw.Summary
		rec.SummaryText = &s
	default:
		empty := ""
		rec.SummaryText = &empty
	}

	if len(errs) > 0 {
		return rec, fmt.Errorf("%w: %w", util.ErrMalformedMetadata, errors.Join(errs...))
	}
	return rec, nil
}

// OutcomeRecord converts one per-file reply of the summarize call into a
// live record stamped with at.
func OutcomeRecord(out FileOutcome, model string, at time.Time) (models.SummaryRecord, error) {
	if out.Failed {
		return models.NewFailedRecord(out.Filename, model, out.Error, at), nil
	}
	raw := RawRecord{
		Filename: out.Filename,
		Summary:  &out.Summary,
		Metadata: out.Metadata,
	}
	rec, err := Normalize(raw)
	rec.CreatedAt = at
	if rec.ModelName == models.UnknownModel && model != "" {
		rec.ModelName = model
	}
	return rec, err
}

type structuredFields struct {
	QualityScores       json.RawMessage
	DetoxReport         json.RawMessage
	DetoxSummary        json.RawMessage
	PercentageReduction json.RawMessage
}

// applyStructured decodes the four optional mappings. Top-level values take
// precedence over the envelope; each field degrades independently.
func applyStructured(rec *models.SummaryRecord, env metadataEnvelope, top structuredFields) []error {
	var errs []error
	pick := func(a, b json.RawMessage) json.RawMessage {
		if isAbsent(a) {
			return b
		}
		return a
	}

	var quality map[string]models.QualityScore
	if ok, err := decodeField(pick(top.QualityScores, env.QualityScores), &quality); err != nil {
		errs = append(errs, fmt.Errorf("quality_scores: %w", err))
	} else if ok {
		rec.QualityScores = lowerKeys(quality)
	}
	if m, err := decodeFloatMap(pick(top.DetoxReport, env.DetoxReport)); err != nil {
		errs = append(errs, fmt.Errorf("detox_report: %w", err))
	} else {
		rec.DetoxReport = m
	}
	if m, err := decodeFloatMap(pick(top.DetoxSummary, env.DetoxSummary)); err != nil {
		errs = append(errs, fmt.Errorf("detox_summary: %w", err))
	} else {
		rec.DetoxSummary = m
	}
	if m, err := decodeFloatMap(pick(top.PercentageReduction, env.PercentageReduction)); err != nil {
		errs = append(errs, fmt.Errorf("percentage_reduction: %w", err))
	} else {
		rec.PercentageReduction = m
	}
	return errs
}

func decodeEnvelope(raw json.RawMessage) (metadataEnvelope, error) {
	var env metadataEnvelope
	if _, err := decodeField(raw, &env); err != nil {
		return metadataEnvelope{}, err
	}
	return env, nil
}

func decodeFloatMap(raw json.RawMessage) (map[string]float64, error) {
	var m map[string]float64
	ok, err := decodeField(raw, &m)
	if err != nil || !ok {
		return nil, err
	}
	if m == nil {
		m = map[string]float64{}
	}
	return m, nil
}

// decodeField unmarshals raw into dst, unwrapping one level of string
// encoding. It reports false when the field is absent.
func decodeField(raw json.RawMessage, dst any) (bool, error) {
	if isAbsent(raw) {
		return false, nil
	}
	raw = bytes.TrimSpace(raw)
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return false, err
		}
		inner = strings.TrimSpace(inner)
		if inner == "" || inner == "null" {
			return false, nil
		}
		raw = json.RawMessage(inner)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, err
	}
	return true, nil
}

func isAbsent(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

// lowerKeys folds criterion names to lowercase. When two spellings collide
// the key already in lowercase wins, otherwise the lexically smallest one.
func lowerKeys(in map[string]models.QualityScore) map[string]models.QualityScore {
	out := make(map[string]models.QualityScore, len(in))
	from := make(map[string]string, len(in))
	for k, v := range in {
		key := strings.ToLower(strings.TrimSpace(k))
		if prev, seen := from[key]; seen && !preferKey(k, prev, key) {
			continue
		}
		out[key] = v
		from[key] = k
	}
	return out
}

func preferKey(candidate, current, folded string) bool {
	if (current == folded) != (candidate == folded) {
		return candidate == folded
	}
	return candidate < current
}

func decodeID(raw json.RawMessage) string {
	if isAbsent(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}
