package remote

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"briefboard/internal/models"
	"briefboard/internal/util"
)

const fakeWordLimit = 1500

var fakeSupported = []string{".txt", ".pdf", ".docx"}

var fakeDetoxCategories = []string{"toxicity", "severe_toxicity", "obscene", "identity_attack", "insult", "threat", "sexual_explicit"}

type fakeRow struct {
	id        int
	user      string
	filename  string
	summary   string
	metadata  string
	createdAt time.Time
}

// FakeService is a deterministic in-process stand-in for the summarization
// service. Scores are derived from a hash of the uploaded content, so the
// same input always yields the same record.
type FakeService struct {
	mu     sync.Mutex
	nextID int
	rows   []fakeRow
	now    func() time.Time
}

func NewFakeService() *FakeService {
	return &FakeService{nextID: 1, now: time.Now}
}

func (f *FakeService) ListSummaries(ctx context.Context, sess models.Session) ([]RawRecord, error) {
	_ = ctx
	if sess.Token == "" {
		return nil, fmt.Errorf("list summaries: %w: missing token", util.ErrAuth)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]RawRecord, 0)
	for i := len(f.rows) - 1; i >= 0; i-- {
		row := f.rows[i]
		if row.user != sess.Username {
			continue
		}
		summary := row.summary
		meta, _ := json.Marshal(row.metadata)
		out = append(out, RawRecord{
			ID:        json.RawMessage(strconv.Itoa(row.id)),
			UserID:    row.user,
			Filename:  row.filename,
			Summary:   &summary,
			CreatedAt: row.createdAt.Format("2006-01-02 15:04:05"),
			Metadata:  meta,
		})
	}
	return out, nil
}

func (f *FakeService) Summarize(ctx context.Context, sess models.Session, req SummarizeRequest) ([]FileOutcome, error) {
	_ = ctx
	out := make([]FileOutcome, 0, len(req.Files))
	for _, file := range req.Files {
		out = append(out, f.summarizeOne(sess.Username, req.Model, file))
	}
	return out, nil
}

func (f *FakeService) DeleteSummary(ctx context.Context, sess models.Session, id string) error {
	_ = ctx
	if sess.Token == "" {
		return fmt.Errorf("delete summary: %w: missing token", util.ErrAuth)
	}
	n, err := strconv.Atoi(id)
	if err != nil {
		return fmt.Errorf("delete summary %s: invalid id", id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, row := range f.rows {
		if row.id == n {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *FakeService) summarizeOne(user, model string, file Upload) FileOutcome {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	supported := false
	for _, s := range fakeSupported {
		if ext == s {
			supported = true
		}
	}
	if !supported {
		return FileOutcome{Filename: file.Filename, Error: "file not supported", Failed: true}
	}
	text := util.SanitizeText(string(file.Content))
	words := strings.Fields(text)
	if len(words) == 0 {
		return FileOutcome{Filename: file.Filename, Error: "Error: no extractable text", Failed: true}
	}
	if len(words) > fakeWordLimit {
		return FileOutcome{Filename: file.Filename, Error: fmt.Sprintf("Error: Document exceeds %d-word limit (%d words).", fakeWordLimit, len(words)), Failed: true}
	}

	limit := len(words)
	if limit > 40 {
		limit = 40
	}
	summary := strings.Join(words[:limit], " ")
	metadata := fakeMetadata(file.Filename, model, file.Content)
	metaJSON, _ := json.Marshal(metadata)

	f.mu.Lock()
	f.rows = append(f.rows, fakeRow{
		id:        f.nextID,
		user:      user,
		filename:  file.Filename,
		summary:   summary,
		metadata:  string(metaJSON),
		createdAt: f.now(),
	})
	f.nextID++
	f.mu.Unlock()

	return FileOutcome{Filename: file.Filename, Summary: summary, Metadata: metaJSON}
}

func fakeMetadata(filename, model string, content []byte) map[string]any {
	seed := sha256.Sum256(append([]byte(model+":"), content...))
	quality := map[string]any{}
	total := 0
	for i, crit := range []string{"Consistency", "Coverage", "Coherence", "Fluency"} {
		score := int(seed[i]%10) + 1
		total += score
		quality[crit] = map[string]any{"score": score, "justification": "deterministic score"}
	}
	quality["Overall"] = map[string]any{"score": int(math.Round(float64(total) / 4)), "justification": "average of facets"}

	report := map[string]float64{}
	summary := map[string]float64{}
	for i, cat := range fakeDetoxCategories {
		r := float64(seed[8+i]) / 255
		s := r * float64(seed[16+i]%100) / 100
		report[cat] = r
		summary[cat] = s
	}
	report["overall"] = mean(report)
	summary["overall"] = mean(summary)
	reduction := map[string]float64{}
	for cat, r := range report {
		if r > 0 {
			reduction[cat] = (r - summary[cat]) / r * 100
		} else {
			reduction[cat] = 0
		}
	}
	return map[string]any{
		"filename":             filename,
		"model":                model,
		"quality_scores":       quality,
		"detox_report":         report,
		"detox_summary":        summary,
		"percentage_reduction": reduction,
	}
}

func mean(m map[string]float64) float64 {
	if len(m) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range m {
		sum += v
	}
	return sum / float64(len(m))
}
