package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"briefboard/internal/audit"
	"briefboard/internal/models"
	"briefboard/internal/remote"
	"briefboard/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BatchSink receives the live batch as it is produced.
type BatchSink interface {
	BeginSubmission()
	AppendResult(rec models.LiveBatchResult)
}

type Refresher interface {
	Refresh(ctx context.Context, sess models.Session) ([]models.SummaryRecord, error)
}

type Request struct {
	Model string
	Text  string
	Files []Input
}

type Result struct {
	BatchID    string                       `json:"batch_id" yaml:"batch_id"`
	Model      string                       `json:"model" yaml:"model"`
	Records    []models.SummaryRecord       `json:"records" yaml:"records"`
	Rejections []models.ValidationRejection `json:"rejections" yaml:"rejections"`
}

// Failed counts the records of the batch that carry an error.
func (r Result) Failed() int {
	n := 0
	for _, rec := range r.Records {
		if rec.Failed() {
			n++
		}
	}
	return n
}

// Pipeline submits inputs one at a time, in order, and refreshes the
// repository once when the batch is done.
type Pipeline struct {
	svc          remote.Service
	audit        audit.Recorder
	log          *zap.Logger
	now          func() time.Time
	maxBytes     int64
	defaultModel string
}

type Option func(*Pipeline)

func WithAudit(a audit.Recorder) Option {
	return func(p *Pipeline) {
		if a != nil {
			p.audit = a
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func WithMaxBytes(n int64) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxBytes = n
		}
	}
}

func WithDefaultModel(model string) Option {
	return func(p *Pipeline) { p.defaultModel = strings.TrimSpace(model) }
}

func New(svc remote.Service, opts ...Option) *Pipeline {
	p := &Pipeline{
		svc:      svc,
		audit:    audit.Nop(),
		log:      zap.NewNop(),
		now:      time.Now,
		maxBytes: DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Prepare assembles and validates a request without touching any state.
// It fails only for an empty submission.
func (p *Pipeline) Prepare(req Request) (string, []Input, []models.ValidationRejection, error) {
	inputs, err := Assemble(req.Text, req.Files, p.now())
	if err != nil {
		return "", nil, nil, err
	}
	accepted, rejected := Validate(inputs, p.maxBytes)
	for _, r := range rejected {
		p.log.Info("input rejected", zap.String("filename", r.Filename), zap.String("reason", r.Reason))
	}
	return p.ResolveModel(req.Model), accepted, rejected, nil
}

func (p *Pipeline) ResolveModel(model string) string {
	if m := strings.TrimSpace(model); m != "" {
		return m
	}
	if p.defaultModel != "" {
		return p.defaultModel
	}
	return models.UnknownModel
}

// Run executes one submission. The sink is reset before the first remote
// call and receives every outcome in submission order; one input failing
// never stops the rest. The refresher runs exactly once at the end, even
// when every input was rejected. An authorization failure or a failed
// refresh is returned alongside the full result.
func (p *Pipeline) Run(ctx context.Context, sess models.Session, req Request, sink BatchSink, refresher Refresher) (Result, error) {
	model, accepted, rejected, err := p.Prepare(req)
	if err != nil {
		return Result{}, err
	}
	res := Result{
		BatchID:    uuid.NewString(),
		Model:      model,
		Records:    make([]models.SummaryRecord, 0, len(accepted)),
		Rejections: rejected,
	}
	sink.BeginSubmission()

	var authErr error
	for _, in := range accepted {
		rec, err := p.SubmitOne(ctx, sess, model, in)
		if errors.Is(err, util.ErrAuth) && authErr == nil {
			authErr = err
		}
		sink.AppendResult(rec)
		res.Records = append(res.Records, rec)
	}
	p.log.Info("submission finished",
		zap.String("user", sess.Username),
		zap.String("batch_id", res.BatchID),
		zap.Int("submitted", len(res.Records)),
		zap.Int("failed", res.Failed()),
		zap.Int("rejected", len(rejected)),
	)

	var refreshErr error
	if _, err := refresher.Refresh(ctx, sess); err != nil {
		refreshErr = fmt.Errorf("refresh after submission: %w", err)
	}
	return res, errors.Join(authErr, refreshErr)
}

// SubmitOne makes a single remote call for one input and always yields a
// record. The error reports why the record carries an error text.
func (p *Pipeline) SubmitOne(ctx context.Context, sess models.Session, model string, in Input) (models.LiveBatchResult, error) {
	outcomes, err := p.svc.Summarize(ctx, sess, remote.SummarizeRequest{
		Model: model,
		Files: []remote.Upload{{Filename: in.Filename, Content: in.Content}},
	})
	if err == nil && len(outcomes) == 0 {
		err = fmt.Errorf("%w: empty reply", util.ErrNetwork)
	}

	var rec models.SummaryRecord
	switch {
	case err != nil:
		rec = models.NewFailedRecord(in.Filename, model, err.Error(), p.now())
	case outcomes[0].Failed:
		rec = models.NewFailedRecord(outcomes[0].Filename, model, outcomes[0].Error, p.now())
		err = fmt.Errorf("%s: %w: %s", outcomes[0].Filename, util.ErrPartialBatch, outcomes[0].Error)
	default:
		var decodeErr error
		rec, decodeErr = remote.OutcomeRecord(outcomes[0], model, p.now())
		if decodeErr != nil {
			p.log.Warn("result metadata degraded", zap.String("filename", rec.Filename), zap.Error(decodeErr))
		}
	}

	call := audit.Call{
		Operation: audit.OpSummarize,
		Username:  sess.Username,
		Filename:  in.Filename,
		Model:     model,
		Status:    audit.StatusOK,
	}
	status := "ok"
	if err != nil {
		call.Status = audit.StatusFailed
		call.ErrorType = string(remote.ClassifyError(err))
		status = call.ErrorType
	}
	if aerr := p.audit.Record(ctx, call); aerr != nil {
		p.log.Debug("audit record failed", zap.Error(aerr))
	}
	p.log.Info("input processed",
		zap.String("user", sess.Username),
		zap.String("filename", in.Filename),
		zap.String("model", model),
		zap.String("status", status),
	)
	return rec, err
}
