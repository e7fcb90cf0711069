package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"briefboard/internal/audit"
	"briefboard/internal/models"
	"briefboard/internal/remote"

	"go.uber.org/zap"
)

// Mirror durably keeps the latest snapshot of a user's history.
type Mirror interface {
	ReplaceSnapshot(ctx context.Context, username string, records []models.SummaryRecord) error
}

// Snapshot is an immutable view of the record list. Version increases by one
// on every successful refresh; derived statistics keyed by an older version
// are stale.
type Snapshot struct {
	Records     []models.SummaryRecord
	Version     uint64
	RefreshedAt time.Time
}

// Repository owns the canonical list of a user's summarization records.
// The list is only ever replaced wholesale, so concurrent readers observe
// either the previous or the next snapshot. Refresh and Remove must not be
// called concurrently with each other.
type Repository struct {
	svc    remote.Service
	mirror Mirror
	audit  audit.Recorder
	log    *zap.Logger
	now    func() time.Time
	snap   atomic.Pointer[Snapshot]
}

type Option func(*Repository)

func WithMirror(m Mirror) Option {
	return func(r *Repository) { r.mirror = m }
}

func WithAudit(a audit.Recorder) Option {
	return func(r *Repository) {
		if a != nil {
			r.audit = a
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Repository) {
		if l != nil {
			r.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

func New(svc remote.Service, opts ...Option) *Repository {
	r := &Repository{
		svc:   svc,
		audit: audit.Nop(),
		log:   zap.NewNop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.snap.Store(&Snapshot{Records: []models.SummaryRecord{}})
	return r
}

// Refresh re-reads every record of the session's user and swaps the list
// in one step. Records whose optional fields fail to decode are kept with
// those fields absent. On error the current snapshot is left untouched.
func (r *Repository) Refresh(ctx context.Context, sess models.Session) ([]models.SummaryRecord, error) {
	raws, err := r.svc.ListSummaries(ctx, sess)
	r.recordCall(ctx, audit.Call{Operation: audit.OpRefresh, Username: sess.Username}, err)
	if err != nil {
		return nil, fmt.Errorf("refresh history: %w", err)
	}

	records := make([]models.SummaryRecord, 0, len(raws))
	for _, raw := range raws {
		rec, err := remote.Normalize(raw)
		if err != nil {
			r.log.Warn("record metadata degraded",
				zap.String("user", sess.Username),
				zap.String("record_id", rec.ID),
				zap.String("filename", rec.Filename),
				zap.Error(err),
			)
		}
		records = append(records, rec)
	}

	prev := r.snap.Load()
	next := &Snapshot{Records: records, Version: prev.Version + 1, RefreshedAt: r.now()}
	r.snap.Store(next)
	r.log.Info("history refreshed",
		zap.String("user", sess.Username),
		zap.Int("count", len(records)),
		zap.Uint64("version", next.Version),
	)

	if r.mirror != nil {
		if err := r.mirror.ReplaceSnapshot(ctx, sess.Username, records); err != nil {
			r.log.Warn("mirror snapshot failed", zap.String("user", sess.Username), zap.Error(err))
		}
	}
	return cloneRecords(records), nil
}

// Remove deletes one record remotely and then refreshes regardless of the
// delete outcome. A delete failure is returned; the list only changes
// through the refresh.
func (r *Repository) Remove(ctx context.Context, sess models.Session, id string) error {
	delErr := r.svc.DeleteSummary(ctx, sess, id)
	r.recordCall(ctx, audit.Call{Operation: audit.OpDelete, Username: sess.Username, RecordID: id}, delErr)
	if delErr != nil {
		r.log.Warn("delete failed", zap.String("user", sess.Username), zap.String("record_id", id), zap.Error(delErr))
		delErr = fmt.Errorf("remove record %s: %w", id, delErr)
	}
	_, refreshErr := r.Refresh(ctx, sess)
	return errors.Join(delErr, refreshErr)
}

func (r *Repository) Snapshot() Snapshot {
	s := r.snap.Load()
	return Snapshot{Records: cloneRecords(s.Records), Version: s.Version, RefreshedAt: s.RefreshedAt}
}

func (r *Repository) Records() []models.SummaryRecord {
	return cloneRecords(r.snap.Load().Records)
}

func (r *Repository) Version() uint64 {
	return r.snap.Load().Version
}

func (r *Repository) Find(id string) (models.SummaryRecord, bool) {
	if id == "" {
		return models.SummaryRecord{}, false
	}
	for _, rec := range r.snap.Load().Records {
		if rec.ID == id {
			return rec, true
		}
	}
	return models.SummaryRecord{}, false
}

// History returns the records newest first; records sharing a timestamp
// keep their server order.
func (r *Repository) History() []models.SummaryRecord {
	return NewestFirst(r.snap.Load().Records)
}

func NewestFirst(records []models.SummaryRecord) []models.SummaryRecord {
	out := cloneRecords(records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *Repository) recordCall(ctx context.Context, call audit.Call, err error) {
	call.Status = audit.StatusOK
	if err != nil {
		call.Status = audit.StatusFailed
		call.ErrorType = string(remote.ClassifyError(err))
	}
	if aerr := r.audit.Record(ctx, call); aerr != nil {
		r.log.Debug("audit record failed", zap.String("operation", call.Operation), zap.Error(aerr))
	}
}

func cloneRecords(in []models.SummaryRecord) []models.SummaryRecord {
	out := make([]models.SummaryRecord, len(in))
	copy(out, in)
	return out
}
