package selection

import (
	"fmt"
	"sync"

	"briefboard/internal/models"
	"briefboard/internal/util"
)

// Resolver decides which records the dashboard renders. The live batch is
// retained while a history record is being viewed and becomes the view
// again once that selection is cleared.
type Resolver struct {
	mu          sync.RWMutex
	view        View
	live        []models.SummaryRecord
	searchTerm  string
	historyOpen bool
}

func NewResolver() *Resolver {
	return &Resolver{view: Idle{}}
}

// Select makes one persisted record the active view and closes the history
// panel. The live batch stays in memory.
func (r *Resolver) Select(rec models.SummaryRecord) error {
	if !rec.Persisted() {
		return fmt.Errorf("select %q: %w", rec.Filename, util.ErrNotFound)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view = Viewing{Record: rec}
	r.historyOpen = false
	return nil
}

// ClearSelection drops a history selection, falling back to the retained
// live batch or Idle.
func (r *Resolver) ClearSelection() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.view.(Viewing); ok {
		r.view = r.fallbackLocked()
	}
}

// BeginSubmission clears both the selection and the previous live batch.
func (r *Resolver) BeginSubmission() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view = Idle{}
	r.live = nil
}

// AppendResult adds one submission result; the live batch becomes the
// active view, superseding any history selection.
func (r *Resolver) AppendResult(rec models.LiveBatchResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.live = append(r.live, rec)
	r.view = Batch{Records: cloneRecords(r.live)}
}

// RecordDeleted reacts to the deletion of id. Deleting the viewed record
// reverts to the retained live batch, or to Idle when there is none.
func (r *Resolver) RecordDeleted(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.view.(Viewing); ok && v.Record.ID == id {
		r.view = r.fallbackLocked()
	}
}

// Reconcile aligns a history selection with a freshly refreshed list: the
// viewed record is replaced by its refreshed copy, or dropped as if
// deleted when it no longer exists.
func (r *Resolver) Reconcile(records []models.SummaryRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.view.(Viewing)
	if !ok {
		return
	}
	for _, rec := range records {
		if rec.ID == v.Record.ID {
			r.view = Viewing{Record: rec}
			return
		}
	}
	r.view = r.fallbackLocked()
}

func (r *Resolver) View() View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if b, ok := r.view.(Batch); ok {
		return Batch{Records: cloneRecords(b.Records)}
	}
	return r.view
}

// ActiveDisplay returns the records to render: the selected record alone,
// otherwise the live batch (possibly empty).
func (r *Resolver) ActiveDisplay() []models.SummaryRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch v := r.view.(type) {
	case Viewing:
		return []models.SummaryRecord{v.Record}
	case Batch:
		return cloneRecords(v.Records)
	default:
		return []models.SummaryRecord{}
	}
}

// LiveBatch returns the retained live batch whether or not it is the
// active view.
func (r *Resolver) LiveBatch() []models.SummaryRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneRecords(r.live)
}

func (r *Resolver) SetHistoryOpen(open bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.historyOpen = open
}

func (r *Resolver) HistoryOpen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.historyOpen
}

func (r *Resolver) fallbackLocked() View {
	if len(r.live) > 0 {
		return Batch{Records: cloneRecords(r.live)}
	}
	return Idle{}
}

func cloneRecords(in []models.SummaryRecord) []models.SummaryRecord {
	out := make([]models.SummaryRecord, len(in))
	copy(out, in)
	return out
}
