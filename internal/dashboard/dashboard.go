package dashboard

import (
	"context"
	"fmt"
	"sync"

	"briefboard/internal/models"
	"briefboard/internal/ranking"
	"briefboard/internal/repository"
	"briefboard/internal/selection"
	"briefboard/internal/submission"
	"briefboard/internal/util"

	"go.uber.org/zap"
)

// Dashboard is one user's view of the engine. Refresh, Remove and Submit
// write the record list; only one of them may run at a time and an
// overlapping call fails with util.ErrBusy.
type Dashboard struct {
	username string
	repo     *repository.Repository
	resolver *selection.Resolver
	pipeline *submission.Pipeline
	log      *zap.Logger

	writer sync.Mutex

	mu           sync.Mutex
	pendingBatch string
	statsVersion uint64
	statsValid   bool
	quality      []models.ModelQualityStat
	ethics       []models.ModelEthicsStat
}

// DisplayItem is one record of the active display. Toxicity is set when
// the record carries a detox report.
type DisplayItem struct {
	Record   models.SummaryRecord        `json:"record"`
	Toxicity *ranking.ToxicityComparison `json:"toxicity,omitempty"`
}

type Display struct {
	View        string        `json:"view"`
	HistoryOpen bool          `json:"history_open"`
	Items       []DisplayItem `json:"items"`
}

func newDashboard(username string, repo *repository.Repository, pipeline *submission.Pipeline, log *zap.Logger) *Dashboard {
	return &Dashboard{
		username: username,
		repo:     repo,
		resolver: selection.NewResolver(),
		pipeline: pipeline,
		log:      log.With(zap.String("user", username)),
	}
}

func (d *Dashboard) Username() string { return d.username }

func (d *Dashboard) Resolver() *selection.Resolver { return d.resolver }

func (d *Dashboard) Repository() *repository.Repository { return d.repo }

func (d *Dashboard) acquire(op string) (func(), error) {
	if !d.writer.TryLock() {
		return nil, fmt.Errorf("%s: %w", op, util.ErrBusy)
	}
	return d.writer.Unlock, nil
}

func (d *Dashboard) Refresh(ctx context.Context, sess models.Session) ([]models.SummaryRecord, error) {
	release, err := d.acquire("refresh")
	if err != nil {
		return nil, err
	}
	defer release()
	return d.refreshLocked(ctx, sess)
}

func (d *Dashboard) refreshLocked(ctx context.Context, sess models.Session) ([]models.SummaryRecord, error) {
	records, err := d.repo.Refresh(ctx, sess)
	if err != nil {
		return nil, err
	}
	d.resolver.Reconcile(records)
	return records, nil
}

// Remove deletes one record and refreshes. A selection pointing at a
// record that is gone afterwards falls back to the live batch or Idle.
func (d *Dashboard) Remove(ctx context.Context, sess models.Session, id string) error {
	release, err := d.acquire("remove")
	if err != nil {
		return err
	}
	defer release()

	err = d.repo.Remove(ctx, sess, id)
	if _, still := d.repo.Find(id); !still {
		d.resolver.RecordDeleted(id)
	}
	d.resolver.Reconcile(d.repo.Records())
	return err
}

// Submit runs the synchronous pipeline against this dashboard's live batch.
func (d *Dashboard) Submit(ctx context.Context, sess models.Session, req submission.Request) (submission.Result, error) {
	release, err := d.acquire("submit")
	if err != nil {
		return submission.Result{}, err
	}
	defer release()

	d.mu.Lock()
	d.pendingBatch = ""
	d.mu.Unlock()
	return d.pipeline.Run(ctx, sess, req, d.resolver, refresherFunc(d.refreshLocked))
}

// BeginAsync starts a batch whose inputs are processed elsewhere. Results
// are applied by CompleteAsync for the same batch id.
func (d *Dashboard) BeginAsync(batchID string) error {
	release, err := d.acquire("submit")
	if err != nil {
		return err
	}
	defer release()

	d.mu.Lock()
	d.pendingBatch = batchID
	d.mu.Unlock()
	d.resolver.BeginSubmission()
	return nil
}

// CompleteAsync appends the results of batchID in order and refreshes once.
// It reports false when the batch was already applied or has been
// superseded by a newer submission.
func (d *Dashboard) CompleteAsync(ctx context.Context, sess models.Session, batchID string, results []models.SummaryRecord) (bool, error) {
	release, err := d.acquire("complete submission")
	if err != nil {
		return false, err
	}
	defer release()

	d.mu.Lock()
	if d.pendingBatch != batchID || batchID == "" {
		d.mu.Unlock()
		return false, nil
	}
	d.pendingBatch = ""
	d.mu.Unlock()

	for _, rec := range results {
		d.resolver.AppendResult(rec)
	}
	if _, err := d.refreshLocked(ctx, sess); err != nil {
		return true, fmt.Errorf("refresh after submission: %w", err)
	}
	return true, nil
}

// AbandonAsync forgets batchID when it never started running. It reports
// whether batchID was still the pending batch.
func (d *Dashboard) AbandonAsync(batchID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if batchID == "" || d.pendingBatch != batchID {
		return false
	}
	d.pendingBatch = ""
	return true
}

func (d *Dashboard) PendingBatch() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pendingBatch
}

func (d *Dashboard) History() []models.SummaryRecord {
	return d.repo.History()
}

func (d *Dashboard) Search(term string) []selection.SearchOption {
	return selection.Search(d.repo.History(), term)
}

// Select makes the record with id the active view.
func (d *Dashboard) Select(id string) error {
	rec, ok := d.repo.Find(id)
	if !ok {
		return fmt.Errorf("select %s: %w", id, util.ErrNotFound)
	}
	return d.resolver.Select(rec)
}

func (d *Dashboard) ClearSelection() {
	d.resolver.ClearSelection()
}

func (d *Dashboard) SetHistoryOpen(open bool) {
	d.resolver.SetHistoryOpen(open)
}

func (d *Dashboard) Display() Display {
	records := d.resolver.ActiveDisplay()
	items := make([]DisplayItem, 0, len(records))
	for _, rec := range records {
		item := DisplayItem{Record: rec}
		if cmp, ok := ranking.CompareToxicity(rec); ok {
			item.Toxicity = &cmp
		}
		items = append(items, item)
	}
	return Display{
		View:        d.resolver.View().Kind(),
		HistoryOpen: d.resolver.HistoryOpen(),
		Items:       items,
	}
}

// QualityLeaderboard ranks the current snapshot by key. Stats are
// recomputed whenever the snapshot version moves.
func (d *Dashboard) QualityLeaderboard(key string) ([]models.ModelQualityStat, error) {
	k, err := ranking.ParseQualityKey(key)
	if err != nil {
		return nil, err
	}
	quality, _ := d.stats()
	return ranking.Rank(quality, k), nil
}

func (d *Dashboard) EthicsLeaderboard(key string) ([]models.ModelEthicsStat, error) {
	k, err := ranking.ParseEthicsKey(key)
	if err != nil {
		return nil, err
	}
	_, ethics := d.stats()
	return ranking.Rank(ethics, k), nil
}

func (d *Dashboard) stats() ([]models.ModelQualityStat, []models.ModelEthicsStat) {
	snap := d.repo.Snapshot()
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.statsValid || d.statsVersion != snap.Version {
		d.quality = ranking.ComputeQualityStats(snap.Records)
		d.ethics = ranking.ComputeEthicsStats(snap.Records)
		d.statsVersion = snap.Version
		d.statsValid = true
		d.log.Debug("leaderboard stats recomputed", zap.Uint64("version", snap.Version))
	}
	return d.quality, d.ethics
}

type refresherFunc func(ctx context.Context, sess models.Session) ([]models.SummaryRecord, error)

func (f refresherFunc) Refresh(ctx context.Context, sess models.Session) ([]models.SummaryRecord, error) {
	return f(ctx, sess)
}
