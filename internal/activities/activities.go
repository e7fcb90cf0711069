package activities

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"briefboard/internal/audit"
	"briefboard/internal/models"
	"briefboard/internal/remote"
	"briefboard/internal/repository"
	"briefboard/internal/submission"
	"briefboard/internal/util"

	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"
)

type Activities struct {
	stagingRoot string
	svc         remote.Service
	pipeline    *submission.Pipeline
	mirror      repository.Mirror
	audit       audit.Recorder
	log         *zap.Logger
}

// New wires the activities. mirror and rec may be nil when PostgreSQL is
// not configured.
func New(stagingRoot string, svc remote.Service, pipeline *submission.Pipeline, mirror repository.Mirror, rec audit.Recorder, log *zap.Logger) *Activities {
	if log == nil {
		log = zap.NewNop()
	}
	if rec == nil {
		rec = audit.Nop()
	}
	return &Activities{
		stagingRoot: stagingRoot,
		svc:         svc,
		pipeline:    pipeline,
		mirror:      mirror,
		audit:       rec,
		log:         log,
	}
}

// Stage writes accepted inputs under root/batchID, prefixing each file with
// its position so that duplicate names stay distinct.
func Stage(root, batchID string, inputs []submission.Input) ([]StagedInput, error) {
	dir := filepath.Join(root, filepath.Base(batchID))
	if err := util.EnsureDir(dir); err != nil {
		return nil, err
	}
	out := make([]StagedInput, 0, len(inputs))
	for i, in := range inputs {
		path := util.SafeJoin(dir, fmt.Sprintf("%03d-%s", i, filepath.Base(in.Filename)))
		if err := util.WriteFileAtomic(path, in.Content); err != nil {
			return nil, fmt.Errorf("stage %s: %w", in.Filename, err)
		}
		out = append(out, StagedInput{Filename: in.Filename, Path: path, SHA256: util.SHA256Hex(in.Content), Bytes: in.Size()})
	}
	if err := util.WriteJSONAtomic(filepath.Join(dir, "manifest.json"), StageManifest{BatchID: batchID, Inputs: out}); err != nil {
		return nil, fmt.Errorf("write stage manifest: %w", err)
	}
	return out, nil
}

// SummarizeInputActivity submits one staged input. Per-input failures are
// reported in the returned record, never as an activity error, so the
// workflow does not retry them.
func (a *Activities) SummarizeInputActivity(ctx context.Context, in SummarizeInputInput) (SummarizeInputOutput, error) {
	sess := models.Session{Username: in.Username, Token: in.Token}
	content, err := os.ReadFile(in.Input.Path)
	if err != nil {
		rec := models.NewFailedRecord(in.Input.Filename, in.Model, fmt.Sprintf("read staged input: %v", err), time.Now())
		return SummarizeInputOutput{Record: rec, ErrorType: string(remote.ErrorPermanent)}, nil
	}
	rec, err := a.pipeline.SubmitOne(ctx, sess, in.Model, submission.Input{Filename: in.Input.Filename, Content: content})
	out := SummarizeInputOutput{Record: rec}
	if err != nil {
		out.ErrorType = string(remote.ClassifyError(err))
	}
	return out, nil
}

// RefreshMirrorActivity re-reads the user's history once the batch is done
// and writes it to the durable mirror.
func (a *Activities) RefreshMirrorActivity(ctx context.Context, in RefreshMirrorInput) (RefreshMirrorOutput, error) {
	opts := []repository.Option{repository.WithAudit(a.audit), repository.WithLogger(a.log)}
	if a.mirror != nil {
		opts = append(opts, repository.WithMirror(a.mirror))
	}
	records, err := repository.New(a.svc, opts...).Refresh(ctx, models.Session{Username: in.Username, Token: in.Token})
	if err != nil {
		if remote.ClassifyError(err) == remote.ErrorAuth {
			return RefreshMirrorOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), string(remote.ErrorAuth), err)
		}
		return RefreshMirrorOutput{}, err
	}
	a.log.Info("batch mirrored", zap.String("batch_id", in.BatchID), zap.String("user", in.Username), zap.Int("count", len(records)))
	return RefreshMirrorOutput{Count: len(records)}, nil
}

func (a *Activities) CleanupStagedActivity(ctx context.Context, in CleanupStagedInput) error {
	_ = ctx
	if in.BatchID == "" {
		return nil
	}
	return Unstage(a.stagingRoot, in.BatchID)
}

// Unstage removes everything Stage wrote for batchID.
func Unstage(root, batchID string) error {
	if err := os.RemoveAll(filepath.Join(root, filepath.Base(batchID))); err != nil {
		return fmt.Errorf("remove staged batch: %w", err)
	}
	return nil
}
