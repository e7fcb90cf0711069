package app

import (
	"context"
	"time"

	"briefboard/internal/audit"
	"briefboard/internal/config"
	"briefboard/internal/remote"
	"briefboard/internal/repository"
	"briefboard/internal/storage"
	"briefboard/internal/submission"

	"go.uber.org/zap"
)

func NewLogger(dev bool) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if dev {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// NewService returns the summarization service the config points at.
func NewService(cfg config.Config) remote.Service {
	if cfg.FakeService {
		return remote.NewFakeService()
	}
	return remote.NewClient(cfg.ServiceURL, time.Duration(cfg.ServiceTimeoutSecs)*time.Second)
}

func NewPipeline(cfg config.Config, svc remote.Service, rec audit.Recorder, log *zap.Logger) *submission.Pipeline {
	return submission.New(svc,
		submission.WithMaxBytes(cfg.MaxFileBytes),
		submission.WithDefaultModel(cfg.DefaultModel),
		submission.WithAudit(rec),
		submission.WithLogger(log),
	)
}

// Persistence is the optional PostgreSQL side: snapshot mirror and call
// audit. All fields are nil when no database is configured.
type Persistence struct {
	DB     *storage.DB
	Mirror *storage.MirrorRepo
	Audit  *storage.CallAuditRepo
}

func OpenPersistence(ctx context.Context, cfg config.Config) (Persistence, error) {
	if cfg.PostgresURL == "" {
		return Persistence{}, nil
	}
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		return Persistence{}, err
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return Persistence{}, err
	}
	return Persistence{DB: db, Mirror: storage.NewMirrorRepo(db), Audit: storage.NewCallAuditRepo(db)}, nil
}

func (p Persistence) Close() {
	p.DB.Close()
}

func (p Persistence) Recorder() audit.Recorder {
	if p.Audit == nil {
		return audit.Nop()
	}
	return p.Audit
}

// RepositoryOptions wires the mirror and audit log into each repository.
func (p Persistence) RepositoryOptions() []repository.Option {
	opts := []repository.Option{repository.WithAudit(p.Recorder())}
	if p.Mirror != nil {
		opts = append(opts, repository.WithMirror(p.Mirror))
	}
	return opts
}

func (p Persistence) MirrorOrNil() repository.Mirror {
	if p.Mirror == nil {
		return nil
	}
	return p.Mirror
}
