package dashboard

import (
	"sync"

	"briefboard/internal/remote"
	"briefboard/internal/repository"
	"briefboard/internal/submission"

	"go.uber.org/zap"
)

// Manager hands out one Dashboard per username.
type Manager struct {
	svc      remote.Service
	pipeline *submission.Pipeline
	repoOpts []repository.Option
	log      *zap.Logger

	mu     sync.Mutex
	boards map[string]*Dashboard
}

func NewManager(svc remote.Service, pipeline *submission.Pipeline, log *zap.Logger, repoOpts ...repository.Option) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	if pipeline == nil {
		pipeline = submission.New(svc, submission.WithLogger(log))
	}
	return &Manager{
		svc:      svc,
		pipeline: pipeline,
		repoOpts: append([]repository.Option{repository.WithLogger(log)}, repoOpts...),
		log:      log,
		boards:   map[string]*Dashboard{},
	}
}

func (m *Manager) For(username string) *Dashboard {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.boards[username]; ok {
		return d
	}
	d := newDashboard(username, repository.New(m.svc, m.repoOpts...), m.pipeline, m.log)
	m.boards[username] = d
	return d
}

func (m *Manager) Pipeline() *submission.Pipeline { return m.pipeline }
