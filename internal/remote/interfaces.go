package remote

import (
	"context"
	"encoding/json"

	"briefboard/internal/models"
)

// Upload is one file forwarded to the summarization service.
type Upload struct {
	Filename string
	Content  []byte
}

type SummarizeRequest struct {
	Model string
	Files []Upload
}

// FileOutcome is one entry of the service's per-filename reply. Exactly one
// of Error and Summary is meaningful; Failed reports which.
type FileOutcome struct {
	Filename string          `json:"filename"`
	Summary  string          `json:"summary,omitempty"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
	Error    string          `json:"error,omitempty"`
	Failed   bool            `json:"failed"`
}

// Service is the remote summarization and history contract the engine
// depends on. Every call carries the caller's session explicitly.
type Service interface {
	ListSummaries(ctx context.Context, sess models.Session) ([]RawRecord, error)
	Summarize(ctx context.Context, sess models.Session, req SummarizeRequest) ([]FileOutcome, error)
	DeleteSummary(ctx context.Context, sess models.Session, id string) error
}
