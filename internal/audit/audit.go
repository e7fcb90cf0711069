package audit

import "context"

const (
	OpRefresh   = "refresh"
	OpSummarize = "summarize"
	OpDelete    = "delete"

	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Call describes one remote call made on behalf of a user.
type Call struct {
	Operation string
	Username  string
	RecordID  string
	Filename  string
	Model     string
	Status    string
	ErrorType string
}

type Recorder interface {
	Record(ctx context.Context, call Call) error
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, Call) error { return nil }

// Nop discards every call.
func Nop() Recorder { return nopRecorder{} }
