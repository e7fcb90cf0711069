package workflows

import (
	"briefboard/internal/activities"
	"briefboard/internal/models"
)

const (
	BatchRunning   = "running"
	BatchCompleted = "completed"
)

type SubmissionInput struct {
	BatchID    string                       `json:"batch_id" yaml:"batch_id"`
	Username   string                       `json:"username" yaml:"username"`
	Token      string                       `json:"token" yaml:"token"`
	Model      string                       `json:"model" yaml:"model"`
	Inputs     []activities.StagedInput     `json:"inputs" yaml:"inputs"`
	Rejections []models.ValidationRejection `json:"rejections" yaml:"rejections"`
}

// BatchProgress is the queryable state of one asynchronous submission.
// Results are in submission order.
type BatchProgress struct {
	BatchID     string                       `json:"batch_id" yaml:"batch_id"`
	Username    string                       `json:"username" yaml:"username"`
	Model       string                       `json:"model" yaml:"model"`
	Status      string                       `json:"status" yaml:"status"`
	Total       int                          `json:"total" yaml:"total"`
	Done        int                          `json:"done" yaml:"done"`
	Failed      int                          `json:"failed" yaml:"failed"`
	Current     string                       `json:"current,omitempty" yaml:"current,omitempty"`
	Results     []models.SummaryRecord       `json:"results" yaml:"results"`
	Rejections  []models.ValidationRejection `json:"rejections" yaml:"rejections"`
	Mirrored    int                          `json:"mirrored" yaml:"mirrored"`
	MirrorError string                       `json:"mirror_error,omitempty" yaml:"mirror_error,omitempty"`
}

func (p BatchProgress) Completed() bool { return p.Status == BatchCompleted }

func WorkflowID(batchID string) string { return "submission-" + batchID }
