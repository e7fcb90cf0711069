package activities

import "briefboard/internal/models"

// StagedInput is one accepted input written to the staging directory.
type StagedInput struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	SHA256   string `json:"sha256"`
	Bytes    int64  `json:"bytes"`
}

// StageManifest is written next to the staged files of a batch.
type StageManifest struct {
	BatchID string        `json:"batch_id"`
	Inputs  []StagedInput `json:"inputs"`
}

type SummarizeInputInput struct {
	BatchID  string      `json:"batch_id"`
	Username string      `json:"username"`
	Token    string      `json:"token"`
	Model    string      `json:"model"`
	Input    StagedInput `json:"input"`
}

type SummarizeInputOutput struct {
	Record    models.SummaryRecord `json:"record"`
	ErrorType string               `json:"error_type,omitempty"`
}

type RefreshMirrorInput struct {
	BatchID  string `json:"batch_id"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

type RefreshMirrorOutput struct {
	Count int `json:"count"`
}

type CleanupStagedInput struct {
	BatchID string `json:"batch_id"`
}
