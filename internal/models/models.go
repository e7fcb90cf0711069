package models

import (
	"errors"
	"time"
)

// UnknownModel is the model name used when a record carries none.
const UnknownModel = "Unknown"

var (
	QualityCriteria = []string{"consistency", "coverage", "coherence", "fluency", "overall"}
	EthicsKeys      = []string{"toxicity", "severe_toxicity", "obscene", "identity_attack", "insult", "threat", "sexual_explicit", "overall"}
)

type Session struct {
	Username string `json:"username" yaml:"username"`
	Token    string `json:"-"`
}

type QualityScore struct {
	Score         float64 `json:"score" yaml:"score"`
	Justification string  `json:"justification" yaml:"justification"`
}

// SummaryRecord is one summarization attempt, persisted or still live.
// Exactly one of SummaryText and ErrorText is set. A nil map means the
// field was absent; an empty non-nil map was present but empty.
type SummaryRecord struct {
	ID                  string                  `json:"id,omitempty" yaml:"id,omitempty"`
	Filename            string                  `json:"filename" yaml:"filename"`
	CreatedAt           time.Time               `json:"created_at" yaml:"created_at"`
	ModelName           string                  `json:"model" yaml:"model"`
	SummaryText         *string                 `json:"summary" yaml:"summary"`
	QualityScores       map[string]QualityScore `json:"quality_scores" yaml:"quality_scores,omitempty"`
	DetoxReport         map[string]float64      `json:"detox_report" yaml:"detox_report,omitempty"`
	DetoxSummary        map[string]float64      `json:"detox_summary" yaml:"detox_summary,omitempty"`
	PercentageReduction map[string]float64      `json:"percentage_reduction" yaml:"percentage_reduction,omitempty"`
	ErrorText           *string                 `json:"error,omitempty" yaml:"error,omitempty"`
}

// LiveBatchResult is a record produced by the current submission that has
// not yet been observed in a refreshed snapshot. It never carries an ID.
type LiveBatchResult = SummaryRecord

var errSummaryErrorExclusive = errors.New("exactly one of summary and error must be set")

func NewFailedRecord(filename, model, errText string, at time.Time) SummaryRecord {
	return SummaryRecord{
		Filename:  filename,
		CreatedAt: at,
		ModelName: model,
		ErrorText: &errText,
	}
}

func (r SummaryRecord) Persisted() bool {
	return r.ID != ""
}

func (r SummaryRecord) Failed() bool {
	return r.ErrorText != nil
}

func (r SummaryRecord) HasQualityScores() bool {
	return r.QualityScores != nil
}

func (r SummaryRecord) Summary() string {
	if r.SummaryText == nil {
		return ""
	}
	return *r.SummaryText
}

func (r SummaryRecord) Error() string {
	if r.ErrorText == nil {
		return ""
	}
	return *r.ErrorText
}

func (r SummaryRecord) Validate() error {
	if (r.SummaryText == nil) == (r.ErrorText == nil) {
		return errSummaryErrorExclusive
	}
	return nil
}

type ModelQualityStat struct {
	Model    string             `json:"model" yaml:"model"`
	Count    int                `json:"count" yaml:"count"`
	Averages map[string]float64 `json:"averages" yaml:"averages"`
}

func (s ModelQualityStat) Average(key string) float64 {
	return s.Averages[key]
}

type ModelEthicsStat struct {
	Model    string             `json:"model" yaml:"model"`
	Total    int                `json:"total" yaml:"total"`
	Averages map[string]float64 `json:"averages" yaml:"averages"`
}

func (s ModelEthicsStat) Average(key string) float64 {
	return s.Averages[key]
}

type ModelOption struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
	Logo  string `json:"logo,omitempty" yaml:"logo,omitempty"`
}

type ValidationRejection struct {
	Filename string `json:"filename" yaml:"filename"`
	Reason   string `json:"reason" yaml:"reason"`
}
