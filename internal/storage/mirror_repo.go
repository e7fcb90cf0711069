package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"briefboard/internal/models"
)

// MirrorRepo keeps the latest refreshed snapshot of each user's history.
type MirrorRepo struct {
	db *DB
}

func NewMirrorRepo(db *DB) *MirrorRepo {
	return &MirrorRepo{db: db}
}

// ReplaceSnapshot swaps the user's mirrored rows for records in one
// transaction, keeping server order in position.
func (r *MirrorRepo) ReplaceSnapshot(ctx context.Context, username string, records []models.SummaryRecord) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx replace snapshot: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM summary_mirror WHERE username=$1`, username); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	for i, rec := range records {
		quality, err := jsonOrNil(rec.QualityScores)
		if err != nil {
			return fmt.Errorf("encode quality scores %s: %w", rec.ID, err)
		}
		report, err := jsonOrNil(rec.DetoxReport)
		if err != nil {
			return fmt.Errorf("encode detox report %s: %w", rec.ID, err)
		}
		summary, err := jsonOrNil(rec.DetoxSummary)
		if err != nil {
			return fmt.Errorf("encode detox summary %s: %w", rec.ID, err)
		}
		reduction, err := jsonOrNil(rec.PercentageReduction)
		if err != nil {
			return fmt.Errorf("encode percentage reduction %s: %w", rec.ID, err)
		}
		_, err = tx.Exec(ctx, `
INSERT INTO summary_mirror (username, position, record_id, filename, model, created_at, summary, error_text,
  quality_scores, detox_report, detox_summary, percentage_reduction)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10::jsonb, $11::jsonb, $12::jsonb)`,
			username, i, rec.ID, rec.Filename, rec.ModelName, nullTime(rec.CreatedAt), rec.SummaryText, rec.ErrorText,
			quality, report, summary, reduction,
		)
		if err != nil {
			return fmt.Errorf("insert mirrored record %s: %w", rec.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot tx: %w", err)
	}
	return nil
}

func jsonOrNil[T any](m map[string]T) (*string, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
