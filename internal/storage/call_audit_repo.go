package storage

import (
	"context"
	"fmt"

	"briefboard/internal/audit"
)

// CallAuditRepo records every call made to the summarization service.
type CallAuditRepo struct {
	db *DB
}

func NewCallAuditRepo(db *DB) *CallAuditRepo {
	return &CallAuditRepo{db: db}
}

func (r *CallAuditRepo) Record(ctx context.Context, c audit.Call) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO service_calls(operation, username, record_id, filename, model, status, error_type)
VALUES ($1, $2, NULLIF($3,''), NULLIF($4,''), NULLIF($5,''), $6, NULLIF($7,''))`,
		c.Operation, c.Username, c.RecordID, c.Filename, c.Model, c.Status, c.ErrorType)
	if err != nil {
		return fmt.Errorf("insert service call: %w", err)
	}
	return nil
}
