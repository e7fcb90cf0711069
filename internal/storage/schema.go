package storage

import (
	"context"
	"fmt"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS summary_mirror (
  username TEXT NOT NULL,
  position INT NOT NULL,
  record_id TEXT NOT NULL,
  filename TEXT NOT NULL,
  model TEXT NOT NULL,
  created_at TIMESTAMPTZ,
  summary TEXT,
  error_text TEXT,
  quality_scores JSONB,
  detox_report JSONB,
  detox_summary JSONB,
  percentage_reduction JSONB,
  mirrored_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  PRIMARY KEY (username, position)
);

CREATE TABLE IF NOT EXISTS service_calls (
  call_id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  operation TEXT NOT NULL,
  username TEXT NOT NULL,
  record_id TEXT,
  filename TEXT,
  model TEXT,
  status TEXT NOT NULL,
  error_type TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS service_calls_user_idx ON service_calls (username, created_at DESC);
`

// EnsureSchema creates the mirror and audit tables when missing.
func (d *DB) EnsureSchema(ctx context.Context) error {
	if _, err := d.Pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
