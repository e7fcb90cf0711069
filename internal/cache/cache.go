package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"briefboard/internal/models"
	"briefboard/internal/util"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
  username TEXT PRIMARY KEY,
  refreshed_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS snapshot_records (
  username TEXT NOT NULL REFERENCES snapshots(username) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  record_json TEXT NOT NULL,
  PRIMARY KEY (username, position)
);
`

// SnapshotCache mirrors refreshed history snapshots into a local SQLite
// file so the command-line client can work offline.
type SnapshotCache struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the cache at path. ":memory:" is accepted.
func Open(path string) (*SnapshotCache, error) {
	if path != ":memory:" {
		if err := util.EnsureDir(filepath.Dir(path)); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot cache: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init snapshot cache schema: %w", err)
	}
	return &SnapshotCache{db: db, now: time.Now}, nil
}

func (c *SnapshotCache) Close() error {
	return c.db.Close()
}

// ReplaceSnapshot stores records as the user's latest snapshot.
func (c *SnapshotCache) ReplaceSnapshot(ctx context.Context, username string, records []models.SummaryRecord) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cache tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE username = ?`, username); err != nil {
		return fmt.Errorf("clear cached snapshot: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO snapshots (username, refreshed_at) VALUES (?, ?)`,
		username, c.now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("insert cached snapshot: %w", err)
	}
	for i, rec := range records {
		b, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode cached record %s: %w", rec.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO snapshot_records (username, position, record_json) VALUES (?, ?, ?)`,
			username, i, string(b)); err != nil {
			return fmt.Errorf("insert cached record %s: %w", rec.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cache tx: %w", err)
	}
	return nil
}

// Load returns the cached snapshot in server order. A user with no cached
// snapshot yields util.ErrNotFound.
func (c *SnapshotCache) Load(ctx context.Context, username string) ([]models.SummaryRecord, time.Time, error) {
	var refreshed string
	err := c.db.QueryRowContext(ctx, `SELECT refreshed_at FROM snapshots WHERE username = ?`, username).Scan(&refreshed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, fmt.Errorf("cached snapshot for %s: %w", username, util.ErrNotFound)
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read cached snapshot: %w", err)
	}
	at, err := time.Parse(time.RFC3339Nano, refreshed)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("parse cached refresh time: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, `SELECT record_json FROM snapshot_records WHERE username = ? ORDER BY position ASC`, username)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("list cached records: %w", err)
	}
	defer rows.Close()
	out := make([]models.SummaryRecord, 0)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, time.Time{}, fmt.Errorf("scan cached record: %w", err)
		}
		var rec models.SummaryRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, time.Time{}, fmt.Errorf("decode cached record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("iterate cached records: %w", err)
	}
	return out, at, nil
}
