// Package audit records every authorization decision — success or
// failure — in a SQLite database, separate from the approval ledger.
// The ledger answers "what was approved"; this store answers "what
// was attempted".
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Decision is one recorded authorization attempt.
type Decision struct {
	ID         int64     `json:"id"`
	Timestamp  time.Time `json:"ts"`
	Action     string    `json:"action"`
	ApprovalID string    `json:"approval_id"`
	Outcome    string    `json:"outcome"`
	Detail     string    `json:"detail,omitempty"`
}

// Store is the SQLite-backed decision log.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the decision store at path and applies the
// schema. The parent directory is created if needed.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}

	// Per-connection PRAGMAs: WAL for concurrent CLI invocations,
	// busy_timeout to ride out a concurrent writer, NORMAL sync is
	// safe under WAL.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		path,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}

	// Single connection keeps SQLite writes serialized in-process.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit db ping: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit db migrate: %w", err)
	}

	return &Store{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
  id          INTEGER PRIMARY KEY AUTOINCREMENT,
  ts_ms       INTEGER NOT NULL,
  action      TEXT NOT NULL,
  approval_id TEXT NOT NULL,
  outcome     TEXT NOT NULL,
  detail      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_decisions_ts ON decisions(ts_ms);
`

// Record inserts one decision row.
func (s *Store) Record(ctx context.Context, d Decision) error {
	if d.Timestamp.IsZero() {
		d.Timestamp = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO decisions(ts_ms, action, approval_id, outcome, detail)
VALUES (?, ?, ?, ?, ?);
`, d.Timestamp.UTC().UnixMilli(), d.Action, d.ApprovalID, d.Outcome, d.Detail)
	if err != nil {
		return fmt.Errorf("record decision: %w", err)
	}
	return nil
}

// List returns the most recent decisions, newest first. limit <= 0
// means no limit.
func (s *Store) List(ctx context.Context, limit int) ([]Decision, error) {
	q := `SELECT id, ts_ms, action, approval_id, outcome, detail FROM decisions ORDER BY ts_ms DESC, id DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		var d Decision
		var tsMs int64
		if err := rows.Scan(&d.ID, &tsMs, &d.Action, &d.ApprovalID, &d.Outcome, &d.Detail); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		d.Timestamp = time.UnixMilli(tsMs).UTC()
		out = append(out, d)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
