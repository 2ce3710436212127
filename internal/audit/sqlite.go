// File: internal/audit/sqlite.go
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/crucible-dev/crucible-cli/api/schemas"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS fix_attempts (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id         TEXT    NOT NULL,
	attempt_number INTEGER NOT NULL,
	created_at     TEXT    NOT NULL,
	payload        TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fix_attempts_run_id ON fix_attempts (run_id);
`

// SQLiteStore persists the audit trail in a local SQLite database. The
// default backend: durable, zero-setup, single file.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (and if needed creates) the database at path.
func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	// SQLite permits one writer; serialize through the pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize audit schema: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger.Named("audit.sqlite")}, nil
}

// Append implements schemas.AuditStore.
func (s *SQLiteStore) Append(ctx context.Context, attempt schemas.FixAttempt) error {
	payload, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("failed to serialize audit record: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO fix_attempts (run_id, attempt_number, created_at, payload) VALUES (?, ?, ?, ?)`,
		attempt.RunID, attempt.AttemptNumber, attempt.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"), string(payload))
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

// Trace implements schemas.AuditStore.
func (s *SQLiteStore) Trace(ctx context.Context, runID string) ([]schemas.FixAttempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM fix_attempts WHERE run_id = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit trail: %w", err)
	}
	defer rows.Close()

	var attempts []schemas.FixAttempt
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		var attempt schemas.FixAttempt
		if err := json.Unmarshal([]byte(payload), &attempt); err != nil {
			return nil, fmt.Errorf("failed to deserialize audit record: %w", err)
		}
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}

// Close implements schemas.AuditStore.
func (s *SQLiteStore) Close() error { return s.db.Close() }
