// File: internal/audit/postgres.go
package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/crucible-dev/crucible-cli/api/schemas"
)

// DBPool abstracts pgxpool.Pool so the store can be exercised against a
// mock in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS fix_attempts (
	id             BIGSERIAL PRIMARY KEY,
	run_id         TEXT        NOT NULL,
	attempt_number INTEGER     NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	payload        JSONB       NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fix_attempts_run_id ON fix_attempts (run_id);
`

// PostgresStore persists the audit trail in PostgreSQL for teams that
// aggregate runs across machines. The pool's lifecycle belongs to the
// caller; Close here is a no-op.
type PostgresStore struct {
	pool   DBPool
	logger *zap.Logger
}

// NewPostgresStore verifies connectivity and ensures the schema exists.
func NewPostgresStore(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresStore, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping audit database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("failed to initialize audit schema: %w", err)
	}
	return &PostgresStore{pool: pool, logger: logger.Named("audit.postgres")}, nil
}

// Append implements schemas.AuditStore.
func (s *PostgresStore) Append(ctx context.Context, attempt schemas.FixAttempt) error {
	payload, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("failed to serialize audit record: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO fix_attempts (run_id, attempt_number, created_at, payload) VALUES ($1, $2, $3, $4)`,
		attempt.RunID, attempt.AttemptNumber, attempt.Timestamp.UTC(), payload)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

// Trace implements schemas.AuditStore.
func (s *PostgresStore) Trace(ctx context.Context, runID string) ([]schemas.FixAttempt, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM fix_attempts WHERE run_id = $1 ORDER BY id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit trail: %w", err)
	}
	defer rows.Close()

	var attempts []schemas.FixAttempt
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		var attempt schemas.FixAttempt
		if err := json.Unmarshal(payload, &attempt); err != nil {
			return nil, fmt.Errorf("failed to deserialize audit record: %w", err)
		}
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}

// Close implements schemas.AuditStore.
func (s *PostgresStore) Close() error { return nil }
