// File: internal/audit/audit.go
package audit

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/crucible-dev/crucible-cli/api/schemas"
	"github.com/crucible-dev/crucible-cli/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Recorder is the append-only audit trail. It wraps a backing store,
// stamps timestamps, and never exposes update or delete.
type Recorder struct {
	logger *zap.Logger
	store  schemas.AuditStore
}

// NewRecorder wraps a backing store.
func NewRecorder(logger *zap.Logger, store schemas.AuditStore) *Recorder {
	return &Recorder{logger: logger.Named("audit"), store: store}
}

// Append implements schemas.AuditStore.
func (r *Recorder) Append(ctx context.Context, attempt schemas.FixAttempt) error {
	if attempt.RunID == "" {
		return fmt.Errorf("audit record is missing a run ID")
	}
	if attempt.Timestamp.IsZero() {
		attempt.Timestamp = time.Now().UTC()
	}
	if err := r.store.Append(ctx, attempt); err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	r.logger.Debug("Audit record appended.",
		zap.String("run_id", attempt.RunID),
		zap.Int("attempt", attempt.AttemptNumber))
	return nil
}

// Trace implements schemas.AuditStore. Records come back in append order.
func (r *Recorder) Trace(ctx context.Context, runID string) ([]schemas.FixAttempt, error) {
	return r.store.Trace(ctx, runID)
}

// Close implements schemas.AuditStore.
func (r *Recorder) Close() error { return r.store.Close() }

// OpenStore builds the configured backing store. The postgres backend is
// wired separately by the caller because it owns the pool lifecycle.
func OpenStore(cfg config.AuditConfig, logger *zap.Logger) (schemas.AuditStore, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(cfg.Path, logger)
	default:
		return nil, fmt.Errorf("unknown audit backend %q", cfg.Backend)
	}
}
