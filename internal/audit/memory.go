// File: internal/audit/memory.go
package audit

import (
	"context"
	"sync"

	"github.com/crucible-dev/crucible-cli/api/schemas"
)

// MemoryStore keeps the audit trail in process memory. Used by tests and
// for ephemeral runs where durability is not wanted.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]schemas.FixAttempt
}

// NewMemoryStore initializes an empty in-memory trail.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]schemas.FixAttempt)}
}

// Append implements schemas.AuditStore.
func (m *MemoryStore) Append(_ context.Context, attempt schemas.FixAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[attempt.RunID] = append(m.records[attempt.RunID], attempt)
	return nil
}

// Trace implements schemas.AuditStore.
func (m *MemoryStore) Trace(_ context.Context, runID string) ([]schemas.FixAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]schemas.FixAttempt, len(m.records[runID]))
	copy(out, m.records[runID])
	return out, nil
}

// Close implements schemas.AuditStore.
func (m *MemoryStore) Close() error { return nil }
