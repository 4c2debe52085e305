// Package checkpoint persists finished conversation state per thread so
// follow-up requests and state queries can see prior turns.
package checkpoint

import (
	"context"
	"sync"

	"github.com/orchestrahq/maestro/pkg/state"
)

// Checkpointer stores the latest state per thread id. Implementations
// must be safe for concurrent use.
type Checkpointer interface {
	Save(ctx context.Context, threadID string, s state.SupervisorState) error
	Load(ctx context.Context, threadID string) (state.SupervisorState, bool, error)
	Delete(ctx context.Context, threadID string) error
}

// Memory is the in-process checkpointer. State survives for the life of
// the process only.
type Memory struct {
	mu      sync.RWMutex
	threads map[string]state.SupervisorState
}

// NewMemory creates an empty in-memory checkpointer.
func NewMemory() *Memory {
	return &Memory{threads: make(map[string]state.SupervisorState)}
}

// Save implements Checkpointer.
func (m *Memory) Save(_ context.Context, threadID string, s state.SupervisorState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threads[threadID] = s
	return nil
}

// Load implements Checkpointer.
func (m *Memory) Load(_ context.Context, threadID string) (state.SupervisorState, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.threads[threadID]
	return s, ok, nil
}

// Delete implements Checkpointer.
func (m *Memory) Delete(_ context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.threads, threadID)
	return nil
}
