package worker

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/orchestrahq/maestro/pkg/registry"
)

// Registry is the thread-safe catalog of workers. Registration happens at
// startup (plus the occasional replace); requests take a Snapshot once
// and use it for their whole lifetime.
type Registry struct {
	base *registry.BaseRegistry[Worker]

	mu         sync.Mutex
	executions map[string]int64
}

// NewRegistry creates an empty worker registry.
func NewRegistry() *Registry {
	return &Registry{
		base:       registry.NewBaseRegistry[Worker](),
		executions: make(map[string]int64),
	}
}

// Register adds a worker. Registering a name that already exists is a
// no-op; use Replace to swap implementations.
func (r *Registry) Register(w Worker) error {
	if w == nil || w.Name() == "" {
		return fmt.Errorf("worker must have a name")
	}
	if err := r.base.Register(w.Name(), w); err != nil {
		slog.Debug("Worker already registered, keeping existing", "worker", w.Name())
		return nil
	}
	return nil
}

// Replace registers the worker even when the name is taken.
func (r *Registry) Replace(w Worker) {
	r.base.Replace(w.Name(), w)
}

// Get returns a worker by exact name.
func (r *Registry) Get(name string) (Worker, bool) {
	return r.base.Get(name)
}

// Count returns the number of registered workers.
func (r *Registry) Count() int {
	return r.base.Count()
}

// RecordExecution bumps the per-worker execution counter.
func (r *Registry) RecordExecution(name string) {
	r.mu.Lock()
	r.executions[name]++
	r.mu.Unlock()
}

// WorkerStats describes one worker for observability.
type WorkerStats struct {
	Type       Type  `json:"type"`
	Priority   int   `json:"priority"`
	Executions int64 `json:"executions"`
}

// Stats returns per-worker registration and execution counts.
func (r *Registry) Stats() map[string]WorkerStats {
	stats := make(map[string]WorkerStats)
	for _, w := range r.base.List() {
		stats[w.Name()] = WorkerStats{Type: w.Type(), Priority: w.Priority()}
	}

	r.mu.Lock()
	for name, n := range r.executions {
		if s, ok := stats[name]; ok {
			s.Executions = n
			stats[name] = s
		}
	}
	r.mu.Unlock()
	return stats
}

// Snapshot is an immutable per-request view of the registry. Workers
// registered after the snapshot is taken are invisible to the request.
type Snapshot struct {
	workers []Worker
	byName  map[string]Worker
}

// Snapshot captures the current worker set, sorted by priority (highest
// first, ties by name).
func (r *Registry) Snapshot() *Snapshot {
	workers := r.base.List()
	sort.Slice(workers, func(i, j int) bool {
		if workers[i].Priority() != workers[j].Priority() {
			return workers[i].Priority() > workers[j].Priority()
		}
		return workers[i].Name() < workers[j].Name()
	})

	byName := make(map[string]Worker, len(workers))
	for _, w := range workers {
		byName[w.Name()] = w
	}
	return &Snapshot{workers: workers, byName: byName}
}

// Len returns the number of workers in the snapshot.
func (s *Snapshot) Len() int { return len(s.workers) }

// Workers returns the priority-sorted worker list.
func (s *Snapshot) Workers() []Worker { return s.workers }

// Names returns the priority-sorted worker names.
func (s *Snapshot) Names() []string {
	names := make([]string, len(s.workers))
	for i, w := range s.workers {
		names[i] = w.Name()
	}
	return names
}

// Lookup finds a worker by exact name, falling back to a
// case-insensitive match.
func (s *Snapshot) Lookup(name string) (Worker, bool) {
	if w, ok := s.byName[name]; ok {
		return w, true
	}
	for _, w := range s.workers {
		if strings.EqualFold(w.Name(), name) {
			return w, true
		}
	}
	return nil, false
}

// FormattedDescriptions renders the planner-facing worker list, one
// "- Name [type]: description" line per worker in priority order.
func (s *Snapshot) FormattedDescriptions() string {
	var b strings.Builder
	for i, w := range s.workers {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- %s [%s]: %s", w.Name(), w.Type(), w.Description())
	}
	return b.String()
}
