package worker

import (
	"context"
	"strings"
	"testing"

	"github.com/orchestrahq/maestro/pkg/state"
)

// stubWorker is a minimal Worker for registry tests.
type stubWorker struct {
	name     string
	desc     string
	typ      Type
	priority int
	answer   string
}

func (w *stubWorker) Name() string        { return w.name }
func (w *stubWorker) Description() string { return w.desc }
func (w *stubWorker) Type() Type          { return w.typ }
func (w *stubWorker) Priority() int       { return w.priority }
func (w *stubWorker) Execute(_ context.Context, s state.SupervisorState) (state.Update, error) {
	return SuccessUpdate(s, w.name, w.answer), nil
}

func TestRegisterIdempotent(t *testing.T) {
	reg := NewRegistry()
	first := &stubWorker{name: "General", typ: TypeLLMPowered, priority: 1, answer: "first"}
	second := &stubWorker{name: "General", typ: TypeLLMPowered, priority: 1, answer: "second"}

	if err := reg.Register(first); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(second); err != nil {
		t.Fatalf("duplicate register must be a no-op, got %v", err)
	}

	got, _ := reg.Get("General")
	if got.(*stubWorker).answer != "first" {
		t.Errorf("duplicate register replaced the worker")
	}
	if reg.Count() != 1 {
		t.Errorf("Count = %d, want 1", reg.Count())
	}
}

func TestReplace(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(&stubWorker{name: "General", answer: "old"})
	reg.Replace(&stubWorker{name: "General", answer: "new"})

	got, _ := reg.Get("General")
	if got.(*stubWorker).answer != "new" {
		t.Errorf("Replace did not swap the worker")
	}
}

func TestSnapshotPrioritySort(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(&stubWorker{name: "General", typ: TypeLLMPowered, priority: 1, desc: "catch-all"})
	_ = reg.Register(&stubWorker{name: "Writer", typ: TypeLLMPowered, priority: 5, desc: "writes"})
	_ = reg.Register(&stubWorker{name: "Researcher", typ: TypeLLMPowered, priority: 10, desc: "searches"})
	_ = reg.Register(&stubWorker{name: "DataAnalyst", typ: TypeLLMPowered, priority: 10, desc: "analyzes"})

	snap := reg.Snapshot()
	want := []string{"DataAnalyst", "Researcher", "Writer", "General"}
	got := snap.Names()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sorted names = %v, want %v", got, want)
		}
	}
}

func TestSnapshotIsImmutableView(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(&stubWorker{name: "General", priority: 1})
	snap := reg.Snapshot()

	_ = reg.Register(&stubWorker{name: "Writer", priority: 5})
	if snap.Len() != 1 {
		t.Errorf("workers registered after the snapshot must be invisible to it")
	}
}

func TestSnapshotLookupCaseInsensitive(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(&stubWorker{name: "DataTeam", typ: TypeSubgraph, priority: 10})
	snap := reg.Snapshot()

	tests := []struct {
		query string
		found bool
	}{
		{"DataTeam", true},
		{"datateam", true},
		{"DATATEAM", true},
		{"DataTeamX", false},
	}
	for _, tt := range tests {
		if _, ok := snap.Lookup(tt.query); ok != tt.found {
			t.Errorf("Lookup(%q) found=%v, want %v", tt.query, ok, tt.found)
		}
	}
}

func TestFormattedDescriptions(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(&stubWorker{name: "General", typ: TypeLLMPowered, priority: 1, desc: "catch-all"})
	_ = reg.Register(&stubWorker{name: "DataTeam", typ: TypeSubgraph, priority: 10, desc: "queries the database"})

	got := reg.Snapshot().FormattedDescriptions()
	lines := strings.Split(got, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", got)
	}
	if lines[0] != "- DataTeam [subgraph]: queries the database" {
		t.Errorf("line 0 = %q", lines[0])
	}
	if lines[1] != "- General [llm_powered]: catch-all" {
		t.Errorf("line 1 = %q", lines[1])
	}
}

func TestStats(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(&stubWorker{name: "General", typ: TypeLLMPowered, priority: 1})
	reg.RecordExecution("General")
	reg.RecordExecution("General")

	stats := reg.Stats()
	if stats["General"].Executions != 2 {
		t.Errorf("executions = %d, want 2", stats["General"].Executions)
	}
	if stats["General"].Type != TypeLLMPowered {
		t.Errorf("type = %s", stats["General"].Type)
	}
}
