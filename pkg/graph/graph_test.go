package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/orchestrahq/maestro/pkg/protocol"
	"github.com/orchestrahq/maestro/pkg/state"
	"github.com/orchestrahq/maestro/pkg/worker"
)

// routeNode returns the next node from a scripted sequence by setting
// state.Next like a real supervisor would.
func routeNode(sequence []string) NodeFunc {
	i := 0
	return func(_ context.Context, s state.SupervisorState) (state.Update, error) {
		next := state.Finish
		if i < len(sequence) {
			next = sequence[i]
			i++
		}
		return state.Update{
			Next:           state.StringPtr(next),
			IterationCount: state.IntPtr(s.IterationCount + 1),
		}, nil
	}
}

func echoNode(name string) NodeFunc {
	return func(_ context.Context, s state.SupervisorState) (state.Update, error) {
		return state.Update{
			Messages: []protocol.Message{protocol.NewAssistantMessage("from "+name, name)},
		}, nil
	}
}

func supervisorEdge(g *Graph) {
	g.AddConditionalEdge("supervisor", func(s state.SupervisorState) string {
		if s.Next == state.Finish {
			return End
		}
		return s.Next
	})
}

func TestRunToCompletion(t *testing.T) {
	g := New("supervisor")
	g.AddNode("supervisor", routeNode([]string{"a", "b"}))
	g.AddNode("a", echoNode("a")).AddEdge("a", "supervisor")
	g.AddNode("b", echoNode("b")).AddEdge("b", "supervisor")
	supervisorEdge(g)

	final, err := g.Run(context.Background(), state.NewState())
	if err != nil {
		t.Fatal(err)
	}
	if len(final.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(final.Messages))
	}
	if final.Messages[0].Name != "a" || final.Messages[1].Name != "b" {
		t.Errorf("execution order wrong: %v", final.Messages)
	}
	if final.IterationCount != 3 {
		t.Errorf("supervisor entries = %d, want 3", final.IterationCount)
	}
}

func TestStreamOrderAndPostMergeState(t *testing.T) {
	g := New("supervisor")
	g.AddNode("supervisor", routeNode([]string{"a"}))
	g.AddNode("a", echoNode("a")).AddEdge("a", "supervisor")
	supervisorEdge(g)

	var nodes []string
	_, err := g.Stream(context.Background(), state.NewState(), func(node string, u state.Update, merged state.SupervisorState) error {
		nodes = append(nodes, node)
		if node == "a" && len(merged.Messages) != 1 {
			t.Errorf("merged state must include the node's own update")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"supervisor", "a", "supervisor"}
	if len(nodes) != len(want) {
		t.Fatalf("stream calls = %v, want %v", nodes, want)
	}
	for i := range want {
		if nodes[i] != want[i] {
			t.Errorf("stream order = %v, want %v", nodes, want)
		}
	}
}

func TestStreamConsumerAbort(t *testing.T) {
	g := New("supervisor")
	g.AddNode("supervisor", routeNode([]string{"a", "b"}))
	g.AddNode("a", echoNode("a")).AddEdge("a", "supervisor")
	g.AddNode("b", echoNode("b")).AddEdge("b", "supervisor")
	supervisorEdge(g)

	abort := errors.New("consumer gone")
	executed := 0
	_, err := g.Stream(context.Background(), state.NewState(), func(node string, _ state.Update, _ state.SupervisorState) error {
		executed++
		if node == "a" {
			return abort
		}
		return nil
	})
	if !errors.Is(err, abort) {
		t.Fatalf("err = %v, want consumer abort", err)
	}
	if executed != 2 {
		t.Errorf("engine must stop after the aborting node, got %d calls", executed)
	}
}

func TestCancellationBetweenNodes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	g := New("supervisor")
	g.AddNode("supervisor", routeNode([]string{"a", "b"}))
	g.AddNode("a", func(_ context.Context, _ state.SupervisorState) (state.Update, error) {
		cancel()
		return state.Update{}, nil
	}).AddEdge("a", "supervisor")
	g.AddNode("b", echoNode("b")).AddEdge("b", "supervisor")
	supervisorEdge(g)

	final, err := g.Run(ctx, state.NewState())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	for _, msg := range final.Messages {
		if msg.Name == "b" {
			t.Errorf("node after cancellation must not run")
		}
	}
}

func TestUnknownNodeErrors(t *testing.T) {
	g := New("supervisor")
	g.AddNode("supervisor", routeNode([]string{"ghost"}))
	supervisorEdge(g)

	if _, err := g.Run(context.Background(), state.NewState()); err == nil {
		t.Fatal("expected unknown node error")
	}
}

func TestTransitionBackstop(t *testing.T) {
	g := New("loop")
	g.AddNode("loop", func(_ context.Context, _ state.SupervisorState) (state.Update, error) {
		return state.Update{}, nil
	})
	g.AddEdge("loop", "loop")

	if _, err := g.Run(context.Background(), state.NewState()); err == nil {
		t.Fatal("expected transition backstop error")
	}
}

func TestWorkerNodeFoldsErrors(t *testing.T) {
	reg := worker.NewRegistry()
	failing := &failingWorker{}
	_ = reg.Register(failing)
	snap := reg.Snapshot()

	g := BuildSupervisorGraph("supervisor", routeNode([]string{"Flaky"}), snap, reg)

	final, err := g.Run(context.Background(), state.NewState())
	if err != nil {
		t.Fatalf("worker errors must not abort the graph: %v", err)
	}
	if len(final.Messages) == 0 || final.Messages[0].Name != "Flaky" {
		t.Fatalf("expected an authored failure message, got %v", final.Messages)
	}
	if final.Metadata["error"] == nil {
		t.Errorf("metadata.error missing")
	}

	stats := reg.Stats()
	if stats["Flaky"].Executions != 1 {
		t.Errorf("execution not recorded")
	}
}

type failingWorker struct{}

func (w *failingWorker) Name() string        { return "Flaky" }
func (w *failingWorker) Description() string { return "always fails" }
func (w *failingWorker) Type() worker.Type   { return worker.TypeSimple }
func (w *failingWorker) Priority() int       { return 1 }
func (w *failingWorker) Execute(context.Context, state.SupervisorState) (state.Update, error) {
	return state.Update{}, errors.New("boom")
}
