package graph

import (
	"context"
	"log/slog"

	"github.com/orchestrahq/maestro/pkg/state"
	"github.com/orchestrahq/maestro/pkg/worker"
)

// SupervisorFunc is the entry node implementation supplied by the
// caller; it decides routing by setting Next on its update.
type SupervisorFunc = NodeFunc

// BuildSupervisorGraph compiles the standard topology: a supervisor
// entry node with a conditional edge driven by state.Next, one node per
// worker in the snapshot, and an edge from every worker back to the
// supervisor.
func BuildSupervisorGraph(entry string, sup SupervisorFunc, snap *worker.Snapshot, reg *worker.Registry) *Graph {
	g := New(entry)
	g.AddNode(entry, sup)

	for _, w := range snap.Workers() {
		g.AddNode(w.Name(), workerNode(w, reg))
		g.AddEdge(w.Name(), entry)
	}

	g.AddConditionalEdge(entry, func(s state.SupervisorState) string {
		if s.Next == "" || s.Next == state.Finish {
			return End
		}
		if _, ok := snap.Lookup(s.Next); !ok {
			slog.Warn("Supervisor routed to unknown worker, finishing", "next", s.Next)
			return End
		}
		return s.Next
	})
	return g
}

// workerNode adapts a Worker into a NodeFunc. A returned error is
// folded into the state here so worker failures never abort the graph.
func workerNode(w worker.Worker, reg *worker.Registry) NodeFunc {
	return func(ctx context.Context, s state.SupervisorState) (state.Update, error) {
		if reg != nil {
			reg.RecordExecution(w.Name())
		}
		u, err := w.Execute(ctx, s)
		if err != nil {
			slog.Error("Worker returned an error", "worker", w.Name(), "error", err)
			return worker.ErrorUpdate(s, w.Name(), err), nil
		}
		return u, nil
	}
}
