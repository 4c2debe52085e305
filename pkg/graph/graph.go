// Package graph is a small cooperative scheduler over named nodes
// sharing a reduced state.
//
// Exactly one node runs at a time per request; after each node its
// partial update is merged through the state reducer and streamed to the
// consumer before the next node is chosen. Cancellation is cooperative:
// the engine checks the context between nodes, never mid-node.
package graph

import (
	"context"
	"fmt"

	"github.com/orchestrahq/maestro/pkg/state"
)

// End is the terminal routing target.
const End = "END"

// maxTransitions is an engine-level backstop against wiring mistakes;
// well-formed graphs terminate on their own iteration caps long before
// reaching it.
const maxTransitions = 64

// NodeFunc executes one node. Expected domain failures are folded into
// the update; a returned error is an infrastructure failure that aborts
// the run.
type NodeFunc func(ctx context.Context, s state.SupervisorState) (state.Update, error)

// RouteFunc picks the next node from the merged state. Returning End
// terminates the run.
type RouteFunc func(s state.SupervisorState) string

// StreamFunc receives each node's partial update plus the post-merge
// state. Returning an error aborts the run before the next node.
type StreamFunc func(node string, u state.Update, merged state.SupervisorState) error

// Graph is an immutable compiled graph. Build one per worker-set
// generation and share it across requests.
type Graph struct {
	entry       string
	nodes       map[string]NodeFunc
	edges       map[string]string
	conditional map[string]RouteFunc
}

// New creates a graph with the given entry node name.
func New(entry string) *Graph {
	return &Graph{
		entry:       entry,
		nodes:       make(map[string]NodeFunc),
		edges:       make(map[string]string),
		conditional: make(map[string]RouteFunc),
	}
}

// AddNode registers a node.
func (g *Graph) AddNode(name string, fn NodeFunc) *Graph {
	g.nodes[name] = fn
	return g
}

// AddEdge wires an unconditional from -> to transition.
func (g *Graph) AddEdge(from, to string) *Graph {
	g.edges[from] = to
	return g
}

// AddConditionalEdge wires a routed transition out of from.
func (g *Graph) AddConditionalEdge(from string, route RouteFunc) *Graph {
	g.conditional[from] = route
	return g
}

// Run executes the graph to completion and returns the final state.
func (g *Graph) Run(ctx context.Context, initial state.SupervisorState) (state.SupervisorState, error) {
	return g.Stream(ctx, initial, nil)
}

// Stream executes the graph, invoking stream after every node. The
// consumer dictates pace: the next node does not start until stream
// returns.
func (g *Graph) Stream(ctx context.Context, initial state.SupervisorState, stream StreamFunc) (state.SupervisorState, error) {
	current := initial
	node := g.entry

	for transitions := 0; ; transitions++ {
		if transitions >= maxTransitions {
			return current, fmt.Errorf("graph exceeded %d transitions at node '%s'", maxTransitions, node)
		}
		if err := ctx.Err(); err != nil {
			return current, err
		}

		fn, ok := g.nodes[node]
		if !ok {
			return current, fmt.Errorf("graph routed to unknown node '%s'", node)
		}

		update, err := fn(ctx, current)
		if err != nil {
			return current, fmt.Errorf("node '%s' failed: %w", node, err)
		}
		current = state.Apply(current, update)

		if stream != nil {
			if err := stream(node, update, current); err != nil {
				return current, err
			}
		}

		next, err := g.next(node, current)
		if err != nil {
			return current, err
		}
		if next == End {
			return current, nil
		}
		node = next
	}
}

func (g *Graph) next(node string, s state.SupervisorState) (string, error) {
	if route, ok := g.conditional[node]; ok {
		return route(s), nil
	}
	if to, ok := g.edges[node]; ok {
		return to, nil
	}
	return "", fmt.Errorf("node '%s' has no outgoing edge", node)
}
