// Package service is the request-facing orchestration layer: it gates
// queries through the performance layer, runs the supervisor graph, and
// shapes the result as a response or an event stream.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/orchestrahq/maestro/pkg/checkpoint"
	"github.com/orchestrahq/maestro/pkg/config"
	"github.com/orchestrahq/maestro/pkg/graph"
	"github.com/orchestrahq/maestro/pkg/llms"
	"github.com/orchestrahq/maestro/pkg/performance"
	"github.com/orchestrahq/maestro/pkg/prompts"
	"github.com/orchestrahq/maestro/pkg/protocol"
	"github.com/orchestrahq/maestro/pkg/state"
	"github.com/orchestrahq/maestro/pkg/supervisor"
	"github.com/orchestrahq/maestro/pkg/worker"
)

// cacheWriteTimeout bounds the fire-and-forget cache insert.
const cacheWriteTimeout = 10 * time.Second

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "maestro_requests_total",
	Help: "Requests by outcome.",
}, []string{"outcome"})

// Result is the non-streaming response.
type Result struct {
	Answer string `json:"answer"`
	// Source is set for performance-layer hits ("rule_engine" or
	// "semantic_cache").
	Source string `json:"source,omitempty"`
	Cached bool   `json:"cached"`
	State  *state.SupervisorState `json:"-"`
}

// Service runs requests through the performance layer and the graph.
type Service struct {
	cfg         config.Config
	models      llms.Factory
	prompts     *prompts.Manager
	workers     *worker.Registry
	perf        *performance.Layer
	checkpoints checkpoint.Checkpointer
}

// New assembles the service. perf may be nil (performance layer
// disabled); checkpoints must not be nil.
func New(cfg config.Config, models llms.Factory, pm *prompts.Manager, workers *worker.Registry, perf *performance.Layer, cp checkpoint.Checkpointer) *Service {
	return &Service{
		cfg:         cfg,
		models:      models,
		prompts:     pm,
		workers:     workers,
		perf:        perf,
		checkpoints: cp,
	}
}

// Run answers a message without streaming.
func (s *Service) Run(ctx context.Context, message, threadID string, uc *state.UserContext) (Result, error) {
	if message == "" {
		requestsTotal.WithLabelValues("invalid").Inc()
		return Result{}, fmt.Errorf("message must not be empty")
	}

	if hit := s.perf.ProcessQuery(ctx, message); hit != nil {
		requestsTotal.WithLabelValues("performance_hit").Inc()
		return Result{Answer: hit.Answer, Source: hit.Source, Cached: true}, nil
	}

	final, err := s.runGraph(ctx, message, threadID, uc, nil)
	if err != nil {
		requestsTotal.WithLabelValues("error").Inc()
		return Result{}, err
	}

	answer := finalAnswer(final)
	s.finish(message, threadID, answer, final)
	requestsTotal.WithLabelValues("ok").Inc()
	return Result{Answer: answer, State: &final}, nil
}

// RunStream answers a message as a stream of events. The emitter is
// called in order; exactly one start event and one of done/error frame
// the stream.
func (s *Service) RunStream(ctx context.Context, message, threadID string, uc *state.UserContext, emit EmitFunc) error {
	if err := emit(StreamEvent{Type: EventStart}); err != nil {
		return err
	}

	if message == "" {
		requestsTotal.WithLabelValues("invalid").Inc()
		return emit(StreamEvent{Type: EventError, Content: "message must not be empty"})
	}

	if hit := s.perf.ProcessQuery(ctx, message); hit != nil {
		requestsTotal.WithLabelValues("performance_hit").Inc()
		if err := emit(StreamEvent{Type: EventAnswer, Content: hit.Answer}); err != nil {
			return err
		}
		return emit(StreamEvent{Type: EventDone})
	}

	var emitFailed bool
	final, err := s.runGraph(ctx, message, threadID, uc, func(node string, u state.Update, merged state.SupervisorState) error {
		if err := emitNodeEvents(emit, node, u, merged); err != nil {
			emitFailed = true
			return err
		}
		return nil
	})
	if err != nil {
		if emitFailed {
			// The consumer aborted; it must not see another event.
			return err
		}
		requestsTotal.WithLabelValues("error").Inc()
		slog.Error("Stream run failed", "thread", threadID, "error", err)
		// Short message only; internals stay internal.
		return emit(StreamEvent{Type: EventError, Content: "request failed"})
	}

	s.finish(message, threadID, finalAnswer(final), final)
	requestsTotal.WithLabelValues("ok").Inc()
	return emit(StreamEvent{Type: EventDone})
}

// GetState returns the checkpointed state for a thread.
func (s *Service) GetState(ctx context.Context, threadID string) (state.SupervisorState, bool, error) {
	return s.checkpoints.Load(ctx, threadID)
}

// GetHistory returns the checkpointed conversation for a thread.
func (s *Service) GetHistory(ctx context.Context, threadID string) ([]protocol.Message, error) {
	st, ok, err := s.checkpoints.Load(ctx, threadID)
	if err != nil || !ok {
		return nil, err
	}
	return st.Messages, nil
}

// runGraph seeds the initial state, compiles the per-request graph over
// a registry snapshot, and runs it to completion.
func (s *Service) runGraph(ctx context.Context, message, threadID string, uc *state.UserContext, stream graph.StreamFunc) (state.SupervisorState, error) {
	initial := s.seedState(ctx, message, threadID, uc)

	snap := s.workers.Snapshot()
	node := supervisor.NewNode(s.models, s.prompts, snap, s.cfg.Supervisor)
	g := graph.BuildSupervisorGraph(supervisor.NodeName, node.Execute, snap, s.workers)

	return g.Stream(ctx, initial, stream)
}

// seedState builds the request's initial state: prior thread messages
// (when checkpointed), the new user message, and the merged context.
func (s *Service) seedState(ctx context.Context, message, threadID string, uc *state.UserContext) state.SupervisorState {
	initial := state.NewState()
	if threadID != "" {
		if prior, ok, err := s.checkpoints.Load(ctx, threadID); err == nil && ok {
			initial.Messages = prior.Messages
		}
	}
	initial.Messages = append(initial.Messages, protocol.NewUserMessage(message))
	initial.OriginalQuery = message
	if uc != nil {
		merged := state.DefaultUserContext()
		if uc.UserID != "" {
			merged.UserID = uc.UserID
		}
		if uc.SessionID != "" {
			merged.SessionID = uc.SessionID
		}
		if uc.Language != "" {
			merged.Language = uc.Language
		}
		if uc.Timezone != "" {
			merged.Timezone = uc.Timezone
		}
		if len(uc.Permissions) > 0 {
			merged.Permissions = uc.Permissions
		}
		for k, v := range uc.Preferences {
			merged.Preferences[k] = v
		}
		initial.UserContext = merged
	}
	return initial
}

// finish persists the checkpoint and schedules the fire-and-forget
// cache insert.
func (s *Service) finish(query, threadID, answer string, final state.SupervisorState) {
	if threadID != "" {
		if err := s.checkpoints.Save(context.Background(), threadID, final); err != nil {
			slog.Warn("Checkpoint save failed", "thread", threadID, "error", err)
		}
	}

	if answer == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
		defer cancel()
		s.perf.CacheAnswer(ctx, query, answer, map[string]any{"worker": final.CurrentWorker})
	}()
}

// emitNodeEvents applies the streaming rules for one node completion.
// Supervisor internals are never exposed; only worker messages and plan
// progress leave the process.
func emitNodeEvents(emit EmitFunc, node string, u state.Update, merged state.SupervisorState) error {
	current := merged.CompletedSteps()
	total := len(merged.TaskPlan)

	if node != supervisor.NodeName && len(u.Messages) > 0 {
		event := StreamEvent{Type: EventAnswer, Content: u.Messages[len(u.Messages)-1].Content}
		if total > 0 {
			event.Progress = &Progress{Current: current, Total: total}
		}
		return emit(event)
	}

	if node == supervisor.NodeName && current > 0 && total > 1 {
		return emit(StreamEvent{Type: EventProgress, Progress: &Progress{Current: current, Total: total}})
	}
	return nil
}

// finalAnswer picks the last authored assistant message.
func finalAnswer(s state.SupervisorState) string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		msg := s.Messages[i]
		if msg.Role == protocol.RoleAssistant && msg.Name != "" {
			return msg.Content
		}
	}
	return ""
}
