// Package supervisor implements the planner/router node that drives the
// worker graph.
//
// The node is deliberately conservative about LLM calls: planning runs
// once per (re)plan, and routing takes one of three deterministic fast
// paths whenever the plan state allows, so a typical multi-step request
// pays for exactly one supervisor LLM call.
package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/orchestrahq/maestro/pkg/config"
	"github.com/orchestrahq/maestro/pkg/llms"
	"github.com/orchestrahq/maestro/pkg/prompts"
	"github.com/orchestrahq/maestro/pkg/protocol"
	"github.com/orchestrahq/maestro/pkg/state"
	"github.com/orchestrahq/maestro/pkg/worker"
)

// NodeName is the supervisor's node name in the graph.
const NodeName = "supervisor"

// fallbackWorker absorbs plan steps naming unknown workers.
const fallbackWorker = "General"

// typeSuffix matches a trailing " [type]" tag that models often echo
// from the worker list shown to them.
var typeSuffix = regexp.MustCompile(`\s*\[[A-Za-z_]+\]\s*$`)

// planOutput is the structured planning contract.
type planOutput struct {
	Steps []struct {
		Worker      string `json:"worker"`
		Description string `json:"description"`
	} `json:"steps"`
	Reasoning string `json:"reasoning"`
}

// routeOutput is the structured routing contract.
type routeOutput struct {
	Next         string `json:"next"`
	Reasoning    string `json:"reasoning"`
	ShouldReplan bool   `json:"should_replan"`
}

// Node decides what runs next. One Node serves one request; it holds the
// request's worker snapshot.
type Node struct {
	models  llms.Factory
	prompts *prompts.Manager
	workers *worker.Snapshot
	cfg     config.Supervisor
}

// NewNode creates a supervisor node over a per-request worker snapshot.
func NewNode(models llms.Factory, pm *prompts.Manager, snap *worker.Snapshot, cfg config.Supervisor) *Node {
	return &Node{models: models, prompts: pm, workers: snap, cfg: cfg}
}

// Execute runs one supervisor entry: guard, plan if needed, route.
// The guard path leaves IterationCount untouched so the finished state
// never exceeds the cap; every other path bumps it.
func (n *Node) Execute(ctx context.Context, s state.SupervisorState) (state.Update, error) {
	var u state.Update

	if s.IterationCount >= n.cfg.MaxIterations {
		slog.Warn("Iteration cap reached, finishing", "iterations", s.IterationCount)
		u.Next = state.StringPtr(state.Finish)
		u.Metadata = map[string]any{"terminated_reason": "max_iterations_reached"}
		return u, nil
	}
	u.IterationCount = state.IntPtr(s.IterationCount + 1)

	if n.workers.Len() == 0 {
		u.Next = state.StringPtr(state.Finish)
		return u, nil
	}

	plan := s.TaskPlan
	if len(plan) == 0 && n.cfg.EnablePlanning {
		planned, thinking := n.plan(ctx, s)
		plan = planned
		u.TaskPlan = planned
		u.CurrentStepIndex = state.IntPtr(0)
		u.ThinkingSteps = append(u.ThinkingSteps, thinking)
	}

	n.route(ctx, s, plan, &u)
	return u, nil
}

// plan asks the LLM for a task plan and normalizes it. Any failure
// degrades to a single-step fallback plan instead of erroring out.
func (n *Node) plan(ctx context.Context, s state.SupervisorState) ([]state.TaskStep, state.ThinkingStep) {
	out, err := n.generatePlan(ctx, s)
	if err != nil {
		slog.Warn("Planning failed, using single-step fallback", "error", err)
		return []state.TaskStep{
				state.NewTaskStep(uuid.NewString(), fallbackWorker, "Process user request"),
			}, state.NewThinkingStep(state.ThinkingPlanning,
				"Planning failed ("+err.Error()+"); falling back to a single General step", NodeName)
	}

	steps := make([]state.TaskStep, 0, len(out.Steps))
	for _, raw := range out.Steps {
		if len(steps) >= n.cfg.MaxTaskSteps {
			break
		}
		name := typeSuffix.ReplaceAllString(strings.TrimSpace(raw.Worker), "")
		if w, ok := n.workers.Lookup(name); ok {
			name = w.Name()
		} else {
			slog.Debug("Plan step names unknown worker, coercing", "worker", name)
			name = fallbackWorker
		}
		steps = append(steps, state.NewTaskStep(uuid.NewString(), name, raw.Description))
	}
	if len(steps) == 0 {
		steps = []state.TaskStep{state.NewTaskStep(uuid.NewString(), fallbackWorker, "Process user request")}
	}

	return steps, state.NewThinkingStep(state.ThinkingPlanning,
		fmt.Sprintf("Planned %d step(s): %s", len(steps), out.Reasoning), NodeName)
}

func (n *Node) generatePlan(ctx context.Context, s state.SupervisorState) (planOutput, error) {
	model, err := n.models.ForPreferences(s.UserContext.Preferences, n.cfg.Temperature)
	if err != nil {
		return planOutput{}, err
	}

	system := n.prompts.Get("supervisor.planning", map[string]string{
		"worker_list": n.workers.FormattedDescriptions(),
		"max_steps":   strconv.Itoa(n.cfg.MaxTaskSteps),
	})
	messages := append([]protocol.Message{protocol.NewSystemMessage(system)}, s.Messages...)
	messages = append(messages, protocol.NewUserMessage(n.prompts.Get("supervisor.planning_complete", nil)))

	schema := llms.ObjectSchema(map[string]any{
		"steps": map[string]any{
			"type": "array",
			"items": llms.ObjectSchema(map[string]any{
				"worker":      map[string]any{"type": "string"},
				"description": map[string]any{"type": "string"},
			}),
		},
		"reasoning": map[string]any{"type": "string"},
	})

	raw, err := model.GenerateStructured(ctx, messages, schema)
	if err != nil {
		return planOutput{}, err
	}
	var out planOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return planOutput{}, fmt.Errorf("malformed plan output: %w", err)
	}
	return out, nil
}

// route fills in u.Next, preferring the deterministic fast paths and
// calling the LLM only when the plan state is ambiguous.
func (n *Node) route(ctx context.Context, s state.SupervisorState, plan []state.TaskStep, u *state.Update) {
	completed := 0
	for _, step := range plan {
		if step.Status == state.TaskCompleted || step.Status == state.TaskSkipped {
			completed++
		}
	}
	total := len(plan)

	// Fast path A: every step is done.
	if total > 0 && completed >= total {
		u.Next = state.StringPtr(state.Finish)
		return
	}

	// Fast path B: a single-step plan whose answer already exists. Guards
	// against re-executing trivial plans after the worker has spoken.
	if total == 1 && completed == 0 && n.hasWorkerAnswer(s.Messages) {
		u.Next = state.StringPtr(state.Finish)
		return
	}

	// Fast path C: linear execution of the first unfinished step.
	if step, ok := firstOpenStep(plan); ok {
		name := step.Worker
		if w, ok := n.workers.Lookup(name); ok {
			name = w.Name()
		} else if _, ok := n.workers.Lookup(fallbackWorker); ok {
			name = fallbackWorker
		} else {
			u.Next = state.StringPtr(state.Finish)
			return
		}
		u.Next = state.StringPtr(name)
		u.ThinkingSteps = append(u.ThinkingSteps, state.NewThinkingStep(state.ThinkingDecision,
			fmt.Sprintf("Routing to %s: %s", name, step.Description), NodeName))
		return
	}

	n.routeWithLLM(ctx, s, plan, completed, total, u)
}

// routeWithLLM is the last-resort routing path. Its output is validated
// and coerced; an outright failure finishes the request with the error
// recorded in metadata.
func (n *Node) routeWithLLM(ctx context.Context, s state.SupervisorState, plan []state.TaskStep, completed, total int, u *state.Update) {
	out, err := n.generateRoute(ctx, s, plan, completed, total)
	if err != nil {
		slog.Warn("Routing decision failed, finishing", "error", err)
		u.Next = state.StringPtr(state.Finish)
		if u.Metadata == nil {
			u.Metadata = map[string]any{}
		}
		u.Metadata["error"] = err.Error()
		return
	}

	next := strings.TrimSpace(out.Next)
	if next != state.Finish {
		if w, ok := n.workers.Lookup(next); ok {
			next = w.Name()
		} else if name, ok := n.workerFromText(out.Reasoning); ok {
			next = name
		} else if step, ok := firstOpenStep(plan); ok {
			next = step.Worker
		} else {
			next = state.Finish
		}
	}

	// FINISH with unfinished steps left is almost always a model mistake.
	if next == state.Finish {
		if step, ok := firstOpenStep(plan); ok {
			if w, ok := n.workers.Lookup(step.Worker); ok {
				next = w.Name()
			} else if _, ok := n.workers.Lookup(fallbackWorker); ok {
				next = fallbackWorker
			}
		}
	}

	if out.ShouldReplan {
		// An empty non-nil plan clears it; the next supervisor entry
		// re-plans from scratch.
		u.TaskPlan = []state.TaskStep{}
		u.CurrentStepIndex = state.IntPtr(0)
	}

	u.Next = state.StringPtr(next)
	u.ThinkingSteps = append(u.ThinkingSteps, state.NewThinkingStep(state.ThinkingDecision,
		fmt.Sprintf("LLM routed to %s: %s", next, out.Reasoning), NodeName))
}

func (n *Node) generateRoute(ctx context.Context, s state.SupervisorState, plan []state.TaskStep, completed, total int) (routeOutput, error) {
	model, err := n.models.ForPreferences(s.UserContext.Preferences, n.cfg.Temperature)
	if err != nil {
		return routeOutput{}, err
	}

	system := n.prompts.Get("supervisor.routing", map[string]string{
		"worker_list":     n.workers.FormattedDescriptions(),
		"worker_options":  strings.Join(n.workers.Names(), ", "),
		"completed_steps": strconv.Itoa(completed),
		"total_steps":     strconv.Itoa(total),
		"task_plan":       formatPlan(plan),
	})
	messages := append([]protocol.Message{protocol.NewSystemMessage(system)}, s.Messages...)
	messages = append(messages, protocol.NewUserMessage(n.prompts.Get("supervisor.routing_decision", nil)))

	schema := llms.ObjectSchema(map[string]any{
		"next":          map[string]any{"type": "string"},
		"reasoning":     map[string]any{"type": "string"},
		"should_replan": map[string]any{"type": "boolean"},
	})

	raw, err := model.GenerateStructured(ctx, messages, schema)
	if err != nil {
		return routeOutput{}, err
	}
	var out routeOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return routeOutput{}, fmt.Errorf("malformed routing output: %w", err)
	}
	return out, nil
}

// hasWorkerAnswer reports whether any assistant message was authored by
// a worker in the snapshot.
func (n *Node) hasWorkerAnswer(messages []protocol.Message) bool {
	for _, msg := range messages {
		if msg.Role == protocol.RoleAssistant && msg.Name != "" {
			if _, ok := n.workers.Lookup(msg.Name); ok {
				return true
			}
		}
	}
	return false
}

// workerFromText scans free text for a registered worker name.
func (n *Node) workerFromText(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, name := range n.workers.Names() {
		if strings.Contains(lower, strings.ToLower(name)) {
			return name, true
		}
	}
	return "", false
}

// firstOpenStep returns the first step that has not reached a terminal
// status.
func firstOpenStep(plan []state.TaskStep) (state.TaskStep, bool) {
	for _, step := range plan {
		if !step.Status.Terminal() {
			return step, true
		}
	}
	return state.TaskStep{}, false
}

var statusEmoji = map[state.TaskStatus]string{
	state.TaskPending:    "⏳",
	state.TaskInProgress: "🔄",
	state.TaskCompleted:  "✅",
	state.TaskFailed:     "❌",
	state.TaskSkipped:    "⏭️",
}

// formatPlan renders the plan one line per step for the routing prompt.
func formatPlan(plan []state.TaskStep) string {
	lines := make([]string, len(plan))
	for i, step := range plan {
		emoji, ok := statusEmoji[step.Status]
		if !ok {
			emoji = "⏳"
		}
		lines[i] = fmt.Sprintf("%d. %s %s — %s", i+1, emoji, step.Worker, step.Description)
	}
	return strings.Join(lines, "\n")
}
