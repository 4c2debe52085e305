// Package worker defines the worker contract, the thread-safe worker
// registry, and the built-in workers shipped with the runtime.
package worker

import (
	"context"
	"fmt"

	"github.com/orchestrahq/maestro/pkg/protocol"
	"github.com/orchestrahq/maestro/pkg/state"
)

// Type classifies how a worker produces its answer.
type Type string

const (
	TypeSimple     Type = "simple"
	TypeToolBased  Type = "tool_based"
	TypeSubgraph   Type = "subgraph"
	TypeLLMPowered Type = "llm_powered"
)

// Worker is a graph node that advances the conversation. Execute returns
// a partial update carrying at least one authored message and the
// worker's name; expected failures (LLM errors, tool errors) are folded
// into the update via ErrorUpdate rather than returned.
type Worker interface {
	Name() string
	Description() string
	Type() Type
	// Priority orders workers in the planner-facing description; higher
	// sorts first.
	Priority() int
	Execute(ctx context.Context, s state.SupervisorState) (state.Update, error)
}

// SuccessUpdate builds the standard success response: an authored
// assistant message, the current step marked completed with a truncated
// result, and the step index advanced.
func SuccessUpdate(s state.SupervisorState, name, content string) state.Update {
	u := state.Update{
		Messages:      []protocol.Message{protocol.NewAssistantMessage(content, name)},
		CurrentWorker: state.StringPtr(name),
	}
	if step, ok := s.CurrentStep(); ok {
		plan := append([]state.TaskStep(nil), s.TaskPlan...)
		step.Status = state.TaskCompleted
		step.Result = state.TruncateResult(content)
		plan[s.CurrentStepIndex] = step
		u.TaskPlan = plan
		u.CurrentStepIndex = state.IntPtr(s.CurrentStepIndex + 1)
	}
	return u
}

// ErrorUpdate builds the standard failure response: an authored message
// describing the failure, the current step marked failed, the step index
// advanced, and the error recorded in metadata.
func ErrorUpdate(s state.SupervisorState, name string, err error) state.Update {
	msg := fmt.Sprintf("Execution failed: %v", err)
	u := state.Update{
		Messages:      []protocol.Message{protocol.NewAssistantMessage(msg, name)},
		CurrentWorker: state.StringPtr(name),
		Metadata: map[string]any{
			"error":      err.Error(),
			"error_type": fmt.Sprintf("%T", err),
		},
	}
	if step, ok := s.CurrentStep(); ok {
		plan := append([]state.TaskStep(nil), s.TaskPlan...)
		step.Status = state.TaskFailed
		step.Error = err.Error()
		plan[s.CurrentStepIndex] = step
		u.TaskPlan = plan
		u.CurrentStepIndex = state.IntPtr(s.CurrentStepIndex + 1)
	}
	return u
}

// stepHint renders the current step description as a prompt preamble.
// Empty when there is no active step.
func stepHint(s state.SupervisorState) string {
	if step, ok := s.CurrentStep(); ok && step.Description != "" {
		return fmt.Sprintf("Current task: %s\n\n", step.Description)
	}
	return ""
}
