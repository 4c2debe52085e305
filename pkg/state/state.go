// Package state defines the supervisor conversation state and the
// reducer that merges node updates into it.
package state

import (
	"time"

	"github.com/orchestrahq/maestro/pkg/protocol"
)

const (
	// MaxIterations caps supervisor entries per request to prevent
	// unbounded plan/route loops.
	MaxIterations = 10

	// MaxTaskSteps caps the length of a task plan.
	MaxTaskSteps = 8

	// Finish is the routing literal that terminates the graph.
	Finish = "FINISH"

	// MaxResultLength bounds the per-step result summary stored in the
	// task plan.
	MaxResultLength = 200
)

// TaskStatus is the lifecycle state of a plan step.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskSkipped    TaskStatus = "skipped"
)

// Terminal reports whether a step in this status will not execute again.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskSkipped || s == TaskFailed
}

// TaskStep is one step of a plan. Position in the plan list is execution
// order.
type TaskStep struct {
	StepID      string     `json:"step_id"`
	Worker      string     `json:"worker"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	Result      string     `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// ThinkingKind classifies audit entries.
type ThinkingKind string

const (
	ThinkingPlanning   ThinkingKind = "planning"
	ThinkingReasoning  ThinkingKind = "reasoning"
	ThinkingDecision   ThinkingKind = "decision"
	ThinkingReflection ThinkingKind = "reflection"
)

// ThinkingStep is an append-only audit entry. It is never consulted for
// control flow.
type ThinkingStep struct {
	Kind      ThinkingKind `json:"kind"`
	Content   string       `json:"content"`
	Timestamp float64      `json:"timestamp"`
	Worker    string       `json:"worker,omitempty"`
}

// NewThinkingStep creates an audit entry stamped with the current time.
func NewThinkingStep(kind ThinkingKind, content, worker string) ThinkingStep {
	return ThinkingStep{
		Kind:      kind,
		Content:   content,
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
		Worker:    worker,
	}
}

// NewTaskStep creates a pending plan step.
func NewTaskStep(stepID, worker, description string) TaskStep {
	return TaskStep{
		StepID:      stepID,
		Worker:      worker,
		Description: description,
		Status:      TaskPending,
	}
}

// UserContext carries per-request identity and preferences.
// Preferences holds per-request model selection hints.
type UserContext struct {
	UserID      string         `json:"user_id,omitempty"`
	SessionID   string         `json:"session_id,omitempty"`
	Language    string         `json:"language"`
	Timezone    string         `json:"timezone"`
	Permissions []string       `json:"permissions,omitempty"`
	Preferences map[string]any `json:"preferences,omitempty"`
}

// DefaultUserContext returns the context applied when the caller supplies
// none.
func DefaultUserContext() UserContext {
	return UserContext{
		Language:    "zh-CN",
		Timezone:    "Asia/Shanghai",
		Preferences: map[string]any{},
	}
}

// SupervisorState is the root entity of a request. It is created by the
// service, mutated only through reducer merges, and discarded or
// checkpointed when the graph finishes.
type SupervisorState struct {
	Messages         []protocol.Message `json:"messages"`
	Next             string             `json:"next"`
	TaskPlan         []TaskStep         `json:"task_plan"`
	CurrentStepIndex int                `json:"current_step_index"`
	OriginalQuery    string             `json:"original_query"`
	UserContext      UserContext        `json:"user_context"`
	CurrentWorker    string             `json:"current_worker,omitempty"`
	IterationCount   int                `json:"iteration_count"`
	ThinkingSteps    []ThinkingStep     `json:"thinking_steps,omitempty"`
	Metadata         map[string]any     `json:"metadata,omitempty"`
}

// NewState returns the default initial state.
func NewState() SupervisorState {
	return SupervisorState{
		UserContext: DefaultUserContext(),
		Metadata:    map[string]any{},
	}
}

// CurrentStep returns the step at CurrentStepIndex, if in range.
func (s *SupervisorState) CurrentStep() (TaskStep, bool) {
	if s.CurrentStepIndex >= 0 && s.CurrentStepIndex < len(s.TaskPlan) {
		return s.TaskPlan[s.CurrentStepIndex], true
	}
	return TaskStep{}, false
}

// Query returns the original user query, falling back to the last user
// message.
func (s *SupervisorState) Query() string {
	if s.OriginalQuery != "" {
		return s.OriginalQuery
	}
	return protocol.LastUserQuery(s.Messages)
}

// CompletedSteps counts steps that will not execute again because they
// completed or were skipped.
func (s *SupervisorState) CompletedSteps() int {
	n := 0
	for _, step := range s.TaskPlan {
		if step.Status == TaskCompleted || step.Status == TaskSkipped {
			n++
		}
	}
	return n
}

// TruncateResult bounds a step result summary to MaxResultLength runes.
func TruncateResult(content string) string {
	runes := []rune(content)
	if len(runes) <= MaxResultLength {
		return content
	}
	return string(runes[:MaxResultLength-3]) + "..."
}
