package state

import "github.com/orchestrahq/maestro/pkg/protocol"

// Update is a partial state returned by a node. Nil-valued fields leave
// the current state untouched; the per-field semantics are listed in the
// reducer table below.
type Update struct {
	// Messages are appended; a message whose id matches an existing one
	// replaces it in place.
	Messages []protocol.Message
	// Next is a last-writer field. The empty string is meaningful ("no
	// decision yet"), so it is a pointer.
	Next *string
	// TaskPlan replaces the whole list when non-nil. An empty non-nil
	// slice clears the plan (replanning).
	TaskPlan []TaskStep
	// CurrentStepIndex is last-writer.
	CurrentStepIndex *int
	// OriginalQuery is last-writer.
	OriginalQuery *string
	// UserContext is last-writer.
	UserContext *UserContext
	// CurrentWorker is last-writer.
	CurrentWorker *string
	// IterationCount is last-writer.
	IterationCount *int
	// ThinkingSteps are appended.
	ThinkingSteps []ThinkingStep
	// Metadata is shallow-merged key by key.
	Metadata map[string]any
}

// IsZero reports whether the update changes nothing.
func (u Update) IsZero() bool {
	return u.Messages == nil && u.Next == nil && u.TaskPlan == nil &&
		u.CurrentStepIndex == nil && u.OriginalQuery == nil && u.UserContext == nil &&
		u.CurrentWorker == nil && u.IterationCount == nil && u.ThinkingSteps == nil &&
		u.Metadata == nil
}

// StringPtr is a helper for last-writer string fields.
func StringPtr(s string) *string { return &s }

// IntPtr is a helper for last-writer int fields.
func IntPtr(i int) *int { return &i }

// fieldReducer merges one state field from an update. Keeping the merge
// rules in a table avoids a switch that grows with every new field.
type fieldReducer struct {
	name  string
	apply func(dst *SupervisorState, u Update)
}

var reducers = []fieldReducer{
	{"messages", func(dst *SupervisorState, u Update) {
		if u.Messages == nil {
			return
		}
		dst.Messages = mergeMessages(dst.Messages, u.Messages)
	}},
	{"next", func(dst *SupervisorState, u Update) {
		if u.Next != nil {
			dst.Next = *u.Next
		}
	}},
	{"task_plan", func(dst *SupervisorState, u Update) {
		if u.TaskPlan != nil {
			dst.TaskPlan = append([]TaskStep(nil), u.TaskPlan...)
		}
	}},
	{"current_step_index", func(dst *SupervisorState, u Update) {
		if u.CurrentStepIndex != nil {
			dst.CurrentStepIndex = *u.CurrentStepIndex
		}
	}},
	{"original_query", func(dst *SupervisorState, u Update) {
		if u.OriginalQuery != nil {
			dst.OriginalQuery = *u.OriginalQuery
		}
	}},
	{"user_context", func(dst *SupervisorState, u Update) {
		if u.UserContext != nil {
			dst.UserContext = *u.UserContext
		}
	}},
	{"current_worker", func(dst *SupervisorState, u Update) {
		if u.CurrentWorker != nil {
			dst.CurrentWorker = *u.CurrentWorker
		}
	}},
	{"iteration_count", func(dst *SupervisorState, u Update) {
		if u.IterationCount != nil {
			dst.IterationCount = *u.IterationCount
		}
	}},
	{"thinking_steps", func(dst *SupervisorState, u Update) {
		if u.ThinkingSteps != nil {
			dst.ThinkingSteps = append(dst.ThinkingSteps, u.ThinkingSteps...)
		}
	}},
	{"metadata", func(dst *SupervisorState, u Update) {
		if u.Metadata == nil {
			return
		}
		if dst.Metadata == nil {
			dst.Metadata = make(map[string]any, len(u.Metadata))
		}
		for k, v := range u.Metadata {
			dst.Metadata[k] = v
		}
	}},
}

// Apply merges an update into the current state and returns the result.
// Apply is pure with respect to its inputs: the current state is copied,
// never mutated.
func Apply(current SupervisorState, u Update) SupervisorState {
	next := current
	next.Messages = append([]protocol.Message(nil), current.Messages...)
	next.TaskPlan = append([]TaskStep(nil), current.TaskPlan...)
	next.ThinkingSteps = append([]ThinkingStep(nil), current.ThinkingSteps...)
	if current.Metadata != nil {
		next.Metadata = make(map[string]any, len(current.Metadata))
		for k, v := range current.Metadata {
			next.Metadata[k] = v
		}
	}

	for _, r := range reducers {
		r.apply(&next, u)
	}
	return next
}

// mergeMessages appends new messages, honoring stable ids: a message with
// an id equal to an existing one replaces it in place.
func mergeMessages(existing, incoming []protocol.Message) []protocol.Message {
	byID := make(map[string]int, len(existing))
	for i, msg := range existing {
		if msg.ID != "" {
			byID[msg.ID] = i
		}
	}

	merged := existing
	for _, msg := range incoming {
		if msg.ID != "" {
			if i, ok := byID[msg.ID]; ok {
				merged[i] = msg
				continue
			}
			byID[msg.ID] = len(merged)
		}
		merged = append(merged, msg)
	}
	return merged
}
