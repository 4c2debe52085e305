package state

import (
	"testing"

	"github.com/orchestrahq/maestro/pkg/protocol"
)

func TestApplyMessagesAppend(t *testing.T) {
	current := NewState()
	current.Messages = []protocol.Message{protocol.NewUserMessage("hello")}

	next := Apply(current, Update{
		Messages: []protocol.Message{protocol.NewAssistantMessage("hi", "General")},
	})

	if len(next.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(next.Messages))
	}
	if len(current.Messages) != 1 {
		t.Errorf("Apply mutated the input state")
	}
}

func TestApplyMessagesDedupeByID(t *testing.T) {
	msg := protocol.NewAssistantMessage("draft", "Writer")
	current := NewState()
	current.Messages = []protocol.Message{protocol.NewUserMessage("q"), msg}

	revised := msg
	revised.Content = "final"
	next := Apply(current, Update{Messages: []protocol.Message{revised}})

	if len(next.Messages) != 2 {
		t.Fatalf("expected in-place replacement, got %d messages", len(next.Messages))
	}
	if next.Messages[1].Content != "final" {
		t.Errorf("expected replaced content, got %q", next.Messages[1].Content)
	}
}

func TestApplyLastWriterFields(t *testing.T) {
	current := NewState()
	current.Next = "General"
	current.IterationCount = 2

	next := Apply(current, Update{
		Next:           StringPtr(Finish),
		IterationCount: IntPtr(3),
		CurrentWorker:  StringPtr("Writer"),
	})

	if next.Next != Finish {
		t.Errorf("Next = %q, want %q", next.Next, Finish)
	}
	if next.IterationCount != 3 {
		t.Errorf("IterationCount = %d, want 3", next.IterationCount)
	}
	if next.CurrentWorker != "Writer" {
		t.Errorf("CurrentWorker = %q, want Writer", next.CurrentWorker)
	}
}

func TestApplyEmptyNextIsMeaningful(t *testing.T) {
	current := NewState()
	current.Next = "General"

	next := Apply(current, Update{Next: StringPtr("")})
	if next.Next != "" {
		t.Errorf("explicit empty Next should clear the field, got %q", next.Next)
	}

	unchanged := Apply(current, Update{})
	if unchanged.Next != "General" {
		t.Errorf("nil Next should leave the field alone, got %q", unchanged.Next)
	}
}

func TestApplyTaskPlanReplaceAndClear(t *testing.T) {
	current := NewState()
	current.TaskPlan = []TaskStep{NewTaskStep("a", "General", "x")}

	kept := Apply(current, Update{})
	if len(kept.TaskPlan) != 1 {
		t.Errorf("nil TaskPlan should keep the plan, got %d steps", len(kept.TaskPlan))
	}

	cleared := Apply(current, Update{TaskPlan: []TaskStep{}})
	if len(cleared.TaskPlan) != 0 {
		t.Errorf("empty non-nil TaskPlan should clear the plan, got %d steps", len(cleared.TaskPlan))
	}

	replaced := Apply(current, Update{TaskPlan: []TaskStep{
		NewTaskStep("b", "Writer", "y"),
		NewTaskStep("c", "General", "z"),
	}})
	if len(replaced.TaskPlan) != 2 {
		t.Errorf("TaskPlan should be replaced wholesale, got %d steps", len(replaced.TaskPlan))
	}
}

func TestApplyMetadataShallowMerge(t *testing.T) {
	current := NewState()
	current.Metadata = map[string]any{"a": 1, "b": 1}

	next := Apply(current, Update{Metadata: map[string]any{"b": 2, "c": 3}})

	if next.Metadata["a"] != 1 || next.Metadata["b"] != 2 || next.Metadata["c"] != 3 {
		t.Errorf("unexpected metadata merge: %v", next.Metadata)
	}
	if current.Metadata["b"] != 1 {
		t.Errorf("Apply mutated input metadata")
	}
}

func TestApplyThinkingStepsAppend(t *testing.T) {
	current := NewState()
	current.ThinkingSteps = []ThinkingStep{NewThinkingStep(ThinkingPlanning, "one", "supervisor")}

	next := Apply(current, Update{ThinkingSteps: []ThinkingStep{
		NewThinkingStep(ThinkingDecision, "two", "supervisor"),
	}})

	if len(next.ThinkingSteps) != 2 {
		t.Fatalf("expected 2 thinking steps, got %d", len(next.ThinkingSteps))
	}
	if next.ThinkingSteps[0].Content != "one" || next.ThinkingSteps[1].Content != "two" {
		t.Errorf("thinking steps out of order")
	}
}

func TestTruncateResult(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantLen int
		ellipse bool
	}{
		{"short", "hello", 5, false},
		{"exact", string(make([]rune, MaxResultLength)), MaxResultLength, false},
		{"long", string(make([]rune, MaxResultLength+50)), MaxResultLength, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateResult(tt.input)
			if n := len([]rune(got)); n != tt.wantLen {
				t.Errorf("length = %d, want %d", n, tt.wantLen)
			}
			if tt.ellipse && got[len(got)-3:] != "..." {
				t.Errorf("expected ellipsis suffix")
			}
		})
	}
}

func TestCompletedStepsCountsSkipped(t *testing.T) {
	s := NewState()
	s.TaskPlan = []TaskStep{
		{Status: TaskCompleted},
		{Status: TaskSkipped},
		{Status: TaskFailed},
		{Status: TaskPending},
	}
	if got := s.CompletedSteps(); got != 2 {
		t.Errorf("CompletedSteps = %d, want 2 (completed + skipped only)", got)
	}
}

func TestQueryFallsBackToLastUserMessage(t *testing.T) {
	s := NewState()
	s.Messages = []protocol.Message{
		protocol.NewUserMessage("first"),
		protocol.NewAssistantMessage("answer", "General"),
		protocol.NewUserMessage("second"),
	}
	if got := s.Query(); got != "second" {
		t.Errorf("Query = %q, want second", got)
	}

	s.OriginalQuery = "original"
	if got := s.Query(); got != "original" {
		t.Errorf("Query = %q, want original", got)
	}
}
