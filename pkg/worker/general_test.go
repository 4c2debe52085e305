package worker

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/orchestrahq/maestro/pkg/llms"
	"github.com/orchestrahq/maestro/pkg/prompts"
	"github.com/orchestrahq/maestro/pkg/protocol"
	"github.com/orchestrahq/maestro/pkg/state"
	"github.com/orchestrahq/maestro/pkg/tools"
)

func newGeneral(model *fakeModel) *General {
	reg := tools.NewRegistry()
	_ = reg.Register(tools.DatetimeToolName, tools.NewDatetimeTool("UTC"))
	return NewGeneral(llms.StaticFactory{Model: model}, prompts.New(), reg, NewFallbackManager())
}

func TestGeneralDirectAnswer(t *testing.T) {
	model := &fakeModel{responses: []fakeResponse{{text: "plain answer"}}}
	w := newGeneral(model)

	s := planState("hello", state.NewTaskStep("1", "General", "respond"))
	u, err := w.Execute(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	if u.Messages[0].Content != "plain answer" {
		t.Errorf("content = %q", u.Messages[0].Content)
	}
	if len(model.lastTools) == 0 {
		t.Errorf("first attempt must bind tools")
	}
}

func TestGeneralToolCallRoundTrip(t *testing.T) {
	model := &fakeModel{responses: []fakeResponse{
		{toolCalls: []protocol.ToolCall{{ID: "c1", Name: tools.DatetimeToolName, Args: map[string]any{}}}},
		{text: "it is late"},
	}}
	w := newGeneral(model)

	u, err := w.Execute(context.Background(), planState("what time is it"))
	if err != nil {
		t.Fatal(err)
	}
	if u.Messages[0].Content != "it is late" {
		t.Errorf("content = %q", u.Messages[0].Content)
	}
	if model.calls != 2 {
		t.Errorf("expected tool round trip (2 calls), got %d", model.calls)
	}
}

func TestGeneralToolsUnsupportedFallback(t *testing.T) {
	model := &fakeModel{responses: []fakeResponse{
		{err: errors.New("model xyz does not support tools")},
		{text: "fallback answer"},
	}}
	w := newGeneral(model)

	u, err := w.Execute(context.Background(), planState("what day is it"))
	if err != nil {
		t.Fatal(err)
	}
	if u.Messages[0].Content != "fallback answer" {
		t.Errorf("content = %q", u.Messages[0].Content)
	}
	if !w.toolsUnsupported.Load() {
		t.Errorf("tools-unsupported flag must flip")
	}

	// Second execution goes straight to fallback, no tool attempt.
	model.responses = append(model.responses, fakeResponse{text: "second"})
	if _, err := w.Execute(context.Background(), planState("again")); err != nil {
		t.Fatal(err)
	}
	if model.lastTools != nil {
		t.Errorf("fallback path must not bind tools")
	}
}

func TestGeneralOtherErrorIsFailure(t *testing.T) {
	model := &fakeModel{responses: []fakeResponse{{err: errors.New("rate limited")}}}
	w := newGeneral(model)

	s := planState("q", state.NewTaskStep("1", "General", "respond"))
	u, err := w.Execute(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	if u.TaskPlan[0].Status != state.TaskFailed {
		t.Errorf("non-tool errors mark the step failed, got %s", u.TaskPlan[0].Status)
	}
	if w.toolsUnsupported.Load() {
		t.Errorf("flag must only flip on tool-binding rejection")
	}
}

func TestRecentHistoryWindow(t *testing.T) {
	var messages []protocol.Message
	messages = append(messages, protocol.NewSystemMessage("sys"))
	for i := 0; i < 10; i++ {
		messages = append(messages, protocol.NewUserMessage("u"))
		messages = append(messages, protocol.NewAssistantMessage("a", "General"))
	}
	messages = append(messages, protocol.NewToolMessage("tool out", "c1"))

	got := recentHistory(messages, historyWindow)
	if len(got) != historyWindow {
		t.Fatalf("history length = %d, want %d", len(got), historyWindow)
	}
	for _, msg := range got {
		if msg.Role != protocol.RoleUser && msg.Role != protocol.RoleAssistant {
			t.Errorf("history must only carry user/assistant turns, got %s", msg.Role)
		}
	}
}

func TestWriterContributions(t *testing.T) {
	messages := []protocol.Message{
		protocol.NewUserMessage("q"),
		protocol.NewAssistantMessage("research notes", "Researcher"),
		protocol.NewAssistantMessage("analysis", "DataAnalyst"),
	}
	got := formatContributions(messages)
	if !strings.Contains(got, "### Researcher") || !strings.Contains(got, "### DataAnalyst") {
		t.Errorf("contributions missing sections: %q", got)
	}
	if formatContributions(nil) == "" {
		t.Errorf("empty contributions need a placeholder")
	}
}
