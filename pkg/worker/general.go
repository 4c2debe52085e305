package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/orchestrahq/maestro/pkg/llms"
	"github.com/orchestrahq/maestro/pkg/prompts"
	"github.com/orchestrahq/maestro/pkg/protocol"
	"github.com/orchestrahq/maestro/pkg/state"
	"github.com/orchestrahq/maestro/pkg/tools"
)

// historyWindow is how many recent user/assistant turns the General
// worker replays to the model.
const historyWindow = 6

// maxToolRounds bounds the call-tool-replay loop for one execution.
const maxToolRounds = 3

// General is the catch-all conversational worker. It attempts a
// tool-enabled call first (datetime lookups and friends) and degrades to
// a fallback prompt with literal tool output when the backing model
// rejects tool binding.
type General struct {
	models   llms.Factory
	prompts  *prompts.Manager
	tools    *tools.Registry
	fallback *FallbackManager

	// toolsUnsupported flips one way: once a model reports it cannot
	// bind tools, this instance never tries again.
	toolsUnsupported atomic.Bool
}

// NewGeneral creates the general worker. The tool registry should carry
// at least the datetime tool.
func NewGeneral(models llms.Factory, pm *prompts.Manager, tr *tools.Registry, fb *FallbackManager) *General {
	return &General{models: models, prompts: pm, tools: tr, fallback: fb}
}

func (w *General) Name() string { return "General" }
func (w *General) Description() string {
	return "Handles everyday conversation, current date and time questions, and anything no specialist covers."
}
func (w *General) Type() Type    { return TypeLLMPowered }
func (w *General) Priority() int { return 1 }

func (w *General) Execute(ctx context.Context, s state.SupervisorState) (state.Update, error) {
	model, err := w.models.ForPreferences(s.UserContext.Preferences, 0.5)
	if err != nil {
		return ErrorUpdate(s, w.Name(), err), nil
	}

	history := recentHistory(s.Messages, historyWindow)

	if !w.toolsUnsupported.Load() {
		answer, err := w.executeWithTools(ctx, model, s, history)
		if err == nil {
			return SuccessUpdate(s, w.Name(), answer), nil
		}
		if !isToolsUnsupported(err) {
			return ErrorUpdate(s, w.Name(), err), nil
		}
		w.toolsUnsupported.Store(true)
		slog.Info("Model does not support tools, switching to fallback prompt", "model", model.ModelName())
	}

	answer, err := w.executeWithFallback(ctx, model, s, history)
	if err != nil {
		return ErrorUpdate(s, w.Name(), err), nil
	}
	return SuccessUpdate(s, w.Name(), answer), nil
}

// executeWithTools runs the tool-enabled path: bind the tool schemas,
// execute any requested calls, replay the conversation with tool results
// appended, and return the final text.
func (w *General) executeWithTools(ctx context.Context, model llms.ChatModel, s state.SupervisorState, history []protocol.Message) (string, error) {
	system := w.prompts.Get("workers.general.system", map[string]string{
		"language": s.UserContext.Language,
	})
	messages := append([]protocol.Message{protocol.NewSystemMessage(system)}, history...)
	defs := w.tools.Definitions([]string{tools.DatetimeToolName})

	for round := 0; round < maxToolRounds; round++ {
		text, calls, err := model.Generate(ctx, messages, defs)
		if err != nil {
			return "", err
		}
		if len(calls) == 0 {
			return text, nil
		}

		messages = append(messages, protocol.NewToolCallMessage(text, calls))
		for _, call := range calls {
			result, err := w.runTool(ctx, call, s.UserContext)
			if err != nil {
				result = fmt.Sprintf("tool error: %v", err)
			}
			messages = append(messages, protocol.NewToolMessage(result, call.ID))
		}
	}

	// The model kept asking for tools; one final call without bindings
	// forces an answer.
	text, _, err := model.Generate(ctx, messages, nil)
	return text, err
}

func (w *General) runTool(ctx context.Context, call protocol.ToolCall, uc state.UserContext) (string, error) {
	executor, err := w.tools.GetExecutor(call.Name)
	if err != nil {
		return "", err
	}
	args := call.Args
	if call.Name == tools.DatetimeToolName {
		if args == nil {
			args = map[string]any{}
		}
		if _, ok := args["timezone"]; !ok {
			args["timezone"] = uc.Timezone
		}
	}
	return executor.Execute(ctx, args)
}

// executeWithFallback renders the prompt variant that embeds literal
// fallback content, so the model answers without any tool call.
func (w *General) executeWithFallback(ctx context.Context, model llms.ChatModel, s state.SupervisorState, history []protocol.Message) (string, error) {
	collected := w.fallback.Collect(s.UserContext, []string{"datetime"})

	var system string
	if info, ok := collected["datetime"]; ok {
		system = w.prompts.Get("workers.general.system_with_datetime", map[string]string{
			"language":      s.UserContext.Language,
			"datetime_info": info,
		})
	} else {
		system = w.prompts.Get("workers.general.system", map[string]string{
			"language": s.UserContext.Language,
		})
	}

	messages := append([]protocol.Message{protocol.NewSystemMessage(system)}, history...)
	text, _, err := model.Generate(ctx, messages, nil)
	return text, err
}

// recentHistory returns the last n user/assistant turns in conversation
// order, skipping system and tool plumbing.
func recentHistory(messages []protocol.Message, n int) []protocol.Message {
	var turns []protocol.Message
	for _, msg := range messages {
		if msg.Role == protocol.RoleUser || msg.Role == protocol.RoleAssistant {
			turns = append(turns, msg)
		}
	}
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return turns
}

func isToolsUnsupported(err error) bool {
	return err != nil && strings.Contains(err.Error(), "does not support tools")
}
