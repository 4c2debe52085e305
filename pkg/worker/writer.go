package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/orchestrahq/maestro/pkg/llms"
	"github.com/orchestrahq/maestro/pkg/prompts"
	"github.com/orchestrahq/maestro/pkg/protocol"
	"github.com/orchestrahq/maestro/pkg/state"
)

// Writer consolidates the contributions of earlier workers into a single
// well-structured Markdown answer in the user's language.
type Writer struct {
	models  llms.Factory
	prompts *prompts.Manager
}

// NewWriter creates the writer worker.
func NewWriter(models llms.Factory, pm *prompts.Manager) *Writer {
	return &Writer{models: models, prompts: pm}
}

func (w *Writer) Name() string { return "Writer" }
func (w *Writer) Description() string {
	return "Consolidates material produced by other workers into one polished, well-structured answer. Use as the final step of multi-part tasks."
}
func (w *Writer) Type() Type    { return TypeLLMPowered }
func (w *Writer) Priority() int { return 5 }

func (w *Writer) Execute(ctx context.Context, s state.SupervisorState) (state.Update, error) {
	model, err := w.models.ForPreferences(s.UserContext.Preferences, 0.7)
	if err != nil {
		return ErrorUpdate(s, w.Name(), err), nil
	}

	messages := []protocol.Message{
		protocol.NewSystemMessage(w.prompts.Get("workers.writer.system", map[string]string{
			"language": s.UserContext.Language,
		})),
		protocol.NewUserMessage(w.prompts.Get("workers.writer.human", map[string]string{
			"task_hint": stepHint(s),
			"query":     s.Query(),
			"context":   formatContributions(s.Messages),
		})),
	}

	answer, _, err := model.Generate(ctx, messages, nil)
	if err != nil {
		return ErrorUpdate(s, w.Name(), err), nil
	}
	return SuccessUpdate(s, w.Name(), answer), nil
}

// formatContributions renders every authored assistant message as a
// named Markdown section.
func formatContributions(messages []protocol.Message) string {
	outputs := protocol.WorkerOutputs(messages)
	if len(outputs) == 0 {
		return "(no prior contributions)"
	}
	sections := make([]string, len(outputs))
	for i, out := range outputs {
		sections[i] = fmt.Sprintf("### %s\n%s", out.Name, out.Content)
	}
	return strings.Join(sections, "\n\n")
}
