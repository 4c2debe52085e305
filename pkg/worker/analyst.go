package worker

import (
	"context"

	"github.com/orchestrahq/maestro/pkg/llms"
	"github.com/orchestrahq/maestro/pkg/prompts"
	"github.com/orchestrahq/maestro/pkg/protocol"
	"github.com/orchestrahq/maestro/pkg/state"
)

// DataAnalyst answers analytical questions about business data in
// precise, quantitative language. The "not for dates or times" clause in
// the description steers the planner away from it for datetime queries;
// there is no runtime check.
type DataAnalyst struct {
	models  llms.Factory
	prompts *prompts.Manager
}

// NewDataAnalyst creates the data analyst worker.
func NewDataAnalyst(models llms.Factory, pm *prompts.Manager) *DataAnalyst {
	return &DataAnalyst{models: models, prompts: pm}
}

func (w *DataAnalyst) Name() string { return "DataAnalyst" }
func (w *DataAnalyst) Description() string {
	return "Analyzes business data, trends, and reports with quantitative rigor. Not for current date or time questions."
}
func (w *DataAnalyst) Type() Type    { return TypeLLMPowered }
func (w *DataAnalyst) Priority() int { return 10 }

func (w *DataAnalyst) Execute(ctx context.Context, s state.SupervisorState) (state.Update, error) {
	model, err := w.models.ForPreferences(s.UserContext.Preferences, 0.1)
	if err != nil {
		return ErrorUpdate(s, w.Name(), err), nil
	}

	messages := []protocol.Message{
		protocol.NewSystemMessage(w.prompts.Get("workers.data_analyst.system", nil)),
		protocol.NewUserMessage(w.prompts.Get("workers.data_analyst.human", map[string]string{
			"task_hint": stepHint(s),
			"query":     s.Query(),
		})),
	}

	answer, _, err := model.Generate(ctx, messages, nil)
	if err != nil {
		return ErrorUpdate(s, w.Name(), err), nil
	}
	return SuccessUpdate(s, w.Name(), answer), nil
}
