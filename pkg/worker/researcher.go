package worker

import (
	"context"
	"log/slog"

	"github.com/orchestrahq/maestro/pkg/llms"
	"github.com/orchestrahq/maestro/pkg/prompts"
	"github.com/orchestrahq/maestro/pkg/protocol"
	"github.com/orchestrahq/maestro/pkg/state"
)

// SearchProvider is the web search capability used by the Researcher.
// Results are returned as ready-to-prompt text.
type SearchProvider interface {
	Search(ctx context.Context, query string, maxResults int) (string, error)
}

const noSearchResults = "(No web search backend is configured. Answer from your own knowledge and say so.)"

// Researcher answers questions that need fresh external information by
// feeding web search results through a synthesis prompt.
type Researcher struct {
	models  llms.Factory
	prompts *prompts.Manager
	search  SearchProvider
}

// NewResearcher creates the researcher worker. search may be nil; the
// worker then degrades to a best-effort answer without results.
func NewResearcher(models llms.Factory, pm *prompts.Manager, search SearchProvider) *Researcher {
	return &Researcher{models: models, prompts: pm, search: search}
}

func (w *Researcher) Name() string { return "Researcher" }
func (w *Researcher) Description() string {
	return "Searches the web and synthesizes up-to-date, sourced answers. Use for current events, facts likely to have changed, or anything needing external evidence."
}
func (w *Researcher) Type() Type    { return TypeLLMPowered }
func (w *Researcher) Priority() int { return 10 }

func (w *Researcher) Execute(ctx context.Context, s state.SupervisorState) (state.Update, error) {
	query := s.Query()

	results := noSearchResults
	if w.search != nil {
		found, err := w.search.Search(ctx, query, 5)
		if err != nil {
			slog.Warn("Web search failed, continuing without results", "error", err)
		} else if found != "" {
			results = found
		}
	}

	model, err := w.models.ForPreferences(s.UserContext.Preferences, 0.3)
	if err != nil {
		return ErrorUpdate(s, w.Name(), err), nil
	}

	messages := []protocol.Message{
		protocol.NewSystemMessage(w.prompts.Get("workers.researcher.system", nil)),
		protocol.NewUserMessage(w.prompts.Get("workers.researcher.human", map[string]string{
			"task_hint":      stepHint(s),
			"query":          query,
			"search_results": results,
		})),
	}

	answer, _, err := model.Generate(ctx, messages, nil)
	if err != nil {
		return ErrorUpdate(s, w.Name(), err), nil
	}
	return SuccessUpdate(s, w.Name(), answer), nil
}
