package datateam

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/orchestrahq/maestro/pkg/llms"
	"github.com/orchestrahq/maestro/pkg/prompts"
	"github.com/orchestrahq/maestro/pkg/protocol"
	"github.com/orchestrahq/maestro/pkg/state"
	"github.com/orchestrahq/maestro/pkg/worker"
)

// maxTrials bounds SQL generation attempts before giving up.
const maxTrials = 3

// dataState is the subgraph's inner state. It never leaks to the parent
// graph; only the terminal assistant message does.
type dataState struct {
	question    string
	schema      string
	sqlQuery    string
	queryResult string
	lastError   string
	trials      int
}

// DataTeam is the subgraph worker answering questions against a SQL
// database with bounded retry.
type DataTeam struct {
	models  llms.Factory
	prompts *prompts.Manager
	db      Database
}

// NewDataTeam creates the subgraph worker over a database capability.
func NewDataTeam(models llms.Factory, pm *prompts.Manager, db Database) *DataTeam {
	return &DataTeam{models: models, prompts: pm, db: db}
}

func (w *DataTeam) Name() string { return "DataTeam" }
func (w *DataTeam) Description() string {
	return "Queries the company database: writes SQL, executes it, and explains the result. Use for questions answerable from stored records."
}
func (w *DataTeam) Type() worker.Type { return worker.TypeSubgraph }
func (w *DataTeam) Priority() int     { return 10 }

// Execute runs the inner generate -> execute -> route loop and folds its
// terminal message into the standard worker response.
func (w *DataTeam) Execute(ctx context.Context, s state.SupervisorState) (state.Update, error) {
	if w.db == nil {
		return worker.ErrorUpdate(s, w.Name(), fmt.Errorf("no database configured")), nil
	}

	schema, err := w.db.Schema(ctx)
	if err != nil {
		return worker.ErrorUpdate(s, w.Name(), fmt.Errorf("failed to read schema: %w", err)), nil
	}

	question := s.Query()
	if step, ok := s.CurrentStep(); ok && step.Description != "" {
		question = fmt.Sprintf("%s\n(step focus: %s)", question, step.Description)
	}

	model, err := w.models.ForPreferences(s.UserContext.Preferences, 0.0)
	if err != nil {
		return worker.ErrorUpdate(s, w.Name(), err), nil
	}

	answer := w.run(ctx, model, dataState{question: question, schema: schema})
	return worker.SuccessUpdate(s, w.Name(), answer), nil
}

// run walks the inner graph to its terminal message.
func (w *DataTeam) run(ctx context.Context, model llms.ChatModel, ds dataState) string {
	for {
		w.generateSQL(ctx, model, &ds)
		w.executeSQL(ctx, &ds)

		switch {
		case ds.lastError != "" && ds.trials >= maxTrials:
			return w.giveUp(ds)
		case ds.lastError != "":
			slog.Debug("SQL attempt failed, retrying", "trial", ds.trials, "error", ds.lastError)
			continue
		default:
			return w.analyze(ctx, model, ds)
		}
	}
}

// generateSQL produces the next SQL attempt, feeding the previous error
// back into the prompt on retries.
func (w *DataTeam) generateSQL(ctx context.Context, model llms.ChatModel, ds *dataState) {
	system := w.prompts.Get("datateam.generate_sql.system", map[string]string{"schema": ds.schema})
	if ds.lastError != "" {
		system += "\n\n" + w.prompts.Get("datateam.generate_sql.retry_note", map[string]string{"error": ds.lastError})
	}

	messages := []protocol.Message{
		protocol.NewSystemMessage(system),
		protocol.NewUserMessage(ds.question),
	}

	ds.trials++
	ds.lastError = ""

	text, _, err := model.Generate(ctx, messages, nil)
	if err != nil {
		ds.lastError = err.Error()
		return
	}
	ds.sqlQuery = stripFences(text)
}

// executeSQL runs the attempt. Exceptions become state, never panics.
func (w *DataTeam) executeSQL(ctx context.Context, ds *dataState) {
	if ds.lastError != "" || ds.sqlQuery == "" {
		if ds.lastError == "" {
			ds.lastError = "model produced an empty SQL statement"
		}
		return
	}
	result, err := w.db.Query(ctx, ds.sqlQuery)
	if err != nil {
		ds.lastError = err.Error()
		return
	}
	ds.queryResult = result
}

// analyze turns the raw query result into the final answer.
func (w *DataTeam) analyze(ctx context.Context, model llms.ChatModel, ds dataState) string {
	messages := []protocol.Message{
		protocol.NewSystemMessage(w.prompts.Get("datateam.analyze.system", nil)),
		protocol.NewUserMessage(w.prompts.Get("datateam.analyze.human", map[string]string{
			"question": ds.question,
			"result":   ds.queryResult,
		})),
	}
	text, _, err := model.Generate(ctx, messages, nil)
	if err != nil {
		// The data is already in hand; degrade to returning it raw.
		slog.Warn("Result analysis failed, returning raw result", "error", err)
		return fmt.Sprintf("Query result:\n%s", ds.queryResult)
	}
	return text
}

// giveUp renders the structured failure message after retry exhaustion.
func (w *DataTeam) giveUp(ds dataState) string {
	return w.prompts.Get("datateam.give_up", map[string]string{
		"trials": strconv.Itoa(ds.trials),
		"error":  ds.lastError,
	})
}

// stripFences removes Markdown code fences around a SQL statement.
func stripFences(text string) string {
	out := strings.TrimSpace(text)
	if !strings.HasPrefix(out, "```") {
		return out
	}
	out = strings.TrimPrefix(out, "```")
	if i := strings.Index(out, "\n"); i >= 0 && !strings.ContainsAny(out[:i], " \t;") {
		// Drop a language tag like "sql" on the fence line.
		out = out[i+1:]
	}
	out = strings.TrimSuffix(strings.TrimSpace(out), "```")
	return strings.TrimSpace(out)
}
