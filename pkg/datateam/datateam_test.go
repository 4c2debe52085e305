package datateam

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
	"github.com/orchestrahq/maestro/pkg/worker"
)

// scriptedModel returns canned texts in order.
type scriptedModel struct {
	texts []string
	calls int
}

func (m *scriptedModel) Generate(_ context.Context, _ []protocol.Message, _ []tools.Definition) (string, []protocol.ToolCall, error) {
	if m.calls >= len(m.texts) {
		return "", nil, errors.New("scriptedModel: out of responses")
	}
	t := m.texts[m.calls]
	m.calls++
	return t, nil, nil
}

func (m *scriptedModel) GenerateStructured(context.Context, []protocol.Message, map[string]any) (string, error) {
	return "", errors.New("not used")
}

func (m *scriptedModel) ModelName() string { return "scripted" }

// scriptedDB fails queries until failures is exhausted.
type scriptedDB struct {
	failures int
	queries  []string
}

func (d *scriptedDB) Schema(context.Context) (string, error) {
	return "CREATE TABLE sales (region TEXT, amount REAL);", nil
}

func (d *scriptedDB) Query(_ context.Context, query string) (string, error) {
	d.queries = append(d.queries, query)
	if d.failures > 0 {
		d.failures--
		return "", errors.New("no such column: regoin")
	}
	return "region | amount\nnorth | 100\n", nil
}

func queryState(q string) state.SupervisorState {
	s := state.NewState()
	s.Messages = []protocol.Message{protocol.NewUserMessage(q)}
	s.OriginalQuery = q
	s.TaskPlan = []state.TaskStep{state.NewTaskStep("1", "DataTeam", "query sales")}
	return s
}

func newTeam(model llms.ChatModel, db Database) *DataTeam {
	return NewDataTeam(llms.StaticFactory{Model: model}, prompts.New(), db)
}

func TestHappyPath(t *testing.T) {
	model := &scriptedModel{texts: []string{
		"```sql\nSELECT region, SUM(amount) FROM sales GROUP BY region\n```",
		"North leads with 100.",
	}}
	db := &scriptedDB{}
	team := newTeam(model, db)

	u, err := team.Execute(context.Background(), queryState("sales by region"))
	if err != nil {
		t.Fatal(err)
	}
	if u.Messages[0].Content != "North leads with 100." {
		t.Errorf("answer = %q", u.Messages[0].Content)
	}
	if u.Messages[0].Name != "DataTeam" {
		t.Errorf("author = %q", u.Messages[0].Name)
	}
	if len(db.queries) != 1 || strings.Contains(db.queries[0], "```") {
		t.Errorf("fences not stripped before execution: %v", db.queries)
	}
	if u.TaskPlan[0].Status != state.TaskCompleted {
		t.Errorf("step status = %s", u.TaskPlan[0].Status)
	}
}

func TestRetryThenSucceed(t *testing.T) {
	model := &scriptedModel{texts: []string{
		"SELECT regoin FROM sales",
		"SELECT region FROM sales",
		"Fixed on the second try.",
	}}
	db := &scriptedDB{failures: 1}
	team := newTeam(model, db)

	u, err := team.Execute(context.Background(), queryState("sales"))
	if err != nil {
		t.Fatal(err)
	}
	if u.Messages[0].Content != "Fixed on the second try." {
		t.Errorf("answer = %q", u.Messages[0].Content)
	}
	if len(db.queries) != 2 {
		t.Errorf("query attempts = %d, want 2", len(db.queries))
	}
}

func TestGiveUpAfterThreeTrials(t *testing.T) {
	model := &scriptedModel{texts: []string{
		"SELECT 1", "SELECT 2", "SELECT 3",
	}}
	db := &scriptedDB{failures: 99}
	team := newTeam(model, db)

	u, err := team.Execute(context.Background(), queryState("impossible"))
	if err != nil {
		t.Fatal(err)
	}
	content := u.Messages[0].Content
	if !strings.Contains(content, "3") {
		t.Errorf("give-up message must name the trial count: %q", content)
	}
	if !strings.Contains(content, "no such column") {
		t.Errorf("give-up message must carry the last error: %q", content)
	}
	if len(db.queries) != 3 {
		t.Errorf("query attempts = %d, want 3", len(db.queries))
	}
}

func TestAnalysisFailureReturnsRawResult(t *testing.T) {
	// Two responses: the SQL, then nothing left for analysis.
	model := &scriptedModel{texts: []string{"SELECT region FROM sales"}}
	team := newTeam(model, &scriptedDB{})

	u, err := team.Execute(context.Background(), queryState("sales"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(u.Messages[0].Content, "north | 100") {
		t.Errorf("raw result fallback missing: %q", u.Messages[0].Content)
	}
}

func TestWorkerContract(t *testing.T) {
	var w worker.Worker = newTeam(&scriptedModel{}, &scriptedDB{})
	if w.Type() != worker.TypeSubgraph {
		t.Errorf("type = %s", w.Type())
	}
	if w.Name() != "DataTeam" {
		t.Errorf("name = %s", w.Name())
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no fences", "SELECT 1", "SELECT 1"},
		{"plain fences", "```\nSELECT 1\n```", "SELECT 1"},
		{"sql tag", "```sql\nSELECT 1\n```", "SELECT 1"},
		{"surrounding whitespace", "  ```sql\nSELECT 1\n```  ", "SELECT 1"},
		{"multiline", "```sql\nSELECT a,\n  b\nFROM t\n```", "SELECT a,\n  b\nFROM t"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripFences(tt.input); got != tt.want {
				t.Errorf("stripFences(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNoDatabaseConfigured(t *testing.T) {
	team := newTeam(&scriptedModel{}, nil)
	s := queryState("q")
	u, err := team.Execute(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	if u.TaskPlan[0].Status != state.TaskFailed {
		t.Errorf("missing database must fail the step, got %s", u.TaskPlan[0].Status)
	}
}
