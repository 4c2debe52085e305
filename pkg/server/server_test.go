package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/orchestrahq/maestro/pkg/checkpoint"
	"github.com/orchestrahq/maestro/pkg/config"
	"github.com/orchestrahq/maestro/pkg/llms"
	"github.com/orchestrahq/maestro/pkg/performance"
	"github.com/orchestrahq/maestro/pkg/prompts"
	"github.com/orchestrahq/maestro/pkg/protocol"
	"github.com/orchestrahq/maestro/pkg/service"
	"github.com/orchestrahq/maestro/pkg/tools"
	"github.com/orchestrahq/maestro/pkg/worker"
)

type unusedModel struct{}

func (unusedModel) Generate(context.Context, []protocol.Message, []tools.Definition) (string, []protocol.ToolCall, error) {
	return "", nil, errors.New("not used")
}
func (unusedModel) GenerateStructured(context.Context, []protocol.Message, map[string]any) (string, error) {
	return "", errors.New("not used")
}
func (unusedModel) ModelName() string { return "unused" }

// testHandler backs every request with the rule engine so no model call
// is needed.
func testHandler(t *testing.T) http.Handler {
	t.Helper()
	svc := service.New(
		config.Config{Supervisor: config.Supervisor{MaxIterations: 10, MaxTaskSteps: 8, EnablePlanning: true}},
		llms.StaticFactory{Model: unusedModel{}},
		prompts.New(),
		worker.NewRegistry(),
		performance.NewLayer(performance.NewRuleEngine(), nil),
		checkpoint.NewMemory(),
	)
	return New(svc).Router()
}

func TestHealthz(t *testing.T) {
	srv := httptest.NewServer(testHandler(t))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestQueryNonStreaming(t *testing.T) {
	srv := httptest.NewServer(testHandler(t))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/query", "application/json",
		strings.NewReader(`{"message": "hello", "stream": false}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	body := readAll(t, resp)
	if !strings.Contains(body, `"cached":true`) || !strings.Contains(body, "rule_engine") {
		t.Errorf("body = %s", body)
	}
}

func TestQueryStreaming(t *testing.T) {
	srv := httptest.NewServer(testHandler(t))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/query", "application/json",
		strings.NewReader(`{"message": "hello", "stream": true}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	body := readAll(t, resp)
	for _, want := range []string{`"type":"start"`, `"type":"answer"`, `"type":"done"`} {
		if !strings.Contains(body, want) {
			t.Errorf("stream missing %s: %s", want, body)
		}
	}
	if !strings.HasPrefix(body, "data: ") {
		t.Errorf("SSE framing missing: %s", body)
	}
}

func TestQueryBadBody(t *testing.T) {
	srv := httptest.NewServer(testHandler(t))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/query", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestThreadStateNotFound(t *testing.T) {
	srv := httptest.NewServer(testHandler(t))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/threads/nope/state")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	var b strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		b.Write(buf[:n])
		if err != nil {
			break
		}
	}
	return b.String()
}
