package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/orchestrahq/maestro/pkg/protocol"
	"github.com/orchestrahq/maestro/pkg/tools"
)

const defaultTimeout = 120 * time.Second

// OpenAIChat talks to any OpenAI-compatible chat completions endpoint
// (OpenAI, DeepSeek, vLLM, Ollama's compat mode, ...). It is safe for
// concurrent use.
type OpenAIChat struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client
}

// OpenAIOption configures an OpenAIChat.
type OpenAIOption func(*OpenAIChat)

// WithTemperature overrides the default sampling temperature.
func WithTemperature(t float64) OpenAIOption {
	return func(c *OpenAIChat) { c.temperature = t }
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) OpenAIOption {
	return func(c *OpenAIChat) { c.maxTokens = n }
}

// WithHTTPClient substitutes the HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) OpenAIOption {
	return func(c *OpenAIChat) { c.client = hc }
}

// NewOpenAIChat creates a client for an OpenAI-compatible endpoint.
// baseURL is the API root, e.g. "https://api.openai.com/v1".
func NewOpenAIChat(baseURL, apiKey, model string, opts ...OpenAIOption) *OpenAIChat {
	c := &OpenAIChat{
		baseURL:     baseURL,
		apiKey:      apiKey,
		model:       model,
		temperature: 0.7,
		client:      &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type openAIRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	Temperature    float64               `json:"temperature"`
	MaxTokens      *int                  `json:"max_tokens,omitempty"`
	Tools          []openAITool          `json:"tools,omitempty"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	Name       string           `json:"name,omitempty"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAITool struct {
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type openAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAIResponseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *openAIJSONSchema `json:"json_schema,omitempty"`
}

type openAIJSONSchema struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict"`
}

type openAIResponse struct {
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Generate implements ChatModel.
func (c *OpenAIChat) Generate(ctx context.Context, messages []protocol.Message, toolDefs []tools.Definition) (string, []protocol.ToolCall, error) {
	req := c.buildRequest(messages)
	for _, def := range toolDefs {
		req.Tools = append(req.Tools, openAITool{
			Type: "function",
			Function: openAIFunction{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}

	resp, err := c.complete(ctx, req)
	if err != nil {
		return "", nil, err
	}

	choice := resp.Choices[0].Message
	calls := make([]protocol.ToolCall, 0, len(choice.ToolCalls))
	for _, tc := range choice.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return "", nil, fmt.Errorf("malformed tool call arguments for %s: %w", tc.Function.Name, err)
			}
		}
		calls = append(calls, protocol.ToolCall{ID: tc.ID, Name: tc.Function.Name, Args: args})
	}
	return choice.Content, calls, nil
}

// GenerateStructured implements ChatModel using the json_schema response
// format.
func (c *OpenAIChat) GenerateStructured(ctx context.Context, messages []protocol.Message, schema map[string]any) (string, error) {
	req := c.buildRequest(messages)
	req.ResponseFormat = &openAIResponseFormat{
		Type: "json_schema",
		JSONSchema: &openAIJSONSchema{
			Name:   "response",
			Schema: schema,
			Strict: true,
		},
	}

	resp, err := c.complete(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Message.Content, nil
}

// ModelName implements ChatModel.
func (c *OpenAIChat) ModelName() string { return c.model }

func (c *OpenAIChat) buildRequest(messages []protocol.Message) openAIRequest {
	req := openAIRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages:    make([]openAIMessage, 0, len(messages)),
	}
	if c.maxTokens > 0 {
		req.MaxTokens = &c.maxTokens
	}
	for _, m := range messages {
		om := openAIMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			args, _ := json.Marshal(tc.Args)
			call := openAIToolCall{ID: tc.ID, Type: "function"}
			call.Function.Name = tc.Name
			call.Function.Arguments = string(args)
			om.ToolCalls = append(om.ToolCalls, call)
		}
		req.Messages = append(req.Messages, om)
	}
	return req
}

func (c *OpenAIChat) complete(ctx context.Context, request openAIRequest) (*openAIResponse, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat completion request failed: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp openAIResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("malformed response (status %d): %w", httpResp.StatusCode, err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("model error (%s): %s", resp.Error.Type, resp.Error.Message)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chat completion failed with status %d: %s", httpResp.StatusCode, string(raw))
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}
	return &resp, nil
}
