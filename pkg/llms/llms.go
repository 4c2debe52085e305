// Package llms defines the chat-model capability used by the supervisor
// and workers, plus an OpenAI-compatible reference implementation.
//
// Concrete providers are external collaborators: anything that can
// generate text, bind tools, and produce structured output can back the
// runtime. Tests substitute in-memory fakes.
package llms

import (
	"context"

	"github.com/orchestrahq/maestro/pkg/protocol"
	"github.com/orchestrahq/maestro/pkg/tools"
)

// ChatModel is the minimal model capability.
//
// Generate with a non-empty tool list binds the tools to the call; a
// backend that cannot bind tools returns an error whose text contains
// "does not support tools", which callers use to flip to fallback mode.
type ChatModel interface {
	// Generate performs a chat completion. Returned tool calls, if any,
	// must be executed by the caller and replayed as tool messages.
	Generate(ctx context.Context, messages []protocol.Message, toolDefs []tools.Definition) (text string, toolCalls []protocol.ToolCall, err error)

	// GenerateStructured performs a completion constrained to the given
	// JSON schema and returns the raw JSON text.
	GenerateStructured(ctx context.Context, messages []protocol.Message, schema map[string]any) (string, error)

	// ModelName identifies the underlying model for logging.
	ModelName() string
}

// Factory creates chat models for a request. Implementations may cache
// long-lived clients keyed by endpoint and must be safe for concurrent
// use.
type Factory interface {
	// ForPreferences resolves a model from per-request hints (see
	// ModelHints), falling back to the configured default. temperature
	// overrides the endpoint default for this client.
	ForPreferences(prefs map[string]any, temperature float64) (ChatModel, error)
}

// ObjectSchema builds a JSON schema for a flat object with the given
// property schemas, all required. Convenient for structured-output
// contracts like the planner's.
func ObjectSchema(properties map[string]any) map[string]any {
	required := make([]string, 0, len(properties))
	for name := range properties {
		required = append(required, name)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}
