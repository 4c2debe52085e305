// Package tools defines the function-calling tool contract and the
// built-in tools shipped with the runtime.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/orchestrahq/maestro/pkg/registry"
)

// Definition is the JSON-Schema-shaped function contract bound to chat
// models.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Tool executes a named function. Executors return strings; structured
// results are serialized by the tool itself.
type Tool interface {
	Definition() Definition
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// Registry is a thread-safe catalog of tools.
type Registry struct {
	*registry.BaseRegistry[Tool]
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[Tool]()}
}

// GetSchema returns the function schema for a registered tool.
func (r *Registry) GetSchema(name string) (Definition, error) {
	tool, ok := r.Get(name)
	if !ok {
		return Definition{}, fmt.Errorf("tool '%s' not registered", name)
	}
	return tool.Definition(), nil
}

// GetExecutor returns the tool itself for invocation.
func (r *Registry) GetExecutor(name string) (Tool, error) {
	tool, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("tool '%s' not registered", name)
	}
	return tool, nil
}

// Definitions returns schemas for the named tools, skipping unknown
// names.
func (r *Registry) Definitions(names []string) []Definition {
	defs := make([]Definition, 0, len(names))
	for _, name := range names {
		if tool, ok := r.Get(name); ok {
			defs = append(defs, tool.Definition())
		}
	}
	return defs
}

// funcTool adapts a typed Go function into a Tool. The parameter schema
// is reflected from the argument struct.
type funcTool[A any] struct {
	def Definition
	fn  func(ctx context.Context, args A) (string, error)
}

// NewFuncTool builds a Tool from a function taking a typed argument
// struct. JSON tags on A become parameter names; jsonschema struct tags
// provide descriptions.
func NewFuncTool[A any](name, description string, fn func(ctx context.Context, args A) (string, error)) Tool {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}

	var zero A
	schema := reflector.Reflect(&zero)
	schema.Version = ""

	params := map[string]any{"type": "object"}
	if raw, err := json.Marshal(schema); err == nil {
		_ = json.Unmarshal(raw, &params)
	}

	return &funcTool[A]{
		def: Definition{Name: name, Description: description, Parameters: params},
		fn:  fn,
	}
}

func (t *funcTool[A]) Definition() Definition { return t.def }

func (t *funcTool[A]) Execute(ctx context.Context, args map[string]any) (string, error) {
	var typed A
	raw, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("failed to encode tool args: %w", err)
	}
	if err := json.Unmarshal(raw, &typed); err != nil {
		return "", fmt.Errorf("invalid arguments for tool '%s': %w", t.def.Name, err)
	}
	return t.fn(ctx, typed)
}
