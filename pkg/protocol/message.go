// Package protocol defines the message types exchanged between the
// supervisor, workers, and language models.
package protocol

import "github.com/google/uuid"

// Role identifies the author class of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is a single conversation turn. Messages are immutable after
// creation; reducers replace rather than mutate them.
type Message struct {
	ID      string `json:"id,omitempty"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
	// Name records which worker authored an assistant message. Empty for
	// user and system messages.
	Name string `json:"name,omitempty"`
	// ToolCallID links a tool message back to the call that produced it.
	ToolCallID string `json:"tool_call_id,omitempty"`
	// ToolCalls holds the calls requested by an assistant turn, kept so
	// the turn can be replayed to the model alongside its tool results.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a function invocation requested by a model.
type ToolCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// NewUserMessage creates a user message with a fresh stable id.
func NewUserMessage(content string) Message {
	return Message{ID: uuid.NewString(), Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message authored by a worker.
func NewAssistantMessage(content, workerName string) Message {
	return Message{ID: uuid.NewString(), Role: RoleAssistant, Content: content, Name: workerName}
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{ID: uuid.NewString(), Role: RoleSystem, Content: content}
}

// NewToolCallMessage creates the assistant turn that requested the given
// tool calls.
func NewToolCallMessage(content string, calls []ToolCall) Message {
	return Message{ID: uuid.NewString(), Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// NewToolMessage creates a tool result message for the given call id.
func NewToolMessage(content, toolCallID string) Message {
	return Message{ID: uuid.NewString(), Role: RoleTool, Content: content, ToolCallID: toolCallID}
}

// LastUserQuery returns the content of the most recent user message, or
// the last message of any role when no user message exists.
func LastUserQuery(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	if len(messages) > 0 {
		return messages[len(messages)-1].Content
	}
	return ""
}

// WorkerOutput is an assistant contribution attributed to a named worker.
type WorkerOutput struct {
	Name    string
	Content string
}

// WorkerOutputs collects every assistant message that carries an author
// name, in conversation order.
func WorkerOutputs(messages []Message) []WorkerOutput {
	var outputs []WorkerOutput
	for _, msg := range messages {
		if msg.Role == RoleAssistant && msg.Name != "" {
			outputs = append(outputs, WorkerOutput{Name: msg.Name, Content: msg.Content})
		}
	}
	return outputs
}
