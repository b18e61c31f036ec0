package crew

import (
	"context"
)

// Message represents a message in the conversation.
type Message interface {
	// ToParam converts the message to a provider-specific parameter type.
	ToParam() any
}

// Response represents a response from the LLM.
type Response interface {
	// Content returns the content blocks from the response.
	Content() []ContentBlock
	// ToMessage converts the response to a Message for the conversation history.
	ToMessage() Message
}

// ContentBlock represents a content block in a response.
type ContentBlock interface {
	// AsText returns text content if this is a text block.
	AsText() (text string, ok bool)
	// AsToolUse returns tool use information if this is a tool use block.
	AsToolUse() (id, name string, input []byte, ok bool)
}

// Tool is a named function exposed to the agent for it to invoke during
// task execution.
type Tool interface {
	Name() string
	Description() string
	// InputSchema returns the JSON schema for the tool's arguments.
	InputSchema() map[string]any
	// Call executes the tool. A returned error is reported to the LLM as
	// an error tool result; it does not abort the task.
	Call(ctx context.Context, args map[string]any) (string, error)
}

// ToolSpec is the provider-facing description of a tool.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// ToolUse represents a tool use request from the LLM.
type ToolUse struct {
	ID    string
	Name  string
	Input map[string]any
}

// ToolResult represents the result of executing a tool.
type ToolResult struct {
	ID      string
	Content string
	IsError bool
}

// LLMClient is an interface for interacting with an LLM.
type LLMClient interface {
	// Call sends the system prompt, messages, and tool specs to the LLM
	// and returns a response.
	Call(ctx context.Context, system string, messages []Message, tools []ToolSpec) (Response, error)
	// CreateUserMessage creates a user message in the provider's format.
	CreateUserMessage(content string) Message
	// ConvertToolResults converts tool results to messages for the LLM.
	ConvertToolResults(toolUses []ToolUse, results []ToolResult) ([]Message, error)
}
