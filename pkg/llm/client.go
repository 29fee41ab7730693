// Package llm defines the completion interface the core consumes and the
// provider adapters that implement it. The core never talks to a provider
// SDK directly; everything goes through Client so tests can substitute a
// scripted implementation.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// Role values for conversation messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolChoice controls whether the model may, must, or must not call tools.
type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceRequired ToolChoice = "required"
	ToolChoiceNone     ToolChoice = "none"
)

// Message is one turn of a conversation.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // assistant messages
	ToolCallID string     `json:"tool_call_id,omitempty"` // tool result messages
	ToolName   string     `json:"tool_name,omitempty"`    // tool result messages
}

// ToolCall is the model's request to execute a named function.
// Arguments is stringified JSON, as providers return it.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDefinition describes a tool exposed to the model.
type ToolDefinition struct {
	Name        string
	Description string
	// Parameters is a JSON Schema object describing the arguments.
	Parameters map[string]any
}

// AssistantMessage is the model's reply from a tool-enabled completion.
type AssistantMessage struct {
	Content   string
	ToolCalls []ToolCall
}

// Client is the completion interface consumed by the core.
type Client interface {
	// Complete returns the model's text response to a single prompt.
	Complete(ctx context.Context, prompt string) (string, error)

	// CompleteJSON prompts the model and decodes its strict-JSON response
	// (possibly wrapped in a fenced block) into out. A response that fails
	// to parse or decode returns a SchemaError.
	CompleteJSON(ctx context.Context, prompt string, out any) error

	// CompleteWithTools requests a completion with tool calling enabled.
	CompleteWithTools(ctx context.Context, messages []Message, tools []ToolDefinition, choice ToolChoice) (*AssistantMessage, error)
}

// SchemaError marks a model response that could not be parsed or validated.
// Callers retry these separately from transport failures.
type SchemaError struct {
	Cause error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("model returned invalid JSON: %v", e.Cause)
}

func (e *SchemaError) Unwrap() error { return e.Cause }

// decodeStrict parses text (after fence extraction) into out. Unmarshal
// rejects trailing garbage, which is the strictness the contract asks for.
func decodeStrict(text string, out any) error {
	raw := ExtractJSON(text)
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return &SchemaError{Cause: err}
	}
	return nil
}
