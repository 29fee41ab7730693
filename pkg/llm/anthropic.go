package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient implements Client on top of the Anthropic Messages API.
type AnthropicClient struct {
	client    *sdk.Client
	model     string
	maxTokens int64
}

// DefaultAnthropicModel is used when no model is configured.
const DefaultAnthropicModel = "claude-sonnet-4-20250514"

const anthropicMaxTokens = 8192

// NewAnthropicClient builds an Anthropic-backed client.
func NewAnthropicClient(apiKey, model string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	if model == "" {
		model = DefaultAnthropicModel
	}
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicClient{client: &c, model: model, maxTokens: anthropicMaxTokens}, nil
}

// Complete issues a single-prompt message and returns the concatenated text.
func (c *AnthropicClient) Complete(ctx context.Context, prompt string) (string, error) {
	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(prompt))},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic messages.new: %w", err)
	}
	return textContent(msg), nil
}

// CompleteJSON issues a single-prompt message and decodes its JSON response.
func (c *AnthropicClient) CompleteJSON(ctx context.Context, prompt string, out any) error {
	text, err := c.Complete(ctx, prompt)
	if err != nil {
		return err
	}
	return decodeStrict(text, out)
}

// CompleteWithTools issues a tool-enabled message and maps text and tool_use
// blocks back into the core's types.
func (c *AnthropicClient) CompleteWithTools(ctx context.Context, messages []Message, tools []ToolDefinition, choice ToolChoice) (*AssistantMessage, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: c.maxTokens,
	}

	conversation, system, err := encodeAnthropicMessages(messages)
	if err != nil {
		return nil, err
	}
	params.Messages = conversation
	if len(system) > 0 {
		params.System = system
	}

	for _, t := range tools {
		schema := sdk.ToolInputSchemaParam{}
		if props, ok := t.Parameters["properties"]; ok {
			schema.Properties = props
		}
		if req, ok := t.Parameters["required"]; ok {
			schema.ExtraFields = map[string]any{"required": req}
		}
		u := sdk.ToolUnionParamOfTool(schema, t.Name)
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(t.Description)
		}
		params.Tools = append(params.Tools, u)
	}

	switch choice {
	case ToolChoiceAuto, "":
		// Provider default; omit.
	case ToolChoiceRequired:
		params.ToolChoice = sdk.ToolChoiceUnionParam{OfAny: &sdk.ToolChoiceAnyParam{}}
	case ToolChoiceNone:
		none := sdk.NewToolChoiceNoneParam()
		params.ToolChoice = sdk.ToolChoiceUnionParam{OfNone: &none}
	default:
		return nil, fmt.Errorf("anthropic: unsupported tool choice %q", choice)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages.new: %w", err)
	}

	out := &AssistantMessage{Content: textContent(msg)}
	for _, block := range msg.Content {
		if block.Type != "tool_use" {
			continue
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        block.ID,
			Name:      block.Name,
			Arguments: string(block.Input),
		})
	}
	return out, nil
}

// encodeAnthropicMessages splits system turns out (Anthropic carries them as
// a top-level parameter) and converts the rest into content blocks.
func encodeAnthropicMessages(messages []Message) ([]sdk.MessageParam, []sdk.TextBlockParam, error) {
	conversation := make([]sdk.MessageParam, 0, len(messages))
	var system []sdk.TextBlockParam

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, sdk.TextBlockParam{Text: m.Content})
		case RoleUser:
			conversation = append(conversation, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		case RoleAssistant:
			blocks := make([]sdk.ContentBlockParamUnion, 0, 1+len(m.ToolCalls))
			if m.Content != "" {
				blocks = append(blocks, sdk.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				var input any
				if err := json.Unmarshal([]byte(tc.Arguments), &input); err != nil {
					input = map[string]any{"raw": tc.Arguments}
				}
				blocks = append(blocks, sdk.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			if len(blocks) == 0 {
				continue
			}
			conversation = append(conversation, sdk.NewAssistantMessage(blocks...))
		case RoleTool:
			conversation = append(conversation, sdk.NewUserMessage(
				sdk.NewToolResultBlock(m.ToolCallID, m.Content, false)))
		default:
			return nil, nil, fmt.Errorf("anthropic: unsupported message role %q", m.Role)
		}
	}
	return conversation, system, nil
}

// textContent concatenates the text blocks of a response message.
func textContent(msg *sdk.Message) string {
	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text
}
