package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIClient implements Client on top of the OpenAI Chat Completions API.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o"

// NewOpenAIClient builds an OpenAI-backed client.
func NewOpenAIClient(apiKey, model string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	c := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIClient{client: &c, model: model}, nil
}

// Complete issues a single-prompt completion and returns the text response.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("openai: empty response")
	}
	return completion.Choices[0].Message.Content, nil
}

// CompleteJSON issues a completion in JSON mode and decodes the response.
func (c *OpenAIClient) CompleteJSON(ctx context.Context, prompt string, out any) error {
	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
	})
	if err != nil {
		return fmt.Errorf("openai completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return errors.New("openai: empty response")
	}
	return decodeStrict(completion.Choices[0].Message.Content, out)
}

// CompleteWithTools issues a tool-enabled completion and maps the assistant
// response (content plus tool calls) back into the core's types.
func (c *OpenAIClient) CompleteWithTools(ctx context.Context, messages []Message, tools []ToolDefinition, choice ToolChoice) (*AssistantMessage, error) {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.model),
		Messages: encodeOpenAIMessages(messages),
	}
	for _, t := range tools {
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  shared.FunctionParameters(t.Parameters),
			},
		})
	}
	switch choice {
	case ToolChoiceAuto, "":
		// Provider default; omit.
	case ToolChoiceRequired:
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("required")}
	case ToolChoiceNone:
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("none")}
	default:
		return nil, fmt.Errorf("openai: unsupported tool choice %q", choice)
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai tool completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, errors.New("openai: empty response")
	}

	msg := completion.Choices[0].Message
	out := &AssistantMessage{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

// encodeOpenAIMessages translates the core conversation into SDK params.
// Assistant tool calls are replayed so the provider can match tool results
// by call ID.
func encodeOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		case RoleAssistant:
			if len(m.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(m.Content))
				continue
			}
			assistant := openai.ChatCompletionAssistantMessageParam{}
			if m.Content != "" {
				assistant.Content.OfString = openai.String(m.Content)
			}
			for _, tc := range m.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		}
	}
	return out
}
