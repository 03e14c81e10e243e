package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/nsure-ai/inquest/pkg/models"
)

// MessagesService captures the subset of the Anthropic SDK used by the
// provider. Satisfied by *sdk.MessageService; tests pass a fake.
type MessagesService interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// AnthropicClient implements Client on the Anthropic Messages API.
// Safe for concurrent use: each Invoke builds an independent request.
type AnthropicClient struct {
	msg MessagesService
}

// NewAnthropicClient builds a client from an API key.
func NewAnthropicClient(apiKey string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicClient{msg: &ac.Messages}, nil
}

// NewAnthropicClientFromService builds a client over an existing messages
// service. Used by tests.
func NewAnthropicClientFromService(msg MessagesService) *AnthropicClient {
	return &AnthropicClient{msg: msg}
}

// Invoke issues one non-streaming Messages.New request and translates the
// response into an AI message.
func (c *AnthropicClient) Invoke(ctx context.Context, messages []models.Message, tools []models.ToolDefinition, opts Options) (models.Message, error) {
	if opts.Model == "" {
		return models.Message{}, errors.New("anthropic: model is required")
	}
	if opts.MaxTokens <= 0 {
		return models.Message{}, errors.New("anthropic: max_tokens must be positive")
	}

	params, err := encodeRequest(messages, tools, opts)
	if err != nil {
		return models.Message{}, err
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	msg, err := c.msg.New(ctx, *params)
	if err != nil {
		return models.Message{}, Classify(err)
	}
	return translateResponse(msg)
}

func (c *AnthropicClient) Close() error { return nil }

func encodeRequest(messages []models.Message, tools []models.ToolDefinition, opts Options) (*sdk.MessageNewParams, error) {
	conversation := make([]sdk.MessageParam, 0, len(messages))
	system := make([]sdk.TextBlockParam, 0, 1)

	for _, m := range messages {
		switch m.Role {
		case models.RoleSystem:
			if m.Content != "" {
				system = append(system, sdk.TextBlockParam{Text: m.Content})
			}

		case models.RoleHuman:
			if m.Content != "" {
				conversation = append(conversation, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
			}

		case models.RoleAI:
			blocks := make([]sdk.ContentBlockParamUnion, 0, len(m.ToolCalls)+1)
			if m.Content != "" {
				blocks = append(blocks, sdk.NewTextBlock(m.Content))
			}
			for _, call := range m.ToolCalls {
				var input map[string]any
				if len(call.Arguments) > 0 {
					if err := json.Unmarshal(call.Arguments, &input); err != nil {
						return nil, fmt.Errorf("anthropic: tool call %s has invalid arguments: %w", call.ID, err)
					}
				}
				blocks = append(blocks, sdk.NewToolUseBlock(call.ID, input, call.Name))
			}
			if len(blocks) > 0 {
				conversation = append(conversation, sdk.NewAssistantMessage(blocks...))
			}

		case models.RoleTool:
			// Tool results go back as user-role tool_result blocks.
			conversation = append(conversation, sdk.NewUserMessage(
				sdk.NewToolResultBlock(m.ToolCallID, toolResultText(m.Payload), m.Payload.IsError()),
			))
		}
	}

	params := &sdk.MessageNewParams{
		Model:     sdk.Model(opts.Model),
		MaxTokens: int64(opts.MaxTokens),
		Messages:  conversation,
	}
	if len(system) > 0 {
		params.System = system
	}
	if opts.Temperature > 0 {
		params.Temperature = sdk.Float(opts.Temperature)
	}

	for _, def := range tools {
		schema, err := encodeSchema(def.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("anthropic: tool %q schema: %w", def.Name, err)
		}
		u := sdk.ToolUnionParamOfTool(schema, def.Name)
		if u.OfTool != nil && def.Description != "" {
			u.OfTool.Description = sdk.String(def.Description)
		}
		params.Tools = append(params.Tools, u)
	}
	return params, nil
}

func encodeSchema(raw json.RawMessage) (sdk.ToolInputSchemaParam, error) {
	if len(raw) == 0 {
		return sdk.ToolInputSchemaParam{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return sdk.ToolInputSchemaParam{}, err
	}
	return sdk.ToolInputSchemaParam{ExtraFields: m}, nil
}

func toolResultText(p *models.ToolPayload) string {
	switch {
	case p == nil:
		return ""
	case p.Kind == models.PayloadError:
		return fmt.Sprintf("error (%s): %s", p.ErrorKind, p.ErrorMessage)
	case p.Kind == models.PayloadRaw:
		return string(p.Raw)
	default:
		data, err := json.Marshal(p.Parsed)
		if err != nil {
			return fmt.Sprintf("%v", p.Parsed)
		}
		return string(data)
	}
}

func translateResponse(msg *sdk.Message) (models.Message, error) {
	if msg == nil {
		return models.Message{}, errors.New("anthropic: response message is nil")
	}
	out := models.AIMessage("")
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			out.Content += block.Text
		case "tool_use":
			out.ToolCalls = append(out.ToolCalls, models.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: json.RawMessage(block.Input),
			})
		}
	}
	return out, nil
}
