// Package anthropic implements model.Model using the Anthropic Messages
// API. Tool responses are embedded as tool_result blocks in the user turn
// that follows the assistant tool_use turn, as the API requires.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/stewardhq/steward/model"
)

// Options configure the Anthropic model adapter.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Model wraps the Anthropic Messages API behind model.Model.
type Model struct {
	client *anthropic.Client
	opts   Options
}

// NewModel creates an Anthropic model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates an Anthropic model from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Generate implements model.Model via a single non-streaming message.
func (m *Model) Generate(ctx context.Context, req model.Request) (*model.Response, error) {
	params := anthropic.MessageNewParams{
		Model:       m.opts.Model,
		Messages:    buildMessages(req.Messages),
		MaxTokens:   m.opts.MaxTokens,
		Temperature: anthropic.Float(m.opts.Temperature),
	}
	if req.Instructions != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.Instructions}}
	}
	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	out := &model.Response{FinishReason: string(resp.StopReason)}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			out.Text += block.AsText().Text
		case "tool_use":
			toolBlock := block.AsToolUse()
			args := ""
			if toolBlock.Input != nil {
				if argsBytes, err := json.Marshal(toolBlock.Input); err == nil {
					args = string(argsBytes)
				}
			}
			out.ToolCalls = append(out.ToolCalls, model.ToolCall{
				ID:        toolBlock.ID,
				Name:      toolBlock.Name,
				Arguments: args,
			})
		}
	}
	return out, nil
}

// buildMessages converts normalized messages to Anthropic message params.
// Tool responses are indexed by call ID and attached as tool_result blocks
// in a user message directly after the assistant turn that requested them.
func buildMessages(msgs []model.Message) []anthropic.MessageParam {
	toolResponses := make(map[string]string)
	for _, msg := range msgs {
		if msg.Role == "tool" && msg.ToolCallID != "" {
			toolResponses[msg.ToolCallID] = msg.Content
		}
	}

	var messages []anthropic.MessageParam
	for _, msg := range msgs {
		switch msg.Role {
		case "system", "tool":
			continue // system handled separately, tool responses embedded
		case "assistant":
			var content []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				content = append(content, anthropic.NewTextBlock(msg.Content))
			}
			var results []anthropic.ContentBlockParamUnion
			for _, tc := range msg.ToolCalls {
				var input any
				if tc.Arguments != "" {
					if err := json.Unmarshal([]byte(tc.Arguments), &input); err != nil {
						input = tc.Arguments
					}
				}
				content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
				if resp, ok := toolResponses[tc.ID]; ok {
					results = append(results, anthropic.NewToolResultBlock(tc.ID, resp, false))
					delete(toolResponses, tc.ID)
				}
			}
			if len(content) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(content...))
			}
			if len(results) > 0 {
				messages = append(messages, anthropic.NewUserMessage(results...))
			}
		default: // user and anything unknown
			if msg.Content != "" {
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
			}
		}
	}
	return messages
}

// buildTools converts steward tool definitions to Anthropic tool params.
func buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	anthropicTools := make([]anthropic.ToolUnionParam, len(tools))
	for i, tdef := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{Type: constant.Object("object")}
		if params := tdef.Function.Parameters; params != nil {
			if properties, exists := params["properties"]; exists {
				inputSchema.Properties = properties
			}
			switch required := params["required"].(type) {
			case []string:
				inputSchema.Required = required
			case []any:
				for _, r := range required {
					if s, ok := r.(string); ok {
						inputSchema.Required = append(inputSchema.Required, s)
					}
				}
			}
		}
		anthropicTools[i] = anthropic.ToolUnionParamOfTool(inputSchema, tdef.Function.Name)
	}
	return anthropicTools
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          string(m.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}
