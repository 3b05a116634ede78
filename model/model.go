// Package model defines the provider-neutral language-model surface used by
// both agent runtimes: a chat-style request with schema-declared tools, and
// a response that is either final text or a batch of requested tool calls.
// Provider adapters live in the openai and anthropic subpackages.
package model

import (
	"context"
	"encoding/json"
)

// Message is one chat turn in provider-neutral form. Assistant turns may
// carry ToolCalls; tool turns carry the ToolCallID they answer.
type Message struct {
	Role       string     `json:"role"` // "system", "user", "assistant", "tool"
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a structured request from the model to invoke a named tool.
// Arguments is the raw JSON argument object as emitted by the provider.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ParseArguments decodes the call's JSON arguments into a map. An empty
// argument string decodes to an empty map. A non-object payload is an error.
func (tc ToolCall) ParseArguments() (map[string]any, error) {
	if tc.Arguments == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
		return nil, err
	}
	return args, nil
}

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual tool exposed to the model.
// Parameters is a minimal JSON Schema object.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// NewToolDefinition wraps a function description in the standard envelope.
func NewToolDefinition(name, description string, parameters map[string]any) ToolDefinition {
	return ToolDefinition{
		Type: "function",
		Function: FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}

// Request is the normalized model input produced by the runtimes.
type Request struct {
	Instructions string           `json:"instructions"` // system prompt
	Messages     []Message        `json:"messages"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
}

// Response is a completed model turn: final text, requested tool calls, or
// both (text alongside calls is treated as interim commentary).
type Response struct {
	Text         string     `json:"text"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	FinishReason string     `json:"finish_reason,omitempty"`
}

// Info describes a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"`
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface the runtimes drive generation through.
// Generate must honor ctx cancellation and deadlines.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	Info() Info
}
