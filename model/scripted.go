package model

import (
	"context"
	"sync"
)

// ScriptedModel replays a fixed sequence of responses and records every
// request it receives. Once the script is exhausted the final response is
// repeated, which makes it easy to simulate a model that never stops
// requesting tools. Safe for concurrent use.
type ScriptedModel struct {
	mu        sync.Mutex
	script    []Response
	pos       int
	requests  []Request
	failures  []error
	callCount int
}

// NewScriptedModel builds a scripted model from the given responses.
func NewScriptedModel(script ...Response) *ScriptedModel {
	return &ScriptedModel{script: script}
}

// FailNext queues errors returned before any scripted response is served.
func (m *ScriptedModel) FailNext(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, errs...)
}

// Generate implements Model.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	m.requests = append(m.requests, req)
	if len(m.failures) > 0 {
		err := m.failures[0]
		m.failures = m.failures[1:]
		return nil, err
	}
	if len(m.script) == 0 {
		return &Response{Text: "ok", FinishReason: "stop"}, nil
	}
	resp := m.script[m.pos]
	if m.pos < len(m.script)-1 {
		m.pos++
	}
	return &resp, nil
}

// Info implements Model.
func (m *ScriptedModel) Info() Info {
	return Info{Name: "scripted", Provider: "test", SupportsTools: true}
}

// Calls reports how many Generate calls were made.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Requests returns a copy of every request received so far.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}
