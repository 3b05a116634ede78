package core

import "time"

// HistoryKind classifies entries of an execution agent's persisted history.
type HistoryKind string

const (
	// HistoryRequest records the instructions delivered to the agent.
	HistoryRequest HistoryKind = "request"
	// HistoryToolCall records one tool invocation including its outcome.
	HistoryToolCall HistoryKind = "tool_call"
	// HistoryResponse records the agent's terminal summary for one run.
	HistoryResponse HistoryKind = "response"
)

// ToolExecutionRecord captures a single tool invocation made by an execution
// agent. Failed calls are recorded too, with Error set and Result empty.
type ToolExecutionRecord struct {
	ToolName  string    `json:"tool_name"`
	Arguments string    `json:"arguments"`
	Result    string    `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryEntry is one element of an execution agent's ordered history.
// Record is non-nil only for HistoryToolCall entries.
type HistoryEntry struct {
	AgentName string               `json:"agent_name"`
	Kind      HistoryKind          `json:"kind"`
	Content   string               `json:"content,omitempty"`
	Record    *ToolExecutionRecord `json:"record,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}
