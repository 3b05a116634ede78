package core

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author class of a conversation entry.
type Role string

const (
	// RoleUser marks a message typed by the user.
	RoleUser Role = "user"
	// RoleAssistant marks a reply produced by the interaction agent.
	RoleAssistant Role = "assistant"
	// RoleAgent marks a synthetic message injected by an execution agent,
	// the trigger scheduler or the importance watcher.
	RoleAgent Role = "agent"
	// RoleSystemNote marks orchestration metadata (wait markers, reactions,
	// failure notes) that never surfaces in user-facing chat history.
	RoleSystemNote Role = "system-note"
)

// Message is one immutable entry of the append-only conversation log.
type Message struct {
	Index     int64     `json:"index"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	AgentName string    `json:"agent_name,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SummaryState is the persisted working-memory snapshot: one summary block
// plus the index of the last log entry it consumed. It is rebuilt atomically
// and never partially visible.
type SummaryState struct {
	SummaryText string     `json:"summary_text"`
	LastIndex   int64      `json:"last_index"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// EmptySummaryState returns the initial state before any summarization ran.
func EmptySummaryState() SummaryState {
	return SummaryState{LastIndex: -1}
}

// NewID generates a unique identifier for requests and records.
func NewID() string { return uuid.NewString() }
