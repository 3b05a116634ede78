package store

import (
	"time"

	"github.com/stewardhq/steward/core"
)

// conversationRow is one entry of the append-only conversation log. The
// autoincrement primary key doubles as the log index.
type conversationRow struct {
	Idx       int64  `gorm:"primaryKey;autoIncrement"`
	Role      string `gorm:"not null"`
	Content   string
	AgentName string
	Timestamp time.Time `gorm:"not null"`
}

func (conversationRow) TableName() string { return "conversation_log" }

func (r conversationRow) toMessage() core.Message {
	return core.Message{
		Index:     r.Idx,
		Role:      core.Role(r.Role),
		Content:   r.Content,
		AgentName: r.AgentName,
		Timestamp: r.Timestamp,
	}
}

// summaryRow holds the singleton working-memory summary state (id is
// always 1).
type summaryRow struct {
	ID          uint `gorm:"primaryKey"`
	SummaryText string
	LastIndex   int64
	UpdatedAt   time.Time
}

func (summaryRow) TableName() string { return "summary_state" }

// historyRow is one entry of an execution agent's history. Tool call fields
// are populated only for kind "tool_call".
type historyRow struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	AgentName string `gorm:"index;not null"`
	Kind      string `gorm:"not null"`
	Content   string
	ToolName  string
	Arguments string
	Result    string
	ToolError string
	Timestamp time.Time `gorm:"not null"`
}

func (historyRow) TableName() string { return "execution_history" }

func historyRowFrom(entry core.HistoryEntry) historyRow {
	row := historyRow{
		AgentName: entry.AgentName,
		Kind:      string(entry.Kind),
		Content:   entry.Content,
		Timestamp: entry.Timestamp,
	}
	if entry.Record != nil {
		row.ToolName = entry.Record.ToolName
		row.Arguments = entry.Record.Arguments
		row.Result = entry.Record.Result
		row.ToolError = entry.Record.Error
		if row.Timestamp.IsZero() {
			row.Timestamp = entry.Record.Timestamp
		}
	}
	return row
}

func (r historyRow) toEntry() core.HistoryEntry {
	entry := core.HistoryEntry{
		AgentName: r.AgentName,
		Kind:      core.HistoryKind(r.Kind),
		Content:   r.Content,
		Timestamp: r.Timestamp,
	}
	if entry.Kind == core.HistoryToolCall {
		entry.Record = &core.ToolExecutionRecord{
			ToolName:  r.ToolName,
			Arguments: r.Arguments,
			Result:    r.Result,
			Error:     r.ToolError,
			Timestamp: r.Timestamp,
		}
	}
	return entry
}

// triggerRow persists one trigger schedule.
type triggerRow struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	AgentName      string `gorm:"index;not null"`
	Payload        string
	StartTime      time.Time `gorm:"not null"`
	RecurrenceRule string
	Timezone       string
	Status         string     `gorm:"index;not null"`
	NextFire       *time.Time `gorm:"index"`
	LastError      string
	FailureCount   int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (triggerRow) TableName() string { return "triggers" }

func triggerRowFrom(t *core.Trigger) triggerRow {
	return triggerRow{
		ID:             t.ID,
		AgentName:      t.AgentName,
		Payload:        t.Payload,
		StartTime:      t.StartTime,
		RecurrenceRule: t.RecurrenceRule,
		Timezone:       t.Timezone,
		Status:         string(t.Status),
		NextFire:       t.NextFire,
		LastError:      t.LastError,
		FailureCount:   t.FailureCount,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

func (r triggerRow) toTrigger() core.Trigger {
	return core.Trigger{
		ID:             r.ID,
		AgentName:      r.AgentName,
		Payload:        r.Payload,
		StartTime:      r.StartTime,
		RecurrenceRule: r.RecurrenceRule,
		Timezone:       r.Timezone,
		Status:         core.TriggerStatus(r.Status),
		NextFire:       r.NextFire,
		LastError:      r.LastError,
		FailureCount:   r.FailureCount,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

// seenRow records one externally-classified message ID.
type seenRow struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	MessageID string `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time
}

func (seenRow) TableName() string { return "seen_messages" }

// rosterRow records one known execution agent name.
type rosterRow struct {
	Name      string `gorm:"primaryKey"`
	CreatedAt time.Time
}

func (rosterRow) TableName() string { return "agent_roster" }
