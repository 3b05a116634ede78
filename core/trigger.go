package core

import "time"

// TriggerStatus is the lifecycle state of a scheduled trigger.
type TriggerStatus string

const (
	// TriggerActive triggers are polled and fire when due.
	TriggerActive TriggerStatus = "active"
	// TriggerPaused triggers are excluded from polling until resumed.
	TriggerPaused TriggerStatus = "paused"
	// TriggerCompleted marks a one-time trigger that fired, or a recurring
	// trigger whose schedule produced no further occurrence.
	TriggerCompleted TriggerStatus = "completed"
	// TriggerFailed marks a trigger whose dispatches exhausted the failure
	// budget; it is excluded from further polling.
	TriggerFailed TriggerStatus = "failed"
)

// Trigger is a stored schedule that causes a future execution-agent run.
// RecurrenceRule is a cron expression evaluated in Timezone; an empty rule
// means the trigger fires once at StartTime.
type Trigger struct {
	ID             uint          `json:"id"`
	AgentName      string        `json:"agent_name"`
	Payload        string        `json:"payload"`
	StartTime      time.Time     `json:"start_time"`
	RecurrenceRule string        `json:"recurrence_rule,omitempty"`
	Timezone       string        `json:"timezone,omitempty"`
	Status         TriggerStatus `json:"status"`
	NextFire       *time.Time    `json:"next_fire,omitempty"`
	LastError      string        `json:"last_error,omitempty"`
	FailureCount   int           `json:"failure_count"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}
