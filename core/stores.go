package core

import (
	"context"
	"time"
)

// ConversationStore persists the append-only conversation log plus the
// working-memory summary state. AppendMessage returns the index assigned to
// the new entry. Writes are atomic per record; a failed append never leaves
// a partial entry behind.
type ConversationStore interface {
	AppendMessage(ctx context.Context, msg Message) (int64, error)
	MessagesAfter(ctx context.Context, index int64) ([]Message, error)
	LoadSummaryState(ctx context.Context) (SummaryState, error)
	SaveSummaryState(ctx context.Context, state SummaryState) error
}

// HistoryStore persists per-agent execution histories. Entries for one agent
// name appear in exactly the order appended; callers are responsible for
// serializing appends per name (see dispatch.Manager).
type HistoryStore interface {
	AppendHistory(ctx context.Context, entry HistoryEntry) error
	History(ctx context.Context, agentName string) ([]HistoryEntry, error)
}

// TriggerStore persists trigger schedules and supports the due-query the
// scheduler polls with. Advance performs a compare-and-set on the previous
// next-fire time so a trigger occurrence is claimed at most once across
// concurrent pollers and restarts; it reports whether the claim succeeded.
type TriggerStore interface {
	CreateTrigger(ctx context.Context, trigger *Trigger) error
	GetTrigger(ctx context.Context, id uint, agentName string) (*Trigger, error)
	UpdateTrigger(ctx context.Context, trigger *Trigger) error
	DeleteTrigger(ctx context.Context, id uint, agentName string) error
	ListTriggers(ctx context.Context, agentName string) ([]Trigger, error)
	DueTriggers(ctx context.Context, before time.Time) ([]Trigger, error)
	AdvanceTrigger(ctx context.Context, id uint, prevFire time.Time, nextFire *time.Time, status TriggerStatus) (bool, error)
}

// SeenStore is the durable set of external message IDs already classified by
// the importance watcher. It survives restarts and is bounded: oldest
// entries are pruned once the configured limit is exceeded.
type SeenStore interface {
	IsSeen(ctx context.Context, messageID string) (bool, error)
	MarkSeen(ctx context.Context, messageIDs []string) error
	HasEntries(ctx context.Context) (bool, error)
}

// RosterStore tracks the names of execution agents created so far. AddAgent
// reports whether the name was newly added.
type RosterStore interface {
	AddAgent(ctx context.Context, name string) (bool, error)
	Agents(ctx context.Context) ([]string, error)
}

// Notifier delivers user-facing output to an external surface (chat UI,
// messaging channel). The pipeline treats it as an opaque transport.
type Notifier interface {
	Deliver(ctx context.Context, message string) error
	React(ctx context.Context, emoji string) error
}
