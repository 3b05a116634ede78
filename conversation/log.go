// Package conversation maintains the shared interaction context: an
// append-only log of everything that crossed the user-facing channel plus a
// working-memory summarizer that folds old entries into a compact summary.
package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/stewardhq/steward/core"
)

// timestampLayout is the format used in rendered transcript tags.
const timestampLayout = "2006-01-02 15:04:05"

// Log records conversation entries. All writes go through the underlying
// ConversationStore; the Log itself holds no state and is safe for
// concurrent use.
type Log struct {
	store core.ConversationStore
	now   func() time.Time
}

// NewLog constructs a Log over the given store.
func NewLog(store core.ConversationStore) *Log {
	return &Log{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// RecordUserMessage appends a message typed by the user.
func (l *Log) RecordUserMessage(ctx context.Context, content string) error {
	return l.append(ctx, core.RoleUser, "", content)
}

// RecordReply appends a user-facing reply produced by the interaction agent.
func (l *Log) RecordReply(ctx context.Context, content string) error {
	return l.append(ctx, core.RoleAssistant, "", content)
}

// RecordAgentMessage appends a synthetic message attributed to an execution
// agent, the scheduler or the watcher.
func (l *Log) RecordAgentMessage(ctx context.Context, agentName, content string) error {
	return l.append(ctx, core.RoleAgent, agentName, content)
}

// RecordWait appends a marker noting that the interaction agent chose to
// produce no user-visible output for this turn.
func (l *Log) RecordWait(ctx context.Context, reason string) error {
	content := "waiting"
	if reason != "" {
		content = "waiting: " + reason
	}
	return l.append(ctx, core.RoleSystemNote, "", content)
}

// RecordSystemNote appends orchestration metadata (reactions, failure notes).
func (l *Log) RecordSystemNote(ctx context.Context, content string) error {
	return l.append(ctx, core.RoleSystemNote, "", content)
}

func (l *Log) append(ctx context.Context, role core.Role, agentName, content string) error {
	_, err := l.store.AppendMessage(ctx, core.Message{
		Role:      role,
		Content:   content,
		AgentName: agentName,
		Timestamp: l.now(),
	})
	return err
}

// RenderEntry formats one log entry in the tagged transcript form consumed
// by the interaction agent and the summarizer.
func RenderEntry(msg core.Message) string {
	ts := msg.Timestamp.Format(timestampLayout)
	switch msg.Role {
	case core.RoleUser:
		return fmt.Sprintf("<user_message timestamp=%q>%s</user_message>", ts, msg.Content)
	case core.RoleAssistant:
		return fmt.Sprintf("<assistant_reply timestamp=%q>%s</assistant_reply>", ts, msg.Content)
	case core.RoleAgent:
		return fmt.Sprintf("<agent_message agent=%q timestamp=%q>%s</agent_message>", msg.AgentName, ts, msg.Content)
	default:
		return fmt.Sprintf("<system_note timestamp=%q>%s</system_note>", ts, msg.Content)
	}
}
