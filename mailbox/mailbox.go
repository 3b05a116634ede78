// Package mailbox defines the capability interface through which execution
// agents and the importance watcher reach the user's mailbox. The concrete
// provider SDK lives outside this module; implementations adapt it to this
// surface.
package mailbox

import (
	"context"
	"time"
)

// Message is the provider-neutral view of an inbound mail message.
type Message struct {
	ID             string    `json:"id"`
	ThreadID       string    `json:"thread_id,omitempty"`
	From           string    `json:"from"`
	To             string    `json:"to"`
	Subject        string    `json:"subject"`
	Body           string    `json:"body"`
	Labels         []string  `json:"labels,omitempty"`
	HasAttachments bool      `json:"has_attachments"`
	Timestamp      time.Time `json:"timestamp"`
}

// Draft is an outbound message in preparation.
type Draft struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Mailbox is the set of mailbox operations consumed by tool handlers.
// Every call must honor ctx cancellation; implementations wrap provider
// errors without retrying (the callers own retry policy).
type Mailbox interface {
	// ListRecent returns messages received at or after since, newest last,
	// capped at max.
	ListRecent(ctx context.Context, since time.Time, max int) ([]Message, error)

	// Search returns messages matching a free-text query, capped at max.
	Search(ctx context.Context, query string, max int) ([]Message, error)

	// CreateDraft stores a draft and returns its ID.
	CreateDraft(ctx context.Context, draft Draft) (string, error)

	// Send sends a message immediately and returns its ID.
	Send(ctx context.Context, draft Draft) (string, error)

	// Reply sends a reply within the thread of messageID.
	Reply(ctx context.Context, messageID, body string) (string, error)

	// Forward forwards messageID to another recipient with an optional note.
	Forward(ctx context.Context, messageID, to, note string) (string, error)
}
