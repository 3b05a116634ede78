package mailbox

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemory is a volatile Mailbox implementation backed by process-local
// slices. It is safe for concurrent access and suited to tests and local
// development without a provider account.
type InMemory struct {
	mu       sync.RWMutex
	inbox    []Message
	drafts   map[string]Draft
	sent     []Draft
	replies  map[string][]string
	forwards map[string][]string
}

// NewInMemory constructs an empty in-memory mailbox.
func NewInMemory() *InMemory {
	return &InMemory{
		drafts:   make(map[string]Draft),
		replies:  make(map[string][]string),
		forwards: make(map[string][]string),
	}
}

// Deliver places a message in the inbox, generating an ID when absent.
func (m *InMemory) Deliver(msg Message) Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	m.inbox = append(m.inbox, msg)
	return msg
}

// ListRecent implements Mailbox.
func (m *InMemory) ListRecent(ctx context.Context, since time.Time, max int) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Message
	for _, msg := range m.inbox {
		if !msg.Timestamp.Before(since) {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if max > 0 && len(out) > max {
		out = out[len(out)-max:]
	}
	return out, nil
}

// Search implements Mailbox with a naive substring match over subject/body/sender.
func (m *InMemory) Search(ctx context.Context, query string, max int) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	needle := strings.ToLower(query)
	var out []Message
	for _, msg := range m.inbox {
		haystack := strings.ToLower(msg.Subject + " " + msg.Body + " " + msg.From)
		if strings.Contains(haystack, needle) {
			out = append(out, msg)
		}
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out, nil
}

// CreateDraft implements Mailbox.
func (m *InMemory) CreateDraft(ctx context.Context, draft Draft) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.drafts[id] = draft
	return id, nil
}

// Send implements Mailbox.
func (m *InMemory) Send(ctx context.Context, draft Draft) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, draft)
	return uuid.NewString(), nil
}

// Reply implements Mailbox.
func (m *InMemory) Reply(ctx context.Context, messageID, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasMessageLocked(messageID) {
		return "", fmt.Errorf("message %s not found", messageID)
	}
	m.replies[messageID] = append(m.replies[messageID], body)
	return uuid.NewString(), nil
}

// Forward implements Mailbox.
func (m *InMemory) Forward(ctx context.Context, messageID, to, note string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasMessageLocked(messageID) {
		return "", fmt.Errorf("message %s not found", messageID)
	}
	m.forwards[messageID] = append(m.forwards[messageID], to)
	return uuid.NewString(), nil
}

// Sent returns a copy of all messages sent so far.
func (m *InMemory) Sent() []Draft {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Draft, len(m.sent))
	copy(out, m.sent)
	return out
}

// Drafts returns a copy of all stored drafts keyed by ID.
func (m *InMemory) Drafts() map[string]Draft {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Draft, len(m.drafts))
	for k, v := range m.drafts {
		out[k] = v
	}
	return out
}

// Replies returns recorded reply bodies for a message.
func (m *InMemory) Replies(messageID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.replies[messageID]...)
}

func (m *InMemory) hasMessageLocked(messageID string) bool {
	for _, msg := range m.inbox {
		if msg.ID == messageID {
			return true
		}
	}
	return false
}
