// Package watcher polls the mailbox for new inbound messages, classifies
// unseen ones for importance with a forced model tool call, and pushes
// important ones into the interaction pipeline as notifications. Every
// processed message ID is durably marked seen before the next cycle, so a
// message is classified at most once across restarts.
package watcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/stewardhq/steward/logging"
	"github.com/stewardhq/steward/mailbox"
	"github.com/stewardhq/steward/model"
)

const classifierInstructions = `You triage inbound mail for a personal assistant. Given one message, decide
whether the user should be interrupted about it now. Important: personal
correspondence expecting a reply, deadlines, money, travel changes, anything
urgent. Not important: newsletters, promotions, automated notifications,
routine receipts. You must respond by calling mark_message_importance exactly
once.`

var classifierTool = model.NewToolDefinition(
	"mark_message_importance",
	"Record whether this message warrants notifying the user now.",
	map[string]any{
		"type": "object",
		"properties": map[string]any{
			"important": map[string]any{
				"type":        "boolean",
				"description": "True when the user should be notified now",
			},
			"reason": map[string]any{
				"type":        "string",
				"description": "One short sentence explaining the decision",
			},
		},
		"required": []string{"important"},
	},
)

// Classification is the outcome for one message.
type Classification struct {
	Important bool
	Reason    string
}

// Classifier decides message importance with a single forced tool call.
type Classifier struct {
	model  model.Model
	logger logging.Logger
}

// NewClassifier constructs a Classifier.
func NewClassifier(m model.Model, logger logging.Logger) *Classifier {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Classifier{model: m, logger: logger}
}

// Classify runs the classifier on one message. Fail-safe: when the model
// answers without the expected tool call or with undecodable arguments, the
// message is treated as not important and no error is returned; only
// transport failures surface as errors.
func (c *Classifier) Classify(ctx context.Context, msg mailbox.Message) (Classification, error) {
	resp, err := c.model.Generate(ctx, model.Request{
		Instructions: classifierInstructions,
		Messages:     []model.Message{{Role: "user", Content: renderMessage(msg)}},
		Tools:        []model.ToolDefinition{classifierTool},
	})
	if err != nil {
		return Classification{}, err
	}

	for _, call := range resp.ToolCalls {
		if call.Name != "mark_message_importance" {
			continue
		}
		args, err := call.ParseArguments()
		if err != nil {
			c.logger.Warn("classifier arguments undecodable, defaulting to not important",
				"message_id", msg.ID, "error", err)
			return Classification{}, nil
		}
		important, _ := args["important"].(bool)
		reason, _ := args["reason"].(string)
		return Classification{Important: important, Reason: reason}, nil
	}

	c.logger.Warn("classifier made no decision, defaulting to not important", "message_id", msg.ID)
	return Classification{}, nil
}

const bodyExcerptLimit = 1000

func renderMessage(msg mailbox.Message) string {
	body := msg.Body
	if len(body) > bodyExcerptLimit {
		body = body[:bodyExcerptLimit] + "..."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\n", msg.From)
	fmt.Fprintf(&b, "Subject: %s\n", msg.Subject)
	fmt.Fprintf(&b, "Received: %s\n", msg.Timestamp.Format("2006-01-02 15:04:05"))
	if len(msg.Labels) > 0 {
		fmt.Fprintf(&b, "Labels: %s\n", strings.Join(msg.Labels, ", "))
	}
	if msg.HasAttachments {
		b.WriteString("Has attachments\n")
	}
	b.WriteString("\n")
	b.WriteString(body)
	return b.String()
}
