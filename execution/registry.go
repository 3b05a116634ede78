package execution

import (
	"context"
	"time"

	"github.com/stewardhq/steward/mailbox"
	"github.com/stewardhq/steward/tool"
	"github.com/stewardhq/steward/trigger"
)

// Registry builds the per-agent tool registry: mailbox operations plus
// trigger management scoped to the agent's own name.
type Registry struct {
	mbox       mailbox.Mailbox
	triggerSvc *trigger.Service
}

// NewRegistry constructs a Registry.
func NewRegistry(mbox mailbox.Mailbox, triggerSvc *trigger.Service) *Registry {
	return &Registry{mbox: mbox, triggerSvc: triggerSvc}
}

// ToolsFor returns the registry for one agent name, keyed by tool name.
func (r *Registry) ToolsFor(agentName string) map[string]tool.Tool {
	tools := mailboxTools(r.mbox)
	tools = append(tools, trigger.Tools(r.triggerSvc, agentName)...)
	byName := make(map[string]tool.Tool, len(tools))
	for _, t := range tools {
		byName[t.Name()] = t
	}
	return byName
}

func mailboxTools(mbox mailbox.Mailbox) []tool.Tool {
	return []tool.Tool{
		tool.NewFunctionTool(
			"list_recent_messages",
			"List messages received in the last N hours, oldest first.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"hours": map[string]any{
						"type":        "number",
						"description": "Lookback window in hours (default 24)",
					},
					"max_results": map[string]any{
						"type":        "number",
						"description": "Maximum messages to return (default 20)",
					},
				},
			},
			func(ctx context.Context, args map[string]any) (any, error) {
				hours := numberArg(args, "hours", 24)
				max := int(numberArg(args, "max_results", 20))
				since := time.Now().UTC().Add(-time.Duration(hours * float64(time.Hour)))
				return mbox.ListRecent(ctx, since, max)
			},
			tool.WithReadOnly(),
		),
		tool.NewFunctionTool(
			"search_messages",
			"Search the mailbox with a free-text query.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Free-text search query",
					},
					"max_results": map[string]any{
						"type":        "number",
						"description": "Maximum messages to return (default 20)",
					},
				},
				"required": []string{"query"},
			},
			func(ctx context.Context, args map[string]any) (any, error) {
				query, _ := args["query"].(string)
				max := int(numberArg(args, "max_results", 20))
				return mbox.Search(ctx, query, max)
			},
			tool.WithReadOnly(),
		),
		tool.NewFunctionTool(
			"create_draft",
			"Create a draft message without sending it.",
			draftSchema(),
			func(ctx context.Context, args map[string]any) (any, error) {
				id, err := mbox.CreateDraft(ctx, draftFromArgs(args))
				if err != nil {
					return nil, err
				}
				return map[string]any{"draft_id": id}, nil
			},
		),
		tool.NewFunctionTool(
			"send_message",
			"Send a message immediately.",
			draftSchema(),
			func(ctx context.Context, args map[string]any) (any, error) {
				id, err := mbox.Send(ctx, draftFromArgs(args))
				if err != nil {
					return nil, err
				}
				return map[string]any{"message_id": id, "sent": true}, nil
			},
		),
		tool.NewFunctionTool(
			"reply_to_message",
			"Reply within the thread of an existing message.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"message_id": map[string]any{
						"type":        "string",
						"description": "ID of the message being replied to",
					},
					"body": map[string]any{
						"type":        "string",
						"description": "Reply body text",
					},
				},
				"required": []string{"message_id", "body"},
			},
			func(ctx context.Context, args map[string]any) (any, error) {
				messageID, _ := args["message_id"].(string)
				body, _ := args["body"].(string)
				id, err := mbox.Reply(ctx, messageID, body)
				if err != nil {
					return nil, err
				}
				return map[string]any{"message_id": id, "sent": true}, nil
			},
		),
		tool.NewFunctionTool(
			"forward_message",
			"Forward an existing message to another recipient.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"message_id": map[string]any{
						"type":        "string",
						"description": "ID of the message to forward",
					},
					"to": map[string]any{
						"type":        "string",
						"description": "Recipient address",
					},
					"note": map[string]any{
						"type":        "string",
						"description": "Optional note prepended to the forwarded message",
					},
				},
				"required": []string{"message_id", "to"},
			},
			func(ctx context.Context, args map[string]any) (any, error) {
				messageID, _ := args["message_id"].(string)
				to, _ := args["to"].(string)
				note, _ := args["note"].(string)
				id, err := mbox.Forward(ctx, messageID, to, note)
				if err != nil {
					return nil, err
				}
				return map[string]any{"message_id": id, "sent": true}, nil
			},
		),
	}
}

func draftSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"to": map[string]any{
				"type":        "string",
				"description": "Recipient address",
			},
			"subject": map[string]any{
				"type":        "string",
				"description": "Subject line",
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Message body",
			},
		},
		"required": []string{"to", "subject", "body"},
	}
}

func draftFromArgs(args map[string]any) mailbox.Draft {
	to, _ := args["to"].(string)
	subject, _ := args["subject"].(string)
	body, _ := args["body"].(string)
	return mailbox.Draft{To: to, Subject: subject, Body: body}
}

func numberArg(args map[string]any, key string, def float64) float64 {
	if v, ok := args[key].(float64); ok && v > 0 {
		return v
	}
	return def
}
