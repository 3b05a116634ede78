package interaction

import (
	"context"
	"fmt"

	"github.com/stewardhq/steward/internal/util"
	"github.com/stewardhq/steward/model"
)

const interactionSystemPrompt = `You are a personal assistant orchestrator. You read the conversation so far
(a summary of older context plus the recent tagged entries) and decide what to
do next using your tools:

- send_message_to_user: reply to the user in chat.
- send_message_to_agent: delegate a task to a named, persistent execution
  agent. Reuse an existing agent name for related work (it keeps history);
  set is_new when creating a fresh one. Results arrive later as agent
  messages; do not promise immediate completion.
- send_draft: show the user a prepared outgoing message as To/Subject/body.
- wait: explicitly do nothing this turn (give a short reason).
- react: acknowledge with a single emoji without sending text.

Delegate anything that needs mailbox access or scheduling; never claim to
have done such work yourself. Keep replies short and concrete.`

// The interaction tool set is closed: model output is decoded against these
// schemas and dispatched by name; an unrecognized name is a decode error fed
// back to the model, never a crash.
var interactionSchemas = map[string]map[string]any{
	"send_message_to_user": {
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"description": "The chat message shown to the user",
			},
		},
		"required": []string{"message"},
	},
	"send_message_to_agent": {
		"type": "object",
		"properties": map[string]any{
			"agent_name": map[string]any{
				"type":        "string",
				"description": "Stable name of the execution agent, e.g. email-manager",
			},
			"instructions": map[string]any{
				"type":        "string",
				"description": "Complete, self-contained instructions for this run",
			},
			"is_new": map[string]any{
				"type":        "boolean",
				"description": "True when intentionally creating a new agent",
			},
		},
		"required": []string{"agent_name", "instructions"},
	},
	"send_draft": {
		"type": "object",
		"properties": map[string]any{
			"to":      map[string]any{"type": "string", "description": "Recipient address"},
			"subject": map[string]any{"type": "string", "description": "Subject line"},
			"body":    map[string]any{"type": "string", "description": "Draft body"},
		},
		"required": []string{"to", "subject", "body"},
	},
	"wait": {
		"type": "object",
		"properties": map[string]any{
			"reason": map[string]any{
				"type":        "string",
				"description": "Short reason for taking no action",
			},
		},
	},
	"react": {
		"type": "object",
		"properties": map[string]any{
			"emoji": map[string]any{
				"type":        "string",
				"description": "A single emoji",
			},
		},
		"required": []string{"emoji"},
	},
}

var toolDescriptions = map[string]string{
	"send_message_to_user":  "Send a chat message to the user.",
	"send_message_to_agent": "Delegate a task to a named execution agent; its result arrives later as an agent message.",
	"send_draft":            "Show the user a prepared outgoing message (To/Subject/body).",
	"wait":                  "Take no user-visible action this turn.",
	"react":                 "Acknowledge the latest message with an emoji reaction.",
}

func interactionToolDefinitions() []model.ToolDefinition {
	names := []string{"send_message_to_user", "send_message_to_agent", "send_draft", "wait", "react"}
	defs := make([]model.ToolDefinition, 0, len(names))
	for _, name := range names {
		defs = append(defs, model.NewToolDefinition(name, toolDescriptions[name], interactionSchemas[name]))
	}
	return defs
}

// turnState accumulates what happened across one turn's iterations.
type turnState struct {
	acted     bool
	lastReply string
	agents    []string
}

// dispatchCall decodes and executes one model-requested call. Invalid names
// or arguments produce an error payload returned to the model for one
// corrective round-trip; store and delivery failures propagate.
func (r *Runtime) dispatchCall(ctx context.Context, call model.ToolCall, turn *turnState) (string, error) {
	schema, ok := interactionSchemas[call.Name]
	if !ok {
		r.logger.Warn("model requested unknown tool", "tool", call.Name)
		return fmt.Sprintf(`{"error":"unknown tool %q","code":"VALIDATION_ERROR"}`, call.Name), nil
	}
	args, err := call.ParseArguments()
	if err != nil {
		return fmt.Sprintf(`{"error":"arguments are not a JSON object: %v","code":"VALIDATION_ERROR"}`, err), nil
	}
	if err := util.ValidateParameters(args, schema); err != nil {
		return fmt.Sprintf(`{"error":%q,"code":"VALIDATION_ERROR"}`, err.Error()), nil
	}

	switch call.Name {
	case "send_message_to_user":
		message, _ := args["message"].(string)
		if err := r.sendToUser(ctx, message); err != nil {
			return "", err
		}
		turn.acted = true
		turn.lastReply = message
		return `{"delivered":true}`, nil

	case "send_message_to_agent":
		agentName, _ := args["agent_name"].(string)
		instructions, _ := args["instructions"].(string)
		isNew, err := r.roster.AddAgent(ctx, agentName)
		if err != nil {
			return "", err
		}
		if err := r.dispatcher.Dispatch(ctx, agentName, instructions); err != nil {
			return "", fmt.Errorf("dispatch to %s: %w", agentName, err)
		}
		turn.acted = true
		turn.agents = append(turn.agents, agentName)
		r.logger.Info("delegated to agent", "agent", agentName, "new", isNew)
		return fmt.Sprintf(`{"status":"submitted","new_agent_created":%t}`, isNew), nil

	case "send_draft":
		to, _ := args["to"].(string)
		subject, _ := args["subject"].(string)
		body, _ := args["body"].(string)
		formatted := fmt.Sprintf("To: %s\nSubject: %s\n\n%s", to, subject, body)
		if err := r.sendToUser(ctx, formatted); err != nil {
			return "", err
		}
		turn.acted = true
		turn.lastReply = formatted
		return `{"delivered":true}`, nil

	case "wait":
		reason, _ := args["reason"].(string)
		if err := r.log.RecordWait(ctx, reason); err != nil {
			return "", err
		}
		turn.acted = true
		return `{"waiting":true}`, nil

	case "react":
		emoji, _ := args["emoji"].(string)
		if err := r.notifier.React(ctx, emoji); err != nil {
			return "", fmt.Errorf("react: %w", err)
		}
		if err := r.log.RecordSystemNote(ctx, "reacted with "+emoji); err != nil {
			return "", err
		}
		turn.acted = true
		return `{"reacted":true}`, nil
	}

	return fmt.Sprintf(`{"error":"unknown tool %q","code":"VALIDATION_ERROR"}`, call.Name), nil
}
