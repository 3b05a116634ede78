package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/stewardhq/steward/core"
	"github.com/stewardhq/steward/tool"
)

// Tools returns the trigger management tools exposed to one execution
// agent. Every tool operates only on triggers owned by agentName.
func Tools(svc *Service, agentName string) []tool.Tool {
	return []tool.Tool{
		createTool(svc, agentName),
		updateTool(svc, agentName),
		listTool(svc, agentName),
		pauseTool(svc, agentName),
		resumeTool(svc, agentName),
		deleteTool(svc, agentName),
	}
}

func createTool(svc *Service, agentName string) tool.Tool {
	return tool.NewFunctionTool(
		"create_trigger",
		"Schedule an instruction to run in the future, once or on a recurring cron schedule.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"payload": map[string]any{
					"type":        "string",
					"description": "The instruction text delivered when the trigger fires",
				},
				"start_time": map[string]any{
					"type":        "string",
					"description": "RFC3339 timestamp of the first (or only) fire",
				},
				"recurrence_rule": map[string]any{
					"type":        "string",
					"description": "Optional cron expression (five fields or @daily style); omit for a one-time trigger",
				},
				"timezone": map[string]any{
					"type":        "string",
					"description": "Optional IANA timezone the schedule is evaluated in; defaults to UTC",
				},
			},
			"required": []string{"payload", "start_time"},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			startTime, err := parseTimeArg(args, "start_time")
			if err != nil {
				return nil, err
			}
			trig, err := svc.Create(ctx, CreateParams{
				AgentName:      agentName,
				Payload:        stringArg(args, "payload"),
				StartTime:      startTime,
				RecurrenceRule: stringArg(args, "recurrence_rule"),
				Timezone:       stringArg(args, "timezone"),
			})
			if err != nil {
				return nil, err
			}
			return triggerView(trig), nil
		},
	)
}

func updateTool(svc *Service, agentName string) tool.Tool {
	return tool.NewFunctionTool(
		"update_trigger",
		"Modify an existing trigger's payload, start time, recurrence rule or timezone.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"trigger_id": map[string]any{
					"type":        "number",
					"description": "ID of the trigger to modify",
				},
				"payload":         map[string]any{"type": "string"},
				"start_time":      map[string]any{"type": "string", "description": "RFC3339 timestamp"},
				"recurrence_rule": map[string]any{"type": "string"},
				"timezone":        map[string]any{"type": "string"},
			},
			"required": []string{"trigger_id"},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			id, err := uintArg(args, "trigger_id")
			if err != nil {
				return nil, err
			}
			var params UpdateParams
			if v, ok := args["payload"].(string); ok {
				params.Payload = &v
			}
			if _, ok := args["start_time"]; ok {
				startTime, err := parseTimeArg(args, "start_time")
				if err != nil {
					return nil, err
				}
				params.StartTime = &startTime
			}
			if v, ok := args["recurrence_rule"].(string); ok {
				params.RecurrenceRule = &v
			}
			if v, ok := args["timezone"].(string); ok {
				params.Timezone = &v
			}
			trig, err := svc.Update(ctx, id, agentName, params)
			if err != nil {
				return nil, err
			}
			return triggerView(trig), nil
		},
	)
}

func listTool(svc *Service, agentName string) tool.Tool {
	return tool.NewFunctionTool(
		"list_triggers",
		"List all triggers owned by this agent with their status and next fire time.",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			triggers, err := svc.List(ctx, agentName)
			if err != nil {
				return nil, err
			}
			views := make([]map[string]any, len(triggers))
			for i := range triggers {
				views[i] = triggerView(&triggers[i])
			}
			return views, nil
		},
		tool.WithReadOnly(),
	)
}

func pauseTool(svc *Service, agentName string) tool.Tool {
	return tool.NewFunctionTool(
		"pause_trigger",
		"Pause an active trigger so it stops firing until resumed.",
		triggerIDSchema(),
		func(ctx context.Context, args map[string]any) (any, error) {
			id, err := uintArg(args, "trigger_id")
			if err != nil {
				return nil, err
			}
			trig, err := svc.Pause(ctx, id, agentName)
			if err != nil {
				return nil, err
			}
			return triggerView(trig), nil
		},
	)
}

func resumeTool(svc *Service, agentName string) tool.Tool {
	return tool.NewFunctionTool(
		"resume_trigger",
		"Resume a paused trigger. A recently missed fire runs immediately; older misses skip to the next occurrence.",
		triggerIDSchema(),
		func(ctx context.Context, args map[string]any) (any, error) {
			id, err := uintArg(args, "trigger_id")
			if err != nil {
				return nil, err
			}
			trig, err := svc.Resume(ctx, id, agentName)
			if err != nil {
				return nil, err
			}
			return triggerView(trig), nil
		},
	)
}

func deleteTool(svc *Service, agentName string) tool.Tool {
	return tool.NewFunctionTool(
		"delete_trigger",
		"Permanently delete a trigger.",
		triggerIDSchema(),
		func(ctx context.Context, args map[string]any) (any, error) {
			id, err := uintArg(args, "trigger_id")
			if err != nil {
				return nil, err
			}
			if err := svc.Delete(ctx, id, agentName); err != nil {
				return nil, err
			}
			return map[string]any{"deleted": true, "trigger_id": id}, nil
		},
	)
}

func triggerIDSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"trigger_id": map[string]any{
				"type":        "number",
				"description": "ID of the trigger",
			},
		},
		"required": []string{"trigger_id"},
	}
}

func triggerView(t *core.Trigger) map[string]any {
	view := map[string]any{
		"trigger_id":      t.ID,
		"payload":         t.Payload,
		"start_time":      t.StartTime.Format(time.RFC3339),
		"recurrence_rule": t.RecurrenceRule,
		"timezone":        t.Timezone,
		"status":          string(t.Status),
	}
	if t.NextFire != nil {
		view["next_fire"] = t.NextFire.Format(time.RFC3339)
	}
	if t.LastError != "" {
		view["last_error"] = t.LastError
		view["failure_count"] = t.FailureCount
	}
	return view
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func uintArg(args map[string]any, key string) (uint, error) {
	switch v := args[key].(type) {
	case float64:
		if v < 0 {
			return 0, fmt.Errorf("%s must be non-negative", key)
		}
		return uint(v), nil
	case int:
		if v < 0 {
			return 0, fmt.Errorf("%s must be non-negative", key)
		}
		return uint(v), nil
	default:
		return 0, fmt.Errorf("%s must be a number", key)
	}
}

func parseTimeArg(args map[string]any, key string) (time.Time, error) {
	raw, ok := args[key].(string)
	if !ok {
		return time.Time{}, fmt.Errorf("%s must be an RFC3339 timestamp string", key)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s is not a valid RFC3339 timestamp: %w", key, err)
	}
	return t, nil
}
