// Package execution implements the named execution agents: a bounded
// tool-calling loop over a fixed registry of mailbox and trigger tools, with
// every request, tool call and response persisted to the agent's ordered
// history. One Runtime serves all agent names; the dispatch manager
// guarantees no two runs for the same name overlap.
package execution

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stewardhq/steward/core"
	"github.com/stewardhq/steward/dispatch"
	"github.com/stewardhq/steward/logging"
	"github.com/stewardhq/steward/model"
	"github.com/stewardhq/steward/tool"
)

const (
	// DefaultMaxIterations bounds the tool loop per run.
	DefaultMaxIterations = 8
	// DefaultHistoryLimit is how many prior history entries are replayed
	// into a new run's first message.
	DefaultHistoryLimit = 20
)

const incompleteSummary = "Stopped after reaching the tool call limit for this run. " +
	"The work above may be incomplete; a follow-up instruction can continue it."

// RuntimeOptions configure the execution runtime.
type RuntimeOptions struct {
	MaxIterations int
	HistoryLimit  int
	Logger        logging.Logger
}

// Runtime runs execution agents. It implements dispatch.Runner.
type Runtime struct {
	model         model.Model
	history       core.HistoryStore
	registry      *Registry
	executor      *Executor
	logger        logging.Logger
	maxIterations int
	historyLimit  int
}

// NewRuntime constructs a Runtime.
func NewRuntime(m model.Model, history core.HistoryStore, registry *Registry, optFns ...func(o *RuntimeOptions)) *Runtime {
	opts := RuntimeOptions{
		MaxIterations: DefaultMaxIterations,
		HistoryLimit:  DefaultHistoryLimit,
		Logger:        logging.NewNop(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Runtime{
		model:         m,
		history:       history,
		registry:      registry,
		executor:      NewExecutor(ExecutorConfig{Logger: opts.Logger}),
		logger:        opts.Logger,
		maxIterations: opts.MaxIterations,
		historyLimit:  opts.HistoryLimit,
	}
}

// Run implements dispatch.Runner: one bounded tool loop producing exactly
// one terminal summary. Tool failures are fed back to the model and recorded
// rather than aborting the run; only model/store failures return an error.
func (r *Runtime) Run(ctx context.Context, agentName, instructions string) (dispatch.Result, error) {
	tools := r.registry.ToolsFor(agentName)

	prior, err := r.history.History(ctx, agentName)
	if err != nil {
		return dispatch.Result{}, fmt.Errorf("load history for %s: %w", agentName, err)
	}

	if err := r.history.AppendHistory(ctx, core.HistoryEntry{
		AgentName: agentName,
		Kind:      core.HistoryRequest,
		Content:   instructions,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		return dispatch.Result{}, fmt.Errorf("record request: %w", err)
	}

	req := model.Request{
		Instructions: systemPrompt(agentName),
		Messages: []model.Message{{
			Role:    "user",
			Content: firstMessage(prior, instructions, r.historyLimit),
		}},
		Tools: toolDefinitions(tools),
	}

	for iteration := 0; iteration < r.maxIterations; iteration++ {
		resp, err := r.model.Generate(ctx, req)
		if err != nil {
			return dispatch.Result{}, fmt.Errorf("model call: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			summary := strings.TrimSpace(resp.Text)
			if summary == "" {
				summary = "(no summary produced)"
			}
			if err := r.recordResponse(ctx, agentName, summary); err != nil {
				return dispatch.Result{}, err
			}
			return dispatch.Result{AgentName: agentName, Success: true, Response: summary}, nil
		}

		req.Messages = append(req.Messages, model.Message{
			Role:      "assistant",
			Content:   resp.Text,
			ToolCalls: resp.ToolCalls,
		})

		outcomes := r.executor.Execute(ctx, tools, resp.ToolCalls)
		for _, out := range outcomes {
			record := core.ToolExecutionRecord{
				ToolName:  out.Call.Name,
				Arguments: out.Call.Arguments,
				Result:    out.Result,
				Timestamp: time.Now().UTC(),
			}
			content := out.Result
			if out.Err != nil {
				record.Error = out.Err.Error()
				record.Result = ""
				content = toolErrorPayload(out.Err)
			}
			if err := r.history.AppendHistory(ctx, core.HistoryEntry{
				AgentName: agentName,
				Kind:      core.HistoryToolCall,
				Record:    &record,
				Timestamp: record.Timestamp,
			}); err != nil {
				return dispatch.Result{}, fmt.Errorf("record tool call: %w", err)
			}
			req.Messages = append(req.Messages, model.Message{
				Role:       "tool",
				Content:    content,
				ToolCallID: out.Call.ID,
			})
		}
	}

	// Cap reached with the model still requesting tools.
	r.logger.Warn("execution run hit iteration cap", "agent", agentName, "cap", r.maxIterations)
	if err := r.recordResponse(ctx, agentName, incompleteSummary); err != nil {
		return dispatch.Result{}, err
	}
	return dispatch.Result{AgentName: agentName, Success: true, Response: incompleteSummary}, nil
}

func (r *Runtime) recordResponse(ctx context.Context, agentName, summary string) error {
	if err := r.history.AppendHistory(ctx, core.HistoryEntry{
		AgentName: agentName,
		Kind:      core.HistoryResponse,
		Content:   summary,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("record response: %w", err)
	}
	return nil
}

func systemPrompt(agentName string) string {
	return fmt.Sprintf(`You are %q, a persistent task-executing agent working on behalf of a personal assistant.
You receive one instruction per run. Use your tools to carry it out, then reply
with a single concise summary of what you did and what the outcome was. Your
prior activity for this agent name is provided as execution history; build on
it instead of repeating completed work. If the instruction cannot be completed,
say exactly what failed and what remains to be done.`, agentName)
}

// firstMessage renders the replayed history plus the current instruction as
// the run's opening user message.
func firstMessage(prior []core.HistoryEntry, instructions string, limit int) string {
	var b strings.Builder
	b.WriteString("<execution_history>\n")
	if len(prior) == 0 {
		b.WriteString("(no prior activity)\n")
	} else {
		if len(prior) > limit {
			fmt.Fprintf(&b, "(%d earlier entries omitted)\n", len(prior)-limit)
			prior = prior[len(prior)-limit:]
		}
		for _, entry := range prior {
			b.WriteString(renderHistoryEntry(entry))
			b.WriteString("\n")
		}
	}
	b.WriteString("</execution_history>\n\n<current_instruction>\n")
	b.WriteString(instructions)
	b.WriteString("\n</current_instruction>")
	return b.String()
}

func renderHistoryEntry(entry core.HistoryEntry) string {
	ts := entry.Timestamp.Format("2006-01-02 15:04:05")
	switch entry.Kind {
	case core.HistoryToolCall:
		if entry.Record == nil {
			return fmt.Sprintf("[tool_call %s]", ts)
		}
		if entry.Record.Error != "" {
			return fmt.Sprintf("[tool_call %s] %s(%s) failed: %s",
				ts, entry.Record.ToolName, entry.Record.Arguments, entry.Record.Error)
		}
		return fmt.Sprintf("[tool_call %s] %s(%s) -> %s",
			ts, entry.Record.ToolName, entry.Record.Arguments, entry.Record.Result)
	case core.HistoryResponse:
		return fmt.Sprintf("[response %s] %s", ts, entry.Content)
	default:
		return fmt.Sprintf("[request %s] %s", ts, entry.Content)
	}
}

// toolErrorPayload renders a failed call for the model. Structured tool
// errors keep their code so the model can distinguish bad arguments from
// runtime failures.
func toolErrorPayload(err error) string {
	if te, ok := err.(*tool.Error); ok {
		return fmt.Sprintf(`{"error":%q,"code":%q}`, te.Message, te.Code)
	}
	return fmt.Sprintf(`{"error":%q}`, err.Error())
}

func toolDefinitions(registry map[string]tool.Tool) []model.ToolDefinition {
	defs := make([]model.ToolDefinition, 0, len(registry))
	for _, t := range registry {
		defs = append(defs, model.NewToolDefinition(t.Name(), t.Description(), t.Parameters()))
	}
	return defs
}
