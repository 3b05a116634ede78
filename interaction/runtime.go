// Package interaction implements the user-facing orchestrator: a bounded
// tool-calling loop over a closed, fixed tool set (message the user, message
// an agent, send a draft, wait, react). It consumes new user messages and
// completed execution-agent results, reading context from the conversation
// log's summary plus unsummarized tail.
package interaction

import (
	"context"
	"fmt"
	"strings"

	"github.com/stewardhq/steward/conversation"
	"github.com/stewardhq/steward/core"
	"github.com/stewardhq/steward/logging"
	"github.com/stewardhq/steward/model"
)

// DefaultMaxIterations bounds the tool loop per turn.
const DefaultMaxIterations = 8

const failureNote = "I ran into a problem handling that and had to stop. Please try again."

// Dispatcher is the slice of dispatch.Manager the interaction runtime needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, agentName, instructions string) error
}

// Result is the outcome of one interaction turn.
type Result struct {
	// Response is the last user-visible text produced this turn, empty when
	// the agent chose to wait.
	Response string
	// Success is false only when the turn ended with a terminal model
	// failure.
	Success bool
	// AgentsUsed lists execution agent names delegated to this turn.
	AgentsUsed []string
}

// RuntimeOptions configure the interaction runtime.
type RuntimeOptions struct {
	MaxIterations int
	Retry         model.RetryOptions
	Logger        logging.Logger
}

// Runtime is the interaction agent. One instance serves the whole process;
// turns for user messages and agent results may run concurrently, with the
// conversation log as the serialization point.
type Runtime struct {
	model         model.Model
	log           *conversation.Log
	summarizer    *conversation.Summarizer
	roster        core.RosterStore
	notifier      core.Notifier
	dispatcher    Dispatcher
	logger        logging.Logger
	maxIterations int
}

// NewRuntime constructs a Runtime. The model is wrapped with bounded retry;
// pass a zero Retry option struct for the defaults.
func NewRuntime(
	m model.Model,
	log *conversation.Log,
	summarizer *conversation.Summarizer,
	roster core.RosterStore,
	notifier core.Notifier,
	dispatcher Dispatcher,
	optFns ...func(o *RuntimeOptions),
) *Runtime {
	opts := RuntimeOptions{
		MaxIterations: DefaultMaxIterations,
		Retry:         model.DefaultRetryOptions(),
		Logger:        logging.NewNop(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Runtime{
		model:         model.WithRetry(m, opts.Retry),
		log:           log,
		summarizer:    summarizer,
		roster:        roster,
		notifier:      notifier,
		dispatcher:    dispatcher,
		logger:        opts.Logger,
		maxIterations: opts.MaxIterations,
	}
}

// HandleUserMessage records a new user message and runs one turn over it.
func (r *Runtime) HandleUserMessage(ctx context.Context, text string) (Result, error) {
	if err := r.log.RecordUserMessage(ctx, text); err != nil {
		return Result{}, err
	}
	return r.runTurn(ctx, "The user just sent the message above.")
}

// HandleAgentMessage records a completed execution result (or watcher
// notification) and runs one turn over it. It has the dispatch result
// handler's shape so each finished delegation re-enters here independently.
func (r *Runtime) HandleAgentMessage(ctx context.Context, agentName, message string) (Result, error) {
	if err := r.log.RecordAgentMessage(ctx, agentName, message); err != nil {
		return Result{}, err
	}
	return r.runTurn(ctx, fmt.Sprintf(
		"Agent %q just reported the result above. Decide whether the user should hear about it now.", agentName))
}

// runTurn executes one bounded tool loop. Model failures (after retry)
// surface to the user as a failure note in the log rather than an error to
// the caller; only store failures propagate.
func (r *Runtime) runTurn(ctx context.Context, eventNote string) (Result, error) {
	transcript, err := r.summarizer.RenderTranscript(ctx)
	if err != nil {
		return Result{}, err
	}

	req := model.Request{
		Instructions: interactionSystemPrompt,
		Messages: []model.Message{{
			Role:    "user",
			Content: transcript + "\n\n" + eventNote,
		}},
		Tools: interactionToolDefinitions(),
	}

	turn := &turnState{}
	for iteration := 0; iteration < r.maxIterations; iteration++ {
		resp, err := r.model.Generate(ctx, req)
		if err != nil {
			return r.failTurn(ctx, err)
		}

		if len(resp.ToolCalls) == 0 {
			// Bare text is treated as a message to the user; an empty reply
			// as an implicit wait.
			text := strings.TrimSpace(resp.Text)
			if text == "" {
				if !turn.acted {
					if err := r.log.RecordWait(ctx, "no action taken"); err != nil {
						return Result{}, err
					}
				}
				return Result{Success: true, Response: turn.lastReply, AgentsUsed: turn.agents}, nil
			}
			if err := r.sendToUser(ctx, text); err != nil {
				return Result{}, err
			}
			turn.lastReply = text
			return Result{Success: true, Response: text, AgentsUsed: turn.agents}, nil
		}

		req.Messages = append(req.Messages, model.Message{
			Role:      "assistant",
			Content:   resp.Text,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			payload, err := r.dispatchCall(ctx, call, turn)
			if err != nil {
				return Result{}, err
			}
			req.Messages = append(req.Messages, model.Message{
				Role:       "tool",
				Content:    payload,
				ToolCallID: call.ID,
			})
		}
	}

	// Cap reached with the model still requesting tools: force a terminal
	// summary instead of looping.
	r.logger.Warn("interaction turn hit iteration cap", "cap", r.maxIterations)
	if turn.lastReply == "" {
		forced := "I started working on this but could not wrap it up in one turn. I'll follow up as results come in."
		if err := r.sendToUser(ctx, forced); err != nil {
			return Result{}, err
		}
		turn.lastReply = forced
	}
	return Result{Success: true, Response: turn.lastReply, AgentsUsed: turn.agents}, nil
}

// failTurn appends a user-visible failure note after retries were exhausted.
func (r *Runtime) failTurn(ctx context.Context, cause error) (Result, error) {
	r.logger.Error("interaction turn failed", "error", cause)
	if err := r.log.RecordReply(ctx, failureNote); err != nil {
		return Result{}, err
	}
	if err := r.notifier.Deliver(ctx, failureNote); err != nil {
		r.logger.Warn("failure note delivery failed", "error", err)
	}
	return Result{Success: false, Response: failureNote}, nil
}

func (r *Runtime) sendToUser(ctx context.Context, text string) error {
	if err := r.log.RecordReply(ctx, text); err != nil {
		return err
	}
	if err := r.notifier.Deliver(ctx, text); err != nil {
		return fmt.Errorf("deliver reply: %w", err)
	}
	return nil
}
