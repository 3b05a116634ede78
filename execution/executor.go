package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/stewardhq/steward/logging"
	"github.com/stewardhq/steward/model"
	"github.com/stewardhq/steward/tool"
)

// CallOutcome is the result of one tool call within a model turn. Result
// holds the JSON-encoded return value on success; Err is set on failure.
// Exactly one outcome is produced per incoming call, in request order.
type CallOutcome struct {
	Call     model.ToolCall
	Result   string
	Err      error
	Duration time.Duration
}

// ExecutorConfig configures the batch executor.
type ExecutorConfig struct {
	// MaxParallel caps concurrent read-only calls. Zero means len(batch).
	MaxParallel int
	Logger      logging.Logger
}

// Executor runs one model turn's tool calls against a registry. A batch
// whose calls are all read-only runs in parallel with order-preserving
// result collection; a batch containing any mutating call runs sequentially
// in request order, so dependent sequences like draft-then-send behave as
// written.
type Executor struct {
	maxParallel int
	logger      logging.Logger
}

// NewExecutor constructs an Executor.
func NewExecutor(cfg ExecutorConfig) *Executor {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Executor{maxParallel: cfg.MaxParallel, logger: logger}
}

// Execute runs the batch and returns one outcome per call, in request order.
// Individual call failures (unknown tool, validation, execution) are
// captured in the outcome, never returned as the batch error; only context
// cancellation aborts the batch.
func (e *Executor) Execute(ctx context.Context, registry map[string]tool.Tool, calls []model.ToolCall) []CallOutcome {
	n := len(calls)
	if n == 0 {
		return nil
	}
	if n == 1 || !allReadOnly(registry, calls) {
		return e.executeSequential(ctx, registry, calls)
	}
	return e.executeParallel(ctx, registry, calls)
}

func (e *Executor) executeSequential(ctx context.Context, registry map[string]tool.Tool, calls []model.ToolCall) []CallOutcome {
	outcomes := make([]CallOutcome, len(calls))
	for i, call := range calls {
		if err := ctx.Err(); err != nil {
			outcomes[i] = CallOutcome{Call: call, Err: err}
			continue
		}
		outcomes[i] = e.executeOne(ctx, registry, call)
	}
	return outcomes
}

func (e *Executor) executeParallel(ctx context.Context, registry map[string]tool.Tool, calls []model.ToolCall) []CallOutcome {
	n := len(calls)
	maxPar := e.maxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	outcomes := make([]CallOutcome, n)
	sem := make(chan struct{}, maxPar)
	var wg sync.WaitGroup

	for i := range calls {
		if ctx.Err() != nil {
			outcomes[i] = CallOutcome{Call: calls[i], Err: ctx.Err()}
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, call model.ToolCall) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[idx] = e.executeOne(ctx, registry, call)
		}(i, calls[i])
	}
	wg.Wait()
	return outcomes
}

// executeOne runs a single call with panic recovery.
func (e *Executor) executeOne(ctx context.Context, registry map[string]tool.Tool, call model.ToolCall) (out CallOutcome) {
	out.Call = call
	start := time.Now()
	defer func() {
		out.Duration = time.Since(start)
		if r := recover(); r != nil {
			e.logger.Error("tool call panicked",
				"tool", call.Name, "recover", r, "stack", string(debug.Stack()))
			out.Err = fmt.Errorf("tool %s panicked: %v", call.Name, r)
		}
	}()

	impl, ok := registry[call.Name]
	if !ok {
		out.Err = tool.NewError(call.Name, "unknown tool", "VALIDATION_ERROR")
		return out
	}
	args, err := call.ParseArguments()
	if err != nil {
		out.Err = tool.NewError(call.Name, fmt.Sprintf("arguments are not a JSON object: %v", err), "VALIDATION_ERROR")
		return out
	}

	result, err := impl.Call(ctx, args)
	if err != nil {
		out.Err = err
		return out
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		out.Err = fmt.Errorf("tool %s returned unencodable result: %w", call.Name, err)
		return out
	}
	out.Result = string(encoded)
	e.logger.Debug("tool call executed",
		"tool", call.Name, "duration_ms", out.Duration.Milliseconds())
	return out
}

// allReadOnly reports whether every call targets a tool that declares itself
// side-effect free. Unknown tools count as mutating.
func allReadOnly(registry map[string]tool.Tool, calls []model.ToolCall) bool {
	for _, call := range calls {
		impl, ok := registry[call.Name]
		if !ok {
			return false
		}
		ro, ok := impl.(tool.ReadOnly)
		if !ok || !ro.ReadOnly() {
			return false
		}
	}
	return true
}
