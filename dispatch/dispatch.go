// Package dispatch routes instructions to execution agents. The Manager
// guarantees mutual exclusion per agent name (two runs for the same name
// never overlap), caps global concurrency, and feeds every run's outcome
// back into the interaction pipeline through a result handler.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/stewardhq/steward/logging"
)

// Runner executes one instruction on a named execution agent and returns its
// terminal summary.
type Runner interface {
	Run(ctx context.Context, agentName, instructions string) (Result, error)
}

// Result is the outcome of one execution-agent run.
type Result struct {
	AgentName string
	Success   bool
	Response  string
	Err       error
}

// Line renders the result in the form injected back into the conversation.
func (r Result) Line() string {
	status := "SUCCESS"
	if !r.Success {
		status = "FAILED"
	}
	body := r.Response
	if body == "" && r.Err != nil {
		body = r.Err.Error()
	}
	return fmt.Sprintf("[%s] %s: %s", status, r.AgentName, body)
}

// ResultHandler receives completed run outcomes and watcher notifications.
// It is called outside any per-name lock.
type ResultHandler func(ctx context.Context, agentName, message string)

// Options configure the Manager.
type Options struct {
	// MaxConcurrent caps simultaneously running agents. Zero means 4.
	MaxConcurrent int64
	// RunTimeout bounds a single agent run. Zero means 90 seconds.
	RunTimeout time.Duration
	// Logger defaults to a no-op logger.
	Logger logging.Logger
}

// Manager serializes runs per agent name and bounds global concurrency.
type Manager struct {
	runner  Runner
	sem     *semaphore.Weighted
	timeout time.Duration
	logger  logging.Logger

	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	handler ResultHandler
	wg      sync.WaitGroup
}

// NewManager constructs a Manager over the given runner.
func NewManager(runner Runner, optFns ...func(o *Options)) *Manager {
	opts := Options{MaxConcurrent: 4, RunTimeout: 90 * time.Second, Logger: logging.NewNop()}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 90 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Manager{
		runner:  runner,
		sem:     semaphore.NewWeighted(opts.MaxConcurrent),
		timeout: opts.RunTimeout,
		logger:  opts.Logger,
		locks:   make(map[string]*sync.Mutex),
	}
}

// SetResultHandler installs the callback invoked with every run outcome and
// injected notification. It must be set before the first Dispatch.
func (m *Manager) SetResultHandler(h ResultHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
}

func (m *Manager) nameLock(agentName string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[agentName]
	if !ok {
		l = &sync.Mutex{}
		m.locks[agentName] = l
	}
	return l
}

func (m *Manager) resultHandler() ResultHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handler
}

// Execute runs instructions on the named agent synchronously, honoring the
// per-name lock and the global concurrency cap, and returns the outcome.
// The outcome is NOT fed to the result handler; callers that need
// re-injection use Dispatch.
func (m *Manager) Execute(ctx context.Context, agentName, instructions string) (Result, error) {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return Result{}, err
	}
	defer m.sem.Release(1)

	lock := m.nameLock(agentName)
	lock.Lock()
	defer lock.Unlock()

	runCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	m.logger.Debug("executing agent run", "agent", agentName)
	res, err := m.runner.Run(runCtx, agentName, instructions)
	if err != nil {
		return Result{AgentName: agentName, Success: false, Err: err}, err
	}
	res.AgentName = agentName
	return res, nil
}

// Dispatch schedules an asynchronous run and returns immediately. The
// outcome line ("[SUCCESS] name: ..." or "[FAILED] name: ...") is delivered
// to the result handler when the run finishes. ctx only gates scheduling;
// the run itself uses a detached context bounded by the run timeout.
func (m *Manager) Dispatch(ctx context.Context, agentName, instructions string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		runCtx := context.Background()
		res, err := m.Execute(runCtx, agentName, instructions)
		if err != nil {
			m.logger.Warn("agent run failed", "agent", agentName, "error", err)
			res = Result{AgentName: agentName, Success: false, Err: err}
		}
		if h := m.resultHandler(); h != nil {
			h(runCtx, agentName, res.Line())
		}
	}()
	return nil
}

// Inject delivers a synthetic agent message (watcher notifications) straight
// to the result handler without running anything.
func (m *Manager) Inject(ctx context.Context, source, message string) {
	if h := m.resultHandler(); h != nil {
		h(ctx, source, message)
	}
}

// Wait blocks until every dispatched run has completed.
func (m *Manager) Wait() {
	m.wg.Wait()
}
