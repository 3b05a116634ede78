package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	mu      sync.Mutex
	active  map[string]int
	overlap bool
	runs    []string
	delay   time.Duration
	fail    map[string]error
	result  func(agentName, instructions string) Result
}

func newRecordingRunner(delay time.Duration) *recordingRunner {
	return &recordingRunner{active: make(map[string]int), delay: delay, fail: make(map[string]error)}
}

func (r *recordingRunner) Run(ctx context.Context, agentName, instructions string) (Result, error) {
	r.mu.Lock()
	r.active[agentName]++
	if r.active[agentName] > 1 {
		r.overlap = true
	}
	r.runs = append(r.runs, instructions)
	r.mu.Unlock()

	time.Sleep(r.delay)

	r.mu.Lock()
	r.active[agentName]--
	err := r.fail[agentName]
	r.mu.Unlock()

	if err != nil {
		return Result{}, err
	}
	if r.result != nil {
		return r.result(agentName, instructions), nil
	}
	return Result{Success: true, Response: "done: " + instructions}, nil
}

func TestExecuteReturnsOutcome(t *testing.T) {
	runner := newRecordingRunner(0)
	m := NewManager(runner)

	res, err := m.Execute(context.Background(), "email-manager", "triage inbox")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "email-manager", res.AgentName)
	assert.Equal(t, "[SUCCESS] email-manager: done: triage inbox", res.Line())
}

func TestExecuteFailureLine(t *testing.T) {
	runner := newRecordingRunner(0)
	runner.fail["email-manager"] = errors.New("mailbox unavailable")
	m := NewManager(runner)

	res, err := m.Execute(context.Background(), "email-manager", "triage inbox")
	require.Error(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "[FAILED] email-manager: mailbox unavailable", res.Line())
}

func TestRunsForSameAgentNeverOverlap(t *testing.T) {
	runner := newRecordingRunner(20 * time.Millisecond)
	m := NewManager(runner, func(o *Options) { o.MaxConcurrent = 8 })

	var delivered sync.WaitGroup
	delivered.Add(5)
	m.SetResultHandler(func(ctx context.Context, agentName, message string) {
		delivered.Done()
	})

	for i := 0; i < 5; i++ {
		require.NoError(t, m.Dispatch(context.Background(), "email-manager", "task"))
	}
	m.Wait()
	delivered.Wait()

	assert.False(t, runner.overlap, "two runs for the same agent ran concurrently")
	assert.Len(t, runner.runs, 5)
}

func TestDifferentAgentsRunConcurrently(t *testing.T) {
	runner := newRecordingRunner(50 * time.Millisecond)
	m := NewManager(runner, func(o *Options) { o.MaxConcurrent = 8 })
	m.SetResultHandler(func(ctx context.Context, agentName, message string) {})

	start := time.Now()
	require.NoError(t, m.Dispatch(context.Background(), "a", "task"))
	require.NoError(t, m.Dispatch(context.Background(), "b", "task"))
	require.NoError(t, m.Dispatch(context.Background(), "c", "task"))
	m.Wait()

	// Three 50ms runs in parallel should finish well under the serial 150ms.
	assert.Less(t, time.Since(start), 140*time.Millisecond)
}

func TestDispatchDeliversResultLine(t *testing.T) {
	runner := newRecordingRunner(0)
	m := NewManager(runner)

	var mu sync.Mutex
	var got []string
	m.SetResultHandler(func(ctx context.Context, agentName, message string) {
		mu.Lock()
		got = append(got, message)
		mu.Unlock()
	})

	require.NoError(t, m.Dispatch(context.Background(), "email-manager", "triage"))
	m.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "[SUCCESS] email-manager: done: triage", got[0])
}

func TestInjectBypassesRunner(t *testing.T) {
	runner := newRecordingRunner(0)
	m := NewManager(runner)

	var got string
	m.SetResultHandler(func(ctx context.Context, agentName, message string) {
		got = message
	})

	m.Inject(context.Background(), "mailbox-watcher", "Mailbox importance watcher notification:\nurgent invoice")
	assert.Contains(t, got, "urgent invoice")
	assert.Empty(t, runner.runs)
}

func TestGlobalConcurrencyCap(t *testing.T) {
	runner := newRecordingRunner(30 * time.Millisecond)
	m := NewManager(runner, func(o *Options) { o.MaxConcurrent = 1 })
	m.SetResultHandler(func(ctx context.Context, agentName, message string) {})

	start := time.Now()
	require.NoError(t, m.Dispatch(context.Background(), "a", "task"))
	require.NoError(t, m.Dispatch(context.Background(), "b", "task"))
	m.Wait()

	// With a cap of one the runs must serialize.
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}
