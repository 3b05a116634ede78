package trigger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stewardhq/steward/core"
	"github.com/stewardhq/steward/dispatch"
	"github.com/stewardhq/steward/store"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newTestService(t *testing.T, clock *testClock) (*Service, *store.Store) {
	t.Helper()
	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	svc := NewService(s, func(o *ServiceOptions) { o.Now = clock.Now })
	return svc, s
}

func TestCreateOneTimeTrigger(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 6, 10, 8, 0, 0, 0, time.UTC)}
	svc, _ := newTestService(t, clock)
	ctx := context.Background()

	fire := time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)
	trig, err := svc.Create(ctx, CreateParams{
		AgentName: "email-manager",
		Payload:   "send the report",
		StartTime: fire,
	})
	require.NoError(t, err)
	assert.Equal(t, core.TriggerActive, trig.Status)
	require.NotNil(t, trig.NextFire)
	assert.True(t, trig.NextFire.Equal(fire))
}

func TestCreateRejectsBadInput(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 6, 10, 8, 0, 0, 0, time.UTC)}
	svc, _ := newTestService(t, clock)
	ctx := context.Background()
	start := time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)

	_, err := svc.Create(ctx, CreateParams{AgentName: "a", StartTime: start})
	assert.Error(t, err)

	_, err = svc.Create(ctx, CreateParams{
		AgentName: "a", Payload: "p", StartTime: start, RecurrenceRule: "not a cron",
	})
	assert.Error(t, err)

	_, err = svc.Create(ctx, CreateParams{
		AgentName: "a", Payload: "p", StartTime: start, Timezone: "Mars/Olympus",
	})
	assert.Error(t, err)
}

func TestOneTimeTriggerFiresOnceThenCompletes(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 6, 10, 8, 0, 0, 0, time.UTC)}
	svc, _ := newTestService(t, clock)
	ctx := context.Background()

	fire := time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)
	trig, err := svc.Create(ctx, CreateParams{
		AgentName: "email-manager", Payload: "send it", StartTime: fire,
	})
	require.NoError(t, err)

	clock.Set(fire.Add(5 * time.Second))
	due, err := svc.Due(ctx)
	require.NoError(t, err)
	require.Len(t, due, 1)

	claimed, err := svc.Claim(ctx, &due[0], fire)
	require.NoError(t, err)
	assert.True(t, claimed)

	// The occurrence is spent: no second claim, no further due results.
	claimed, err = svc.Claim(ctx, &due[0], fire)
	require.NoError(t, err)
	assert.False(t, claimed)

	got, err := svc.store.GetTrigger(ctx, trig.ID, "email-manager")
	require.NoError(t, err)
	assert.Equal(t, core.TriggerCompleted, got.Status)
	assert.Nil(t, got.NextFire)

	clock.Set(fire.Add(time.Hour))
	due, err = svc.Due(ctx)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestDailyRecurrenceAdvancesOneLocalDay(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	dayN := time.Date(2026, 6, 10, 9, 0, 0, 0, loc)
	clock := &testClock{now: dayN.Add(-time.Hour).UTC()}
	svc, _ := newTestService(t, clock)
	ctx := context.Background()

	trig, err := svc.Create(ctx, CreateParams{
		AgentName:      "email-manager",
		Payload:        "daily digest",
		StartTime:      dayN.UTC(),
		RecurrenceRule: "0 9 * * *",
		Timezone:       "America/New_York",
	})
	require.NoError(t, err)
	require.NotNil(t, trig.NextFire)
	assert.True(t, trig.NextFire.Equal(dayN.UTC()))

	clock.Set(dayN.Add(3 * time.Second).UTC())
	claimed, err := svc.Claim(ctx, trig, dayN.UTC())
	require.NoError(t, err)
	assert.True(t, claimed)

	got, err := svc.store.GetTrigger(ctx, trig.ID, "email-manager")
	require.NoError(t, err)
	assert.Equal(t, core.TriggerActive, got.Status)
	require.NotNil(t, got.NextFire)

	dayN1 := time.Date(2026, 6, 11, 9, 0, 0, 0, loc)
	assert.True(t, got.NextFire.Equal(dayN1.UTC()),
		"next fire %s, want %s", got.NextFire, dayN1.UTC())
	assert.True(t, got.NextFire.After(dayN.UTC()), "next fire must be strictly after the prior one")
}

func TestMissedRecurringOccurrencesSkipToLatest(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 6, 10, 8, 0, 0, 0, time.UTC)}
	svc, _ := newTestService(t, clock)
	ctx := context.Background()

	fire := time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)
	trig, err := svc.Create(ctx, CreateParams{
		AgentName: "email-manager", Payload: "hourly check",
		StartTime: fire, RecurrenceRule: "0 * * * *",
	})
	require.NoError(t, err)

	// Three hours of downtime: the missed occurrences are skipped, not
	// replayed.
	clock.Set(fire.Add(3*time.Hour + 10*time.Minute))
	claimed, err := svc.Claim(ctx, trig, fire)
	require.NoError(t, err)
	assert.True(t, claimed)

	got, err := svc.store.GetTrigger(ctx, trig.ID, "email-manager")
	require.NoError(t, err)
	require.NotNil(t, got.NextFire)
	assert.True(t, got.NextFire.Equal(fire.Add(4*time.Hour)))
}

func TestPausedTriggerNeverDue(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 6, 10, 8, 0, 0, 0, time.UTC)}
	svc, _ := newTestService(t, clock)
	ctx := context.Background()

	fire := time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)
	trig, err := svc.Create(ctx, CreateParams{
		AgentName: "email-manager", Payload: "p", StartTime: fire,
	})
	require.NoError(t, err)

	_, err = svc.Pause(ctx, trig.ID, "email-manager")
	require.NoError(t, err)

	clock.Set(fire.Add(time.Hour))
	due, err := svc.Due(ctx)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestResumeWithinGraceKeepsFireTime(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 6, 10, 8, 0, 0, 0, time.UTC)}
	svc, _ := newTestService(t, clock)
	ctx := context.Background()

	fire := time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)
	trig, err := svc.Create(ctx, CreateParams{
		AgentName: "email-manager", Payload: "p", StartTime: fire,
	})
	require.NoError(t, err)
	_, err = svc.Pause(ctx, trig.ID, "email-manager")
	require.NoError(t, err)

	// Missed by two minutes, inside the five minute grace window.
	clock.Set(fire.Add(2 * time.Minute))
	resumed, err := svc.Resume(ctx, trig.ID, "email-manager")
	require.NoError(t, err)
	assert.Equal(t, core.TriggerActive, resumed.Status)
	require.NotNil(t, resumed.NextFire)
	assert.True(t, resumed.NextFire.Equal(fire))
}

func TestResumeBeyondGrace(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 6, 10, 8, 0, 0, 0, time.UTC)}
	svc, _ := newTestService(t, clock)
	ctx := context.Background()

	fire := time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)

	oneTime, err := svc.Create(ctx, CreateParams{
		AgentName: "email-manager", Payload: "p", StartTime: fire,
	})
	require.NoError(t, err)
	recurring, err := svc.Create(ctx, CreateParams{
		AgentName: "email-manager", Payload: "p", StartTime: fire, RecurrenceRule: "0 9 * * *",
	})
	require.NoError(t, err)
	for _, id := range []uint{oneTime.ID, recurring.ID} {
		_, err = svc.Pause(ctx, id, "email-manager")
		require.NoError(t, err)
	}

	clock.Set(fire.Add(2 * time.Hour))

	resumed, err := svc.Resume(ctx, oneTime.ID, "email-manager")
	require.NoError(t, err)
	assert.Equal(t, core.TriggerCompleted, resumed.Status)
	assert.Nil(t, resumed.NextFire)

	resumed, err = svc.Resume(ctx, recurring.ID, "email-manager")
	require.NoError(t, err)
	assert.Equal(t, core.TriggerActive, resumed.Status)
	require.NotNil(t, resumed.NextFire)
	assert.True(t, resumed.NextFire.Equal(fire.Add(24*time.Hour)))
}

func TestFailureBudgetMovesTriggerToFailed(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 6, 10, 8, 0, 0, 0, time.UTC)}
	svc, _ := newTestService(t, clock)
	ctx := context.Background()

	fire := time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)
	trig, err := svc.Create(ctx, CreateParams{
		AgentName: "email-manager", Payload: "p", StartTime: fire, RecurrenceRule: "0 * * * *",
	})
	require.NoError(t, err)

	dispatchErr := errors.New("agent run timed out")
	for i := 0; i < DefaultFailureBudget; i++ {
		fresh, err := svc.store.GetTrigger(ctx, trig.ID, "email-manager")
		require.NoError(t, err)
		require.NoError(t, svc.RecordFailure(ctx, fresh, dispatchErr))
	}

	got, err := svc.store.GetTrigger(ctx, trig.ID, "email-manager")
	require.NoError(t, err)
	assert.Equal(t, core.TriggerFailed, got.Status)
	assert.Equal(t, DefaultFailureBudget, got.FailureCount)
	assert.Equal(t, "agent run timed out", got.LastError)

	clock.Set(fire.Add(time.Hour))
	due, err := svc.Due(ctx)
	require.NoError(t, err)
	assert.Empty(t, due)
}

type fakeDispatcher struct {
	mu       sync.Mutex
	executed []string
	injected []string
	err      error
}

func (d *fakeDispatcher) Execute(ctx context.Context, agentName, instructions string) (dispatch.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.executed = append(d.executed, instructions)
	if d.err != nil {
		return dispatch.Result{}, d.err
	}
	return dispatch.Result{AgentName: agentName, Success: true, Response: "handled"}, nil
}

func (d *fakeDispatcher) Inject(ctx context.Context, source, message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.injected = append(d.injected, message)
}

func TestSchedulerPollFiresDueTrigger(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 6, 10, 8, 0, 0, 0, time.UTC)}
	svc, _ := newTestService(t, clock)
	ctx := context.Background()

	fire := time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)
	trig, err := svc.Create(ctx, CreateParams{
		AgentName: "email-manager", Payload: "send the digest", StartTime: fire,
	})
	require.NoError(t, err)

	d := &fakeDispatcher{}
	sched := NewScheduler(svc, d)

	clock.Set(fire.Add(time.Second))
	sched.Poll(ctx)
	sched.wg.Wait()

	require.Len(t, d.executed, 1)
	assert.Contains(t, d.executed[0], "send the digest")
	assert.Contains(t, d.executed[0], "Scheduled for: "+fire.Format(time.RFC3339))
	require.Len(t, d.injected, 1)
	assert.Equal(t, "[SUCCESS] email-manager: handled", d.injected[0])

	got, err := svc.store.GetTrigger(ctx, trig.ID, "email-manager")
	require.NoError(t, err)
	assert.Equal(t, core.TriggerCompleted, got.Status)

	// A second poll finds nothing: the occurrence was claimed.
	sched.Poll(ctx)
	sched.wg.Wait()
	assert.Len(t, d.executed, 1)
}

func TestSchedulerRecordsDispatchFailure(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 6, 10, 8, 0, 0, 0, time.UTC)}
	svc, _ := newTestService(t, clock)
	ctx := context.Background()

	fire := time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)
	trig, err := svc.Create(ctx, CreateParams{
		AgentName: "email-manager", Payload: "p", StartTime: fire, RecurrenceRule: "0 * * * *",
	})
	require.NoError(t, err)

	d := &fakeDispatcher{err: errors.New("model unavailable")}
	sched := NewScheduler(svc, d)

	clock.Set(fire.Add(time.Second))
	sched.Poll(ctx)
	sched.wg.Wait()

	got, err := svc.store.GetTrigger(ctx, trig.ID, "email-manager")
	require.NoError(t, err)
	assert.Equal(t, 1, got.FailureCount)
	assert.Equal(t, "model unavailable", got.LastError)
	assert.Equal(t, core.TriggerActive, got.Status)
	require.NotNil(t, got.NextFire)
	assert.True(t, got.NextFire.After(fire), "fire time advanced despite the failure")

	require.Len(t, d.injected, 1)
	assert.Equal(t, "[FAILED] email-manager: model unavailable", d.injected[0])
}

func TestTriggerToolsRoundTrip(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 6, 10, 8, 0, 0, 0, time.UTC)}
	svc, _ := newTestService(t, clock)
	ctx := context.Background()

	tools := Tools(svc, "email-manager")
	byName := make(map[string]interface {
		Call(ctx context.Context, args map[string]any) (any, error)
	})
	for _, tl := range tools {
		byName[tl.Name()] = tl
	}

	created, err := byName["create_trigger"].Call(ctx, map[string]any{
		"payload":    "weekly report",
		"start_time": "2026-06-10T09:00:00Z",
	})
	require.NoError(t, err)
	view := created.(map[string]any)
	assert.Equal(t, "active", view["status"])
	id := float64(view["trigger_id"].(uint))

	listed, err := byName["list_triggers"].Call(ctx, map[string]any{})
	require.NoError(t, err)
	assert.Len(t, listed.([]map[string]any), 1)

	paused, err := byName["pause_trigger"].Call(ctx, map[string]any{"trigger_id": id})
	require.NoError(t, err)
	assert.Equal(t, "paused", paused.(map[string]any)["status"])

	resumed, err := byName["resume_trigger"].Call(ctx, map[string]any{"trigger_id": id})
	require.NoError(t, err)
	assert.Equal(t, "active", resumed.(map[string]any)["status"])

	_, err = byName["delete_trigger"].Call(ctx, map[string]any{"trigger_id": id})
	require.NoError(t, err)

	listed, err = byName["list_triggers"].Call(ctx, map[string]any{})
	require.NoError(t, err)
	assert.Empty(t, listed.([]map[string]any))

	// Missing required argument is a validation error, not a crash.
	_, err = byName["create_trigger"].Call(ctx, map[string]any{"payload": "no start"})
	require.Error(t, err)
}
