package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stewardhq/steward/core"
)

func newTestStore(t *testing.T, optFns ...func(o *Options)) *Store {
	t.Helper()
	s, err := OpenMemory(optFns...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConversationAppendAndRead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.AppendMessage(ctx, core.Message{Role: core.RoleUser, Content: "hello"})
	require.NoError(t, err)
	second, err := s.AppendMessage(ctx, core.Message{Role: core.RoleAssistant, Content: "hi there"})
	require.NoError(t, err)
	require.Greater(t, second, first)

	msgs, err := s.MessagesAfter(ctx, -1)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, core.RoleUser, msgs[0].Role)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, first, msgs[0].Index)

	tail, err := s.MessagesAfter(ctx, first)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, "hi there", tail[0].Content)
}

func TestSummaryStateRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	state, err := s.LoadSummaryState(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), state.LastIndex)
	assert.Empty(t, state.SummaryText)

	require.NoError(t, s.SaveSummaryState(ctx, core.SummaryState{SummaryText: "v1", LastIndex: 10}))
	require.NoError(t, s.SaveSummaryState(ctx, core.SummaryState{SummaryText: "v2", LastIndex: 25}))

	state, err = s.LoadSummaryState(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v2", state.SummaryText)
	assert.Equal(t, int64(25), state.LastIndex)
	require.NotNil(t, state.UpdatedAt)
}

func TestHistoryIsScopedAndOrdered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendHistory(ctx, core.HistoryEntry{
		AgentName: "email-manager", Kind: core.HistoryRequest, Content: "triage inbox",
	}))
	require.NoError(t, s.AppendHistory(ctx, core.HistoryEntry{
		AgentName: "email-manager", Kind: core.HistoryToolCall,
		Record: &core.ToolExecutionRecord{ToolName: "list_recent_messages", Arguments: `{"max_results":10}`, Result: "[]"},
	}))
	require.NoError(t, s.AppendHistory(ctx, core.HistoryEntry{
		AgentName: "email-manager", Kind: core.HistoryResponse, Content: "inbox empty",
	}))
	require.NoError(t, s.AppendHistory(ctx, core.HistoryEntry{
		AgentName: "calendar", Kind: core.HistoryRequest, Content: "unrelated",
	}))

	entries, err := s.History(ctx, "email-manager")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, core.HistoryRequest, entries[0].Kind)
	assert.Equal(t, core.HistoryToolCall, entries[1].Kind)
	require.NotNil(t, entries[1].Record)
	assert.Equal(t, "list_recent_messages", entries[1].Record.ToolName)
	assert.Equal(t, core.HistoryResponse, entries[2].Kind)
	assert.Nil(t, entries[0].Record)
}

func TestTriggerCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fire := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	trig := &core.Trigger{
		AgentName: "email-manager",
		Payload:   "send the weekly report",
		StartTime: fire,
		Status:    core.TriggerActive,
		NextFire:  &fire,
	}
	require.NoError(t, s.CreateTrigger(ctx, trig))
	require.NotZero(t, trig.ID)

	got, err := s.GetTrigger(ctx, trig.ID, "email-manager")
	require.NoError(t, err)
	assert.Equal(t, "send the weekly report", got.Payload)
	require.NotNil(t, got.NextFire)
	assert.True(t, got.NextFire.Equal(fire))

	_, err = s.GetTrigger(ctx, trig.ID, "calendar")
	assert.ErrorIs(t, err, ErrTriggerNotFound)

	got.Payload = "send the monthly report"
	got.Status = core.TriggerPaused
	require.NoError(t, s.UpdateTrigger(ctx, got))
	again, err := s.GetTrigger(ctx, trig.ID, "email-manager")
	require.NoError(t, err)
	assert.Equal(t, "send the monthly report", again.Payload)
	assert.Equal(t, core.TriggerPaused, again.Status)

	require.NoError(t, s.DeleteTrigger(ctx, trig.ID, "email-manager"))
	assert.ErrorIs(t, s.DeleteTrigger(ctx, trig.ID, "email-manager"), ErrTriggerNotFound)
}

func TestDueTriggersFiltersStatusAndTime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	mk := func(name string, status core.TriggerStatus, fire *time.Time) {
		require.NoError(t, s.CreateTrigger(ctx, &core.Trigger{
			AgentName: name, Payload: "p", StartTime: now, Status: status, NextFire: fire,
		}))
	}
	mk("due", core.TriggerActive, &past)
	mk("future", core.TriggerActive, &future)
	mk("paused", core.TriggerPaused, &past)
	mk("done", core.TriggerCompleted, nil)

	due, err := s.DueTriggers(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "due", due[0].AgentName)
}

func TestAdvanceTriggerClaimsOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fire := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	next := fire.Add(24 * time.Hour)
	trig := &core.Trigger{
		AgentName: "email-manager", Payload: "p",
		StartTime: fire, Status: core.TriggerActive, NextFire: &fire,
	}
	require.NoError(t, s.CreateTrigger(ctx, trig))

	claimed, err := s.AdvanceTrigger(ctx, trig.ID, fire, &next, core.TriggerActive)
	require.NoError(t, err)
	assert.True(t, claimed)

	// Second claim against the stale fire time must lose.
	claimed, err = s.AdvanceTrigger(ctx, trig.ID, fire, &next, core.TriggerActive)
	require.NoError(t, err)
	assert.False(t, claimed)

	got, err := s.GetTrigger(ctx, trig.ID, "email-manager")
	require.NoError(t, err)
	require.NotNil(t, got.NextFire)
	assert.True(t, got.NextFire.Equal(next))
}

func TestAdvanceTriggerToCompleted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fire := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	trig := &core.Trigger{
		AgentName: "email-manager", Payload: "one shot",
		StartTime: fire, Status: core.TriggerActive, NextFire: &fire,
	}
	require.NoError(t, s.CreateTrigger(ctx, trig))

	claimed, err := s.AdvanceTrigger(ctx, trig.ID, fire, nil, core.TriggerCompleted)
	require.NoError(t, err)
	assert.True(t, claimed)

	got, err := s.GetTrigger(ctx, trig.ID, "email-manager")
	require.NoError(t, err)
	assert.Equal(t, core.TriggerCompleted, got.Status)
	assert.Nil(t, got.NextFire)

	due, err := s.DueTriggers(ctx, fire.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestSeenSetDedupAndPrune(t *testing.T) {
	s := newTestStore(t, func(o *Options) { o.SeenLimit = 5 })
	ctx := context.Background()

	has, err := s.HasEntries(ctx)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, s.MarkSeen(ctx, []string{"m1", "m2", "m1"}))

	seen, err := s.IsSeen(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, seen)
	seen, err = s.IsSeen(ctx, "m3")
	require.NoError(t, err)
	assert.False(t, seen)

	has, err = s.HasEntries(ctx)
	require.NoError(t, err)
	assert.True(t, has)

	var ids []string
	for i := 0; i < 10; i++ {
		ids = append(ids, fmt.Sprintf("bulk-%d", i))
	}
	require.NoError(t, s.MarkSeen(ctx, ids))

	// Oldest entries were pruned past the limit of 5.
	seen, err = s.IsSeen(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, seen)
	seen, err = s.IsSeen(ctx, "bulk-9")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestRosterAddOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	added, err := s.AddAgent(ctx, "email-manager")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.AddAgent(ctx, "email-manager")
	require.NoError(t, err)
	assert.False(t, added)

	added, err = s.AddAgent(ctx, "calendar")
	require.NoError(t, err)
	assert.True(t, added)

	names, err := s.Agents(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"email-manager", "calendar"}, names)
}
