// Package trigger implements durable scheduled instructions for execution
// agents: a service layer for trigger CRUD and recurrence math, a polling
// scheduler that claims and dispatches due triggers, and the trigger tools
// exposed to execution agents.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/stewardhq/steward/core"
	"github.com/stewardhq/steward/logging"
)

// cronParser accepts standard five-field expressions plus descriptors like
// @daily.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

const (
	// DefaultFailureBudget is how many consecutive dispatch failures move a
	// trigger to failed.
	DefaultFailureBudget = 3
	// DefaultResumeGrace is how far in the past a missed fire may lie and
	// still fire immediately on resume.
	DefaultResumeGrace = 5 * time.Minute
)

// ServiceOptions configure the trigger service.
type ServiceOptions struct {
	FailureBudget int
	ResumeGrace   time.Duration
	Logger        logging.Logger
	// Now overrides the clock, used by tests.
	Now func() time.Time
}

// Service owns trigger lifecycle and recurrence computation. All times are
// computed from the trigger's stored schedule, never from observed poll
// times.
type Service struct {
	store         core.TriggerStore
	logger        logging.Logger
	failureBudget int
	resumeGrace   time.Duration
	now           func() time.Time
}

// NewService constructs a Service over the given store.
func NewService(store core.TriggerStore, optFns ...func(o *ServiceOptions)) *Service {
	opts := ServiceOptions{
		FailureBudget: DefaultFailureBudget,
		ResumeGrace:   DefaultResumeGrace,
		Logger:        logging.NewNop(),
		Now:           func() time.Time { return time.Now().UTC() },
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.FailureBudget <= 0 {
		opts.FailureBudget = DefaultFailureBudget
	}
	if opts.ResumeGrace <= 0 {
		opts.ResumeGrace = DefaultResumeGrace
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		store:         store,
		logger:        opts.Logger,
		failureBudget: opts.FailureBudget,
		resumeGrace:   opts.ResumeGrace,
		now:           opts.Now,
	}
}

// CreateParams are the caller-supplied fields of a new trigger.
type CreateParams struct {
	AgentName      string
	Payload        string
	StartTime      time.Time
	RecurrenceRule string // cron expression; empty means one-time
	Timezone       string // IANA name; empty means UTC
}

// Create validates params, computes the initial fire time and persists the
// trigger as active.
func (s *Service) Create(ctx context.Context, params CreateParams) (*core.Trigger, error) {
	if params.AgentName == "" {
		return nil, errors.New("agent name is required")
	}
	if params.Payload == "" {
		return nil, errors.New("payload is required")
	}
	if params.StartTime.IsZero() {
		return nil, errors.New("start time is required")
	}
	loc, err := s.location(params.Timezone)
	if err != nil {
		return nil, err
	}

	trig := &core.Trigger{
		AgentName:      params.AgentName,
		Payload:        params.Payload,
		StartTime:      params.StartTime,
		RecurrenceRule: params.RecurrenceRule,
		Timezone:       params.Timezone,
		Status:         core.TriggerActive,
	}

	if params.RecurrenceRule == "" {
		fire := params.StartTime.UTC()
		trig.NextFire = &fire
	} else {
		sched, err := cronParser.Parse(params.RecurrenceRule)
		if err != nil {
			return nil, fmt.Errorf("invalid recurrence rule %q: %w", params.RecurrenceRule, err)
		}
		// First occurrence at or after the start time, but never in the past.
		base := params.StartTime.In(loc).Add(-time.Second)
		if now := s.now().In(loc); base.Before(now) {
			base = now
		}
		fire := sched.Next(base).UTC()
		trig.NextFire = &fire
	}

	if err := s.store.CreateTrigger(ctx, trig); err != nil {
		return nil, err
	}
	s.logger.Info("trigger created",
		"id", trig.ID, "agent", trig.AgentName, "next_fire", trig.NextFire)
	return trig, nil
}

// UpdateParams hold optional replacement fields; nil means keep current.
type UpdateParams struct {
	Payload        *string
	StartTime      *time.Time
	RecurrenceRule *string
	Timezone       *string
}

// Update applies params to an existing trigger and recomputes the fire time
// when any schedule-affecting field changed.
func (s *Service) Update(ctx context.Context, id uint, agentName string, params UpdateParams) (*core.Trigger, error) {
	trig, err := s.store.GetTrigger(ctx, id, agentName)
	if err != nil {
		return nil, err
	}

	reschedule := false
	if params.Payload != nil {
		trig.Payload = *params.Payload
	}
	if params.StartTime != nil {
		trig.StartTime = *params.StartTime
		reschedule = true
	}
	if params.RecurrenceRule != nil {
		trig.RecurrenceRule = *params.RecurrenceRule
		reschedule = true
	}
	if params.Timezone != nil {
		trig.Timezone = *params.Timezone
		reschedule = true
	}

	if reschedule {
		fire, err := s.computeNextFire(trig, s.now())
		if err != nil {
			return nil, err
		}
		trig.NextFire = fire
		if trig.Status == core.TriggerCompleted || trig.Status == core.TriggerFailed {
			trig.Status = core.TriggerActive
			trig.FailureCount = 0
			trig.LastError = ""
		}
	}

	if err := s.store.UpdateTrigger(ctx, trig); err != nil {
		return nil, err
	}
	return trig, nil
}

// Pause moves an active trigger to paused. The stored fire time is kept so
// Resume can decide whether the missed occurrence is still worth firing.
func (s *Service) Pause(ctx context.Context, id uint, agentName string) (*core.Trigger, error) {
	trig, err := s.store.GetTrigger(ctx, id, agentName)
	if err != nil {
		return nil, err
	}
	if trig.Status != core.TriggerActive {
		return nil, fmt.Errorf("trigger %d is %s, only active triggers can be paused", id, trig.Status)
	}
	trig.Status = core.TriggerPaused
	if err := s.store.UpdateTrigger(ctx, trig); err != nil {
		return nil, err
	}
	return trig, nil
}

// Resume reactivates a paused trigger. A fire time missed within the grace
// window fires immediately; older misses skip to the next future occurrence,
// or complete a one-time trigger.
func (s *Service) Resume(ctx context.Context, id uint, agentName string) (*core.Trigger, error) {
	trig, err := s.store.GetTrigger(ctx, id, agentName)
	if err != nil {
		return nil, err
	}
	if trig.Status != core.TriggerPaused {
		return nil, fmt.Errorf("trigger %d is %s, only paused triggers can be resumed", id, trig.Status)
	}

	now := s.now()
	trig.Status = core.TriggerActive
	if trig.NextFire != nil && trig.NextFire.Before(now.Add(-s.resumeGrace)) {
		if trig.RecurrenceRule == "" {
			trig.Status = core.TriggerCompleted
			trig.NextFire = nil
			s.logger.Info("one-time trigger missed beyond grace, completing", "id", trig.ID)
		} else {
			fire, err := s.computeNextFire(trig, now)
			if err != nil {
				return nil, err
			}
			trig.NextFire = fire
		}
	}

	if err := s.store.UpdateTrigger(ctx, trig); err != nil {
		return nil, err
	}
	return trig, nil
}

// Delete removes a trigger.
func (s *Service) Delete(ctx context.Context, id uint, agentName string) error {
	return s.store.DeleteTrigger(ctx, id, agentName)
}

// List returns one agent's triggers.
func (s *Service) List(ctx context.Context, agentName string) ([]core.Trigger, error) {
	return s.store.ListTriggers(ctx, agentName)
}

// Due returns active triggers whose fire time has arrived.
func (s *Service) Due(ctx context.Context) ([]core.Trigger, error) {
	return s.store.DueTriggers(ctx, s.now())
}

// Claim advances the trigger past the given occurrence before it is
// dispatched: recurring triggers get the next occurrence strictly after the
// fired one, one-time triggers complete. The compare-and-set in the store
// makes the claim succeed at most once per occurrence.
func (s *Service) Claim(ctx context.Context, trig *core.Trigger, firedAt time.Time) (bool, error) {
	if trig.RecurrenceRule == "" {
		return s.store.AdvanceTrigger(ctx, trig.ID, firedAt, nil, core.TriggerCompleted)
	}
	next, err := s.nextOccurrenceAfter(trig, firedAt)
	if err != nil {
		return false, err
	}
	return s.store.AdvanceTrigger(ctx, trig.ID, firedAt, next, core.TriggerActive)
}

// RecordFailure notes a failed dispatch. Once the failure budget is
// exhausted the trigger moves to failed and leaves the polling set.
func (s *Service) RecordFailure(ctx context.Context, trig *core.Trigger, dispatchErr error) error {
	trig.FailureCount++
	trig.LastError = dispatchErr.Error()
	if trig.FailureCount >= s.failureBudget {
		trig.Status = core.TriggerFailed
		trig.NextFire = nil
		s.logger.Warn("trigger failure budget exhausted",
			"id", trig.ID, "agent", trig.AgentName, "failures", trig.FailureCount)
	}
	return s.store.UpdateTrigger(ctx, trig)
}

// RecordSuccess clears any accumulated failure state after a good dispatch.
func (s *Service) RecordSuccess(ctx context.Context, trig *core.Trigger) error {
	if trig.FailureCount == 0 && trig.LastError == "" {
		return nil
	}
	trig.FailureCount = 0
	trig.LastError = ""
	return s.store.UpdateTrigger(ctx, trig)
}

// computeNextFire recomputes the fire time from the stored schedule as of
// now: one-time triggers fire at StartTime (nil once it has passed beyond
// recovery), recurring triggers at the next future occurrence.
func (s *Service) computeNextFire(trig *core.Trigger, now time.Time) (*time.Time, error) {
	if trig.RecurrenceRule == "" {
		fire := trig.StartTime.UTC()
		return &fire, nil
	}
	base := trig.StartTime
	if base.Before(now) {
		base = now
	}
	return s.nextOccurrenceAfter(trig, base.Add(-time.Second))
}

// nextOccurrenceAfter returns the first schedule occurrence strictly after
// the given instant that is not already in the past (missed occurrences are
// skipped, never replayed).
func (s *Service) nextOccurrenceAfter(trig *core.Trigger, after time.Time) (*time.Time, error) {
	sched, err := cronParser.Parse(trig.RecurrenceRule)
	if err != nil {
		return nil, fmt.Errorf("invalid recurrence rule %q: %w", trig.RecurrenceRule, err)
	}
	loc, err := s.location(trig.Timezone)
	if err != nil {
		return nil, err
	}

	now := s.now()
	next := sched.Next(after.In(loc))
	for i := 0; !next.IsZero() && next.Before(now) && i < 10000; i++ {
		next = sched.Next(next)
	}
	if next.IsZero() {
		return nil, nil
	}
	fire := next.UTC()
	return &fire, nil
}

// location resolves an IANA timezone name, defaulting to UTC.
func (s *Service) location(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}
