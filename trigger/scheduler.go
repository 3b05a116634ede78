package trigger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stewardhq/steward/core"
	"github.com/stewardhq/steward/dispatch"
	"github.com/stewardhq/steward/logging"
)

// Dispatcher is the slice of dispatch.Manager the scheduler needs: a
// synchronous run plus direct injection of the outcome line.
type Dispatcher interface {
	Execute(ctx context.Context, agentName, instructions string) (dispatch.Result, error)
	Inject(ctx context.Context, source, message string)
}

// SchedulerOptions configure the polling loop.
type SchedulerOptions struct {
	// PollInterval between due-trigger queries. Zero means 10 seconds.
	PollInterval time.Duration
	Logger       logging.Logger
}

// Scheduler polls for due triggers and dispatches them. Each occurrence is
// claimed (fire time advanced transactionally) before dispatch, so a crash
// mid-run drops at most the in-flight occurrence and never replays it.
type Scheduler struct {
	svc        *Service
	dispatcher Dispatcher
	interval   time.Duration
	logger     logging.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler constructs a Scheduler.
func NewScheduler(svc *Service, dispatcher Dispatcher, optFns ...func(o *SchedulerOptions)) *Scheduler {
	opts := SchedulerOptions{PollInterval: 10 * time.Second, Logger: logging.NewNop()}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Scheduler{
		svc:        svc,
		dispatcher: dispatcher,
		interval:   opts.PollInterval,
		logger:     opts.Logger,
	}
}

// Start launches the polling loop. It returns immediately; call Stop to
// shut down.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Poll(ctx)
			}
		}
	}()
	s.logger.Info("trigger scheduler started", "interval", s.interval)
}

// Stop cancels the loop and waits for in-flight dispatches.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Poll performs one due-trigger pass. Failures are confined to the current
// cycle; the loop itself never stops on error.
func (s *Scheduler) Poll(ctx context.Context) {
	due, err := s.svc.Due(ctx)
	if err != nil {
		s.logger.Error("due-trigger query failed", "error", err)
		return
	}
	for _, trig := range due {
		if trig.NextFire == nil {
			continue
		}
		firedAt := *trig.NextFire
		claimed, err := s.svc.Claim(ctx, &trig, firedAt)
		if err != nil {
			s.logger.Error("trigger claim failed", "id", trig.ID, "error", err)
			continue
		}
		if !claimed {
			continue // another poller took this occurrence
		}
		s.wg.Add(1)
		go func(trig core.Trigger, firedAt time.Time) {
			defer s.wg.Done()
			s.fire(ctx, trig, firedAt)
		}(trig, firedAt)
	}
}

// fire runs one claimed occurrence and feeds the outcome back into the
// interaction pipeline.
func (s *Scheduler) fire(ctx context.Context, trig core.Trigger, firedAt time.Time) {
	s.logger.Info("trigger firing", "id", trig.ID, "agent", trig.AgentName, "scheduled_for", firedAt)

	res, err := s.dispatcher.Execute(ctx, trig.AgentName, formatInstructions(trig, firedAt, s.svc.now()))

	// Re-read before touching failure state so the advanced fire time is
	// not clobbered with the pre-claim copy.
	fresh, getErr := s.svc.store.GetTrigger(ctx, trig.ID, trig.AgentName)
	if getErr != nil {
		s.logger.Error("trigger reload failed", "id", trig.ID, "error", getErr)
		return
	}

	if err != nil {
		if recErr := s.svc.RecordFailure(ctx, fresh, err); recErr != nil {
			s.logger.Error("trigger failure bookkeeping failed", "id", trig.ID, "error", recErr)
		}
		s.dispatcher.Inject(ctx, trig.AgentName,
			dispatch.Result{AgentName: trig.AgentName, Success: false, Err: err}.Line())
		return
	}
	if recErr := s.svc.RecordSuccess(ctx, fresh); recErr != nil {
		s.logger.Error("trigger success bookkeeping failed", "id", trig.ID, "error", recErr)
	}
	res.AgentName = trig.AgentName
	s.dispatcher.Inject(ctx, trig.AgentName, res.Line())
}

// formatInstructions renders the instruction text delivered to the
// execution agent when a trigger fires.
func formatInstructions(trig core.Trigger, scheduledFor, firedAt time.Time) string {
	return fmt.Sprintf(
		"A scheduled trigger fired.\nTrigger ID: %d\nScheduled for: %s\nFired at: %s\n\nInstructions:\n%s",
		trig.ID,
		scheduledFor.Format(time.RFC3339),
		firedAt.Format(time.RFC3339),
		trig.Payload,
	)
}
