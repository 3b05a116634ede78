package watcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stewardhq/steward/core"
	"github.com/stewardhq/steward/logging"
	"github.com/stewardhq/steward/mailbox"
)

// Source is the agent name watcher notifications are attributed to in the
// conversation log.
const Source = "mailbox-watcher"

// Options configure the watcher loop.
type Options struct {
	// PollInterval between mailbox list calls. Zero means 60 seconds.
	PollInterval time.Duration
	// Lookback is how far back each poll lists messages. Zero means 10
	// minutes.
	Lookback time.Duration
	// MaxResults caps messages fetched per poll. Zero means 50.
	MaxResults int
	// MaxAge suppresses classification of unseen messages older than this
	// (they are marked seen silently). Zero means 30 minutes.
	MaxAge time.Duration
	Logger logging.Logger
	// Now overrides the clock, used by tests.
	Now func() time.Time
}

// Notifier receives importance notifications; dispatch.Manager's Inject
// satisfies it.
type Notifier interface {
	Inject(ctx context.Context, source, message string)
}

// Watcher is the mailbox importance polling loop. Every cycle is fault
// isolated: mailbox failures skip the cycle, classification failures mark
// the message seen and move on.
type Watcher struct {
	mbox       mailbox.Mailbox
	seen       core.SeenStore
	classifier *Classifier
	notifier   Notifier
	logger     logging.Logger

	interval   time.Duration
	lookback   time.Duration
	maxResults int
	maxAge     time.Duration
	now        func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Watcher.
func New(mbox mailbox.Mailbox, seen core.SeenStore, classifier *Classifier, notifier Notifier, optFns ...func(o *Options)) *Watcher {
	opts := Options{
		PollInterval: 60 * time.Second,
		Lookback:     10 * time.Minute,
		MaxResults:   50,
		MaxAge:       30 * time.Minute,
		Logger:       logging.NewNop(),
		Now:          func() time.Time { return time.Now().UTC() },
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 60 * time.Second
	}
	if opts.Lookback <= 0 {
		opts.Lookback = 10 * time.Minute
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 50
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 30 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Watcher{
		mbox:       mbox,
		seen:       seen,
		classifier: classifier,
		notifier:   notifier,
		logger:     opts.Logger,
		interval:   opts.PollInterval,
		lookback:   opts.Lookback,
		maxResults: opts.MaxResults,
		maxAge:     opts.MaxAge,
		now:        opts.Now,
	}
}

// Start launches the polling loop; call Stop to shut down.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.Poll(ctx)
			}
		}
	}()
	w.logger.Info("mailbox watcher started", "interval", w.interval)
}

// Stop cancels the loop and waits for the current cycle.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

// Poll performs one watch cycle.
func (w *Watcher) Poll(ctx context.Context) {
	now := w.now()
	msgs, err := w.mbox.ListRecent(ctx, now.Add(-w.lookback), w.maxResults)
	if err != nil {
		w.logger.Warn("mailbox listing failed, skipping cycle", "error", err)
		return
	}
	if len(msgs) == 0 {
		return
	}

	hasEntries, err := w.seen.HasEntries(ctx)
	if err != nil {
		w.logger.Error("seen-set check failed, skipping cycle", "error", err)
		return
	}
	if !hasEntries {
		// First run: seed the seen set so the pre-existing backlog is never
		// classified or renotified.
		ids := make([]string, len(msgs))
		for i, msg := range msgs {
			ids[i] = msg.ID
		}
		if err := w.seen.MarkSeen(ctx, ids); err != nil {
			w.logger.Error("seen-set warmup failed", "error", err)
			return
		}
		w.logger.Info("seen set seeded on first poll", "count", len(ids))
		return
	}

	var processed []string
	for _, msg := range msgs {
		isSeen, err := w.seen.IsSeen(ctx, msg.ID)
		if err != nil {
			w.logger.Error("seen lookup failed", "message_id", msg.ID, "error", err)
			continue
		}
		if isSeen {
			continue
		}
		processed = append(processed, msg.ID)

		if now.Sub(msg.Timestamp) > w.maxAge {
			w.logger.Debug("stale message suppressed", "message_id", msg.ID)
			continue
		}

		cls, err := w.classifier.Classify(ctx, msg)
		if err != nil {
			// Fail-safe: the message still counts as processed and is never
			// retried.
			w.logger.Warn("classification failed, treating as not important",
				"message_id", msg.ID, "error", err)
			continue
		}
		if cls.Important {
			w.logger.Info("important message detected", "message_id", msg.ID, "from", msg.From)
			w.notifier.Inject(ctx, Source, notification(msg, cls.Reason))
		}
	}

	if len(processed) > 0 {
		if err := w.seen.MarkSeen(ctx, processed); err != nil {
			w.logger.Error("seen-set update failed", "error", err)
		}
	}
}

func notification(msg mailbox.Message, reason string) string {
	text := fmt.Sprintf(
		"Mailbox importance watcher notification:\nFrom: %s\nSubject: %s\nReceived: %s",
		msg.From, msg.Subject, msg.Timestamp.Format("2006-01-02 15:04:05"))
	if reason != "" {
		text += "\nWhy: " + reason
	}
	return text
}
