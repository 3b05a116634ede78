// Package steward provides a high-level façade over the two-tier agent
// pipeline: a user-facing interaction runtime delegating to named,
// persistent execution agents, plus two autonomous background loops (the
// trigger scheduler and the mailbox importance watcher). Most applications
// interact with this package by:
//  1. Creating an App via New() with a model, a store and a notifier
//  2. Calling Start() to launch the background loops
//  3. Feeding user input through HandleUserMessage()
//
// Completed delegations and watcher notifications re-enter the pipeline on
// their own; the notifier receives everything user-visible. All defaults
// are safe for local development; production deployments supply a file-
// backed store, a real mailbox and a structured logger.
package steward

import (
	"context"

	"github.com/stewardhq/steward/conversation"
	"github.com/stewardhq/steward/core"
	"github.com/stewardhq/steward/dispatch"
	"github.com/stewardhq/steward/execution"
	"github.com/stewardhq/steward/interaction"
	"github.com/stewardhq/steward/logging"
	"github.com/stewardhq/steward/mailbox"
	"github.com/stewardhq/steward/model"
	"github.com/stewardhq/steward/store"
	"github.com/stewardhq/steward/trigger"
	"github.com/stewardhq/steward/watcher"
)

// Options configures the App.
type Options struct {
	// Store persists everything. Defaults to an in-memory database.
	Store *store.Store
	// Mailbox is the agents' mail capability. Defaults to in-memory.
	Mailbox mailbox.Mailbox
	// Notifier receives user-visible output. Required.
	Notifier core.Notifier
	// Logger defaults to a no-op logger.
	Logger logging.Logger

	// SummaryThreshold / SummaryTail bound working memory (0 = defaults).
	SummaryThreshold int
	SummaryTail      int
	// Dispatch limits.
	DispatchOptions dispatch.Options
	// SchedulerOptions tune the trigger poll loop.
	SchedulerOptions trigger.SchedulerOptions
	// WatcherOptions tune the mailbox poll loop.
	WatcherOptions watcher.Options
	// WatcherEnabled turns the mailbox watcher loop on.
	WatcherEnabled bool
}

// App wires the full pipeline together.
type App struct {
	opts       Options
	store      *store.Store
	log        *conversation.Log
	summarizer *conversation.Summarizer
	dispatcher *dispatch.Manager
	interact   *interaction.Runtime
	triggerSvc *trigger.Service
	scheduler  *trigger.Scheduler
	watch      *watcher.Watcher
	logger     logging.Logger
}

// New assembles an App around the given model. Any unset service is
// initialized with an in-memory implementation.
func New(m model.Model, optFns ...func(o *Options)) (*App, error) {
	opts := Options{Logger: logging.NewNop()}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Store == nil {
		s, err := store.OpenMemory()
		if err != nil {
			return nil, err
		}
		opts.Store = s
	}
	if opts.Mailbox == nil {
		opts.Mailbox = mailbox.NewInMemory()
	}

	s := opts.Store
	log := conversation.NewLog(s)
	summarizer := conversation.NewSummarizer(s, m, func(o *conversation.SummarizerOptions) {
		o.Threshold = opts.SummaryThreshold
		o.Tail = opts.SummaryTail
		o.Logger = opts.Logger
	})

	triggerSvc := trigger.NewService(s, func(o *trigger.ServiceOptions) {
		o.Logger = opts.Logger
	})
	registry := execution.NewRegistry(opts.Mailbox, triggerSvc)
	runtime := execution.NewRuntime(model.WithRetry(m, model.DefaultRetryOptions()), s, registry, func(o *execution.RuntimeOptions) {
		o.Logger = opts.Logger
	})

	dispatcher := dispatch.NewManager(runtime, func(o *dispatch.Options) {
		*o = opts.DispatchOptions
		if o.Logger == nil {
			o.Logger = opts.Logger
		}
	})

	interact := interaction.NewRuntime(m, log, summarizer, s, opts.Notifier, dispatcher, func(o *interaction.RuntimeOptions) {
		o.Logger = opts.Logger
	})

	// Every finished delegation and injected notification re-enters the
	// interaction pipeline as an independent agent message.
	dispatcher.SetResultHandler(func(ctx context.Context, agentName, message string) {
		if _, err := interact.HandleAgentMessage(ctx, agentName, message); err != nil {
			opts.Logger.Error("agent result handling failed", "agent", agentName, "error", err)
		}
		if _, err := summarizer.Run(ctx); err != nil {
			opts.Logger.Warn("summarization failed", "error", err)
		}
	})

	scheduler := trigger.NewScheduler(triggerSvc, dispatcher, func(o *trigger.SchedulerOptions) {
		*o = opts.SchedulerOptions
		if o.Logger == nil {
			o.Logger = opts.Logger
		}
	})

	app := &App{
		opts:       opts,
		store:      s,
		log:        log,
		summarizer: summarizer,
		dispatcher: dispatcher,
		interact:   interact,
		triggerSvc: triggerSvc,
		scheduler:  scheduler,
		logger:     opts.Logger,
	}

	if opts.WatcherEnabled {
		classifier := watcher.NewClassifier(model.WithRetry(m, model.DefaultRetryOptions()), opts.Logger)
		app.watch = watcher.New(opts.Mailbox, s, classifier, dispatcher, func(o *watcher.Options) {
			*o = opts.WatcherOptions
			if o.Logger == nil {
				o.Logger = opts.Logger
			}
		})
	}

	return app, nil
}

// Start launches the background loops.
func (a *App) Start(ctx context.Context) {
	a.scheduler.Start(ctx)
	if a.watch != nil {
		a.watch.Start(ctx)
	}
	a.logger.Info("steward started")
}

// Stop shuts down the loops and waits for in-flight work.
func (a *App) Stop() {
	a.scheduler.Stop()
	if a.watch != nil {
		a.watch.Stop()
	}
	a.dispatcher.Wait()
	a.logger.Info("steward stopped")
}

// HandleUserMessage feeds one user message through the interaction agent and
// returns its immediate outcome. Delegated work completes asynchronously.
func (a *App) HandleUserMessage(ctx context.Context, text string) (interaction.Result, error) {
	res, err := a.interact.HandleUserMessage(ctx, text)
	if err != nil {
		return res, err
	}
	if _, err := a.summarizer.Run(ctx); err != nil {
		a.logger.Warn("summarization failed", "error", err)
	}
	return res, nil
}

// Triggers exposes the trigger service for administrative use.
func (a *App) Triggers() *trigger.Service { return a.triggerSvc }

// Store exposes the underlying durable store.
func (a *App) Store() *store.Store { return a.store }
