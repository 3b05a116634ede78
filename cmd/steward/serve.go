package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/cobra"

	"github.com/stewardhq/steward"
	"github.com/stewardhq/steward/config"
	"github.com/stewardhq/steward/dispatch"
	"github.com/stewardhq/steward/logging"
	"github.com/stewardhq/steward/model"
	anthropicmodel "github.com/stewardhq/steward/model/anthropic"
	openaimodel "github.com/stewardhq/steward/model/openai"
	"github.com/stewardhq/steward/store"
	"github.com/stewardhq/steward/trigger"
	"github.com/stewardhq/steward/watcher"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the assistant with a terminal chat loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (defaults applied when omitted)")
	return cmd
}

func serve(configPath string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	logger := logging.New(&logging.Config{
		Level:  logLevel(cfg.Logging.Level),
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})

	if cfg.Model.APIKey() == "" {
		logger.Warn("model api key not set", "env", cfg.Model.APIKeyEnv)
	}

	s, err := store.Open(cfg.Store.Path, func(o *store.Options) {
		o.SeenLimit = cfg.Store.SeenLimit
	})
	if err != nil {
		return err
	}
	defer s.Close()

	app, err := steward.New(buildModel(cfg), func(o *steward.Options) {
		o.Store = s
		o.Notifier = &consoleNotifier{}
		o.Logger = logger
		o.SummaryThreshold = cfg.Conversation.SummaryThreshold
		o.SummaryTail = cfg.Conversation.SummaryTail
		o.DispatchOptions = dispatch.Options{
			MaxConcurrent: int64(cfg.Dispatch.MaxConcurrent),
			RunTimeout:    cfg.Dispatch.RunTimeout(),
		}
		o.SchedulerOptions = trigger.SchedulerOptions{
			PollInterval: cfg.Scheduler.PollInterval(),
		}
		o.WatcherEnabled = cfg.Watcher.Enabled
		o.WatcherOptions = watcher.Options{
			PollInterval: cfg.Watcher.PollInterval(),
			Lookback:     cfg.Watcher.Lookback(),
			MaxResults:   cfg.Watcher.MaxResults,
			MaxAge:       cfg.Watcher.MaxAge(),
		}
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app.Start(ctx)
	defer app.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nshutting down...")
		cancel()
		os.Stdin.Close()
	}()

	fmt.Println("steward ready. Type a message, or /quit to exit.")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			break
		}
		if _, err := app.HandleUserMessage(ctx, line); err != nil {
			logger.Error("message handling failed", "error", err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil
}

func buildModel(cfg *config.Config) model.Model {
	switch cfg.Model.Provider {
	case "anthropic":
		return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			if cfg.Model.Name != "" {
				o.Model = anthropicsdk.Model(cfg.Model.Name)
			}
			o.APIKey = cfg.Model.APIKey()
		})
	default:
		return openaimodel.NewModel(func(o *openaimodel.Options) {
			if cfg.Model.Name != "" {
				o.Model = cfg.Model.Name
			}
		})
	}
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// consoleNotifier prints user-visible output to stdout.
type consoleNotifier struct{}

func (consoleNotifier) Deliver(ctx context.Context, message string) error {
	fmt.Printf("\nsteward> %s\n", message)
	return nil
}

func (consoleNotifier) React(ctx context.Context, emoji string) error {
	fmt.Printf("\nsteward reacted %s\n", emoji)
	return nil
}
