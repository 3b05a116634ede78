// Package config provides YAML-based configuration loading for steward.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level steward configuration, loaded from config.yaml.
type Config struct {
	Model        ModelConfig        `yaml:"model"`
	Store        StoreConfig        `yaml:"store"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
	Watcher      WatcherConfig      `yaml:"watcher"`
	Conversation ConversationConfig `yaml:"conversation"`
	Dispatch     DispatchConfig     `yaml:"dispatch"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// ModelConfig selects the language-model provider.
type ModelConfig struct {
	Provider  string `yaml:"provider"` // "openai" or "anthropic"
	Name      string `yaml:"name"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// APIKey resolves the key from the configured environment variable.
func (m ModelConfig) APIKey() string {
	if m.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(m.APIKeyEnv)
}

// StoreConfig holds durable-store settings.
type StoreConfig struct {
	Path      string `yaml:"path"`
	SeenLimit int    `yaml:"seen_limit"`
}

// SchedulerConfig holds trigger-scheduler settings.
type SchedulerConfig struct {
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
	FailureBudget       int `yaml:"failure_budget"`
}

// PollInterval returns the poll interval as a duration.
func (s SchedulerConfig) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalSeconds) * time.Second
}

// WatcherConfig holds mailbox-watcher settings.
type WatcherConfig struct {
	Enabled             bool `yaml:"enabled"`
	PollIntervalSeconds int  `yaml:"poll_interval_seconds"`
	LookbackMinutes     int  `yaml:"lookback_minutes"`
	MaxResults          int  `yaml:"max_results"`
	MaxAgeMinutes       int  `yaml:"max_age_minutes"`
}

// PollInterval returns the poll interval as a duration.
func (w WatcherConfig) PollInterval() time.Duration {
	return time.Duration(w.PollIntervalSeconds) * time.Second
}

// Lookback returns the listing window as a duration.
func (w WatcherConfig) Lookback() time.Duration {
	return time.Duration(w.LookbackMinutes) * time.Minute
}

// MaxAge returns the stale-message cutoff as a duration.
func (w WatcherConfig) MaxAge() time.Duration {
	return time.Duration(w.MaxAgeMinutes) * time.Minute
}

// ConversationConfig holds working-memory settings.
type ConversationConfig struct {
	SummaryThreshold int `yaml:"summary_threshold"`
	SummaryTail      int `yaml:"summary_tail"`
}

// DispatchConfig holds execution fan-out settings.
type DispatchConfig struct {
	MaxConcurrent     int `yaml:"max_concurrent"`
	RunTimeoutSeconds int `yaml:"run_timeout_seconds"`
}

// RunTimeout returns the per-run timeout as a duration.
func (d DispatchConfig) RunTimeout() time.Duration {
	return time.Duration(d.RunTimeoutSeconds) * time.Second
}

// LoggingConfig holds log handler settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config with every default applied, suitable for local
// development without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in default values.
func (c *Config) applyDefaults() {
	if c.Model.Provider == "" {
		c.Model.Provider = "openai"
	}
	if c.Model.APIKeyEnv == "" {
		switch c.Model.Provider {
		case "anthropic":
			c.Model.APIKeyEnv = "ANTHROPIC_API_KEY"
		default:
			c.Model.APIKeyEnv = "OPENAI_API_KEY"
		}
	}
	if c.Store.Path == "" {
		c.Store.Path = "steward.db"
	}
	if c.Store.SeenLimit == 0 {
		c.Store.SeenLimit = 300
	}
	if c.Scheduler.PollIntervalSeconds == 0 {
		c.Scheduler.PollIntervalSeconds = 10
	}
	if c.Scheduler.FailureBudget == 0 {
		c.Scheduler.FailureBudget = 3
	}
	if c.Watcher.PollIntervalSeconds == 0 {
		c.Watcher.PollIntervalSeconds = 60
	}
	if c.Watcher.LookbackMinutes == 0 {
		c.Watcher.LookbackMinutes = 10
	}
	if c.Watcher.MaxResults == 0 {
		c.Watcher.MaxResults = 50
	}
	if c.Watcher.MaxAgeMinutes == 0 {
		c.Watcher.MaxAgeMinutes = 30
	}
	if c.Conversation.SummaryThreshold == 0 {
		c.Conversation.SummaryThreshold = 100
	}
	if c.Conversation.SummaryTail == 0 {
		c.Conversation.SummaryTail = 10
	}
	if c.Dispatch.MaxConcurrent == 0 {
		c.Dispatch.MaxConcurrent = 4
	}
	if c.Dispatch.RunTimeoutSeconds == 0 {
		c.Dispatch.RunTimeoutSeconds = 90
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// validate checks that all fields are consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Model.Provider {
	case "openai", "anthropic":
	default:
		errs = append(errs, fmt.Sprintf("model.provider %q is not supported (openai, anthropic)", c.Model.Provider))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("logging.level %q is not valid (debug, info, warn, error)", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("logging.format %q is not valid (json, text)", c.Logging.Format))
	}
	if c.Conversation.SummaryTail >= c.Conversation.SummaryThreshold {
		errs = append(errs, "conversation.summary_tail must be smaller than summary_threshold")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
