package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
model:
  provider: anthropic
  name: claude-3-5-sonnet-20241022
store:
  path: /tmp/steward-test.db
`))
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.Model.Provider)
	assert.Equal(t, "ANTHROPIC_API_KEY", cfg.Model.APIKeyEnv)
	assert.Equal(t, "/tmp/steward-test.db", cfg.Store.Path)
	assert.Equal(t, 300, cfg.Store.SeenLimit)
	assert.Equal(t, 10*time.Second, cfg.Scheduler.PollInterval())
	assert.Equal(t, 3, cfg.Scheduler.FailureBudget)
	assert.Equal(t, 60*time.Second, cfg.Watcher.PollInterval())
	assert.Equal(t, 10*time.Minute, cfg.Watcher.Lookback())
	assert.Equal(t, 30*time.Minute, cfg.Watcher.MaxAge())
	assert.Equal(t, 50, cfg.Watcher.MaxResults)
	assert.Equal(t, 100, cfg.Conversation.SummaryThreshold)
	assert.Equal(t, 10, cfg.Conversation.SummaryTail)
	assert.Equal(t, 4, cfg.Dispatch.MaxConcurrent)
	assert.Equal(t, 90*time.Second, cfg.Dispatch.RunTimeout())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestParseOverrides(t *testing.T) {
	cfg, err := Parse([]byte(`
scheduler:
  poll_interval_seconds: 5
watcher:
  enabled: true
  poll_interval_seconds: 120
  lookback_minutes: 30
conversation:
  summary_threshold: 50
  summary_tail: 5
logging:
  level: debug
  format: text
`))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.PollInterval())
	assert.True(t, cfg.Watcher.Enabled)
	assert.Equal(t, 2*time.Minute, cfg.Watcher.PollInterval())
	assert.Equal(t, 30*time.Minute, cfg.Watcher.Lookback())
	assert.Equal(t, 50, cfg.Conversation.SummaryThreshold)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestParseRejectsInvalidValues(t *testing.T) {
	_, err := Parse([]byte("model:\n  provider: cohere\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model.provider")

	_, err = Parse([]byte("logging:\n  level: verbose\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")

	_, err = Parse([]byte("conversation:\n  summary_threshold: 10\n  summary_tail: 10\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "summary_tail")

	_, err = Parse([]byte("model: [broken"))
	require.Error(t, err)
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.validate())
	assert.Equal(t, "openai", cfg.Model.Provider)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Model.APIKeyEnv)
}
