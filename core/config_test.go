package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	config, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "skillwire", config.Name)
	assert.Equal(t, 20, config.Conversation.HistoryCapacity)
	assert.Equal(t, 3, config.Resilience.FailureThreshold)
	assert.Equal(t, 30*time.Second, config.Resilience.Cooldown)
	assert.Equal(t, 10*time.Second, config.Resilience.CallTimeout)
	assert.Equal(t, 2, config.Resilience.MaxRecoveryAttempts)
	assert.Equal(t, 1000, config.Resilience.StatisticsCapacity)
	assert.Equal(t, "memory", config.Memory.Provider)
	assert.Equal(t, "gpt-4o-mini", config.AI.Model)
	assert.False(t, config.Telemetry.Enabled)
}

func TestNewConfigOptions(t *testing.T) {
	config, err := NewConfig(
		WithName("assistant"),
		WithHistoryCapacity(5),
		WithFailureThreshold(7),
		WithCooldown(time.Minute),
		WithCallTimeout(2*time.Second),
		WithMaxRecoveryAttempts(4),
		WithRedisMemory("redis://localhost:6379"),
		WithAI("http://localhost:8080/v1", "test-key", "test-model"),
	)
	require.NoError(t, err)

	assert.Equal(t, "assistant", config.Name)
	assert.Equal(t, 5, config.Conversation.HistoryCapacity)
	assert.Equal(t, 7, config.Resilience.FailureThreshold)
	assert.Equal(t, time.Minute, config.Resilience.Cooldown)
	assert.Equal(t, 2*time.Second, config.Resilience.CallTimeout)
	assert.Equal(t, 4, config.Resilience.MaxRecoveryAttempts)
	assert.Equal(t, "redis", config.Memory.Provider)
	assert.Equal(t, "redis://localhost:6379", config.Memory.RedisURL)
	assert.Equal(t, "test-model", config.AI.Model)
	assert.Equal(t, "test-key", config.AI.APIKey)
}

func TestNewConfigEnvironment(t *testing.T) {
	t.Setenv("SKILLWIRE_NAME", "env-name")
	t.Setenv("SKILLWIRE_FAILURE_THRESHOLD", "9")
	t.Setenv("SKILLWIRE_COOLDOWN", "45s")
	t.Setenv("SKILLWIRE_HISTORY_CAPACITY", "11")
	t.Setenv("SKILLWIRE_LOG_LEVEL", "debug")

	config, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "env-name", config.Name)
	assert.Equal(t, 9, config.Resilience.FailureThreshold)
	assert.Equal(t, 45*time.Second, config.Resilience.Cooldown)
	assert.Equal(t, 11, config.Conversation.HistoryCapacity)
	assert.Equal(t, "debug", config.Logging.Level)
}

func TestNewConfigOptionsOverrideEnvironment(t *testing.T) {
	t.Setenv("SKILLWIRE_FAILURE_THRESHOLD", "9")

	config, err := NewConfig(WithFailureThreshold(2))
	require.NoError(t, err)
	assert.Equal(t, 2, config.Resilience.FailureThreshold)
}

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		opts []Option
	}{
		{"empty name", []Option{WithName("")}},
		{"zero history capacity", []Option{WithHistoryCapacity(0)}},
		{"zero failure threshold", []Option{WithFailureThreshold(0)}},
		{"negative cooldown", []Option{WithCooldown(-time.Second)}},
		{"negative recovery attempts", []Option{WithMaxRecoveryAttempts(-1)}},
		{"redis without url", []Option{WithRedisMemory("")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewConfig(tc.opts...)
			require.Error(t, err)
			assert.True(t, IsConfigurationError(err), "expected configuration error, got %v", err)
		})
	}
}
