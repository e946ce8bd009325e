package core

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration options for the framework.
// It supports three-layer configuration priority:
//  1. Default values (lowest priority)
//  2. Environment variables (medium priority, SKILLWIRE_* prefix)
//  3. Functional options (highest priority)
//
// Example usage:
//
//	cfg, err := core.NewConfig(
//	    core.WithName("assistant"),
//	    core.WithFailureThreshold(5),
//	)
type Config struct {
	// Core configuration
	Name string `json:"name" env:"SKILLWIRE_NAME"`

	// Conversation configuration
	Conversation ConversationConfig `json:"conversation"`

	// Resilience configuration
	Resilience ResilienceConfig `json:"resilience"`

	// Routing configuration
	Routing RoutingConfig `json:"routing"`

	// Memory configuration
	Memory MemoryConfig `json:"memory"`

	// AI configuration (chat collaborator boundary)
	AI AIConfig `json:"ai"`

	// Telemetry configuration (optional module)
	Telemetry TelemetryConfig `json:"telemetry"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`
}

// ConversationConfig bounds the in-memory history buffer.
type ConversationConfig struct {
	HistoryCapacity int           `json:"history_capacity" env:"SKILLWIRE_HISTORY_CAPACITY" default:"20"`
	SessionTTL      time.Duration `json:"session_ttl" env:"SKILLWIRE_SESSION_TTL" default:"24h"`
}

// ResilienceConfig controls circuit breaking, recovery and statistics.
type ResilienceConfig struct {
	FailureThreshold    int           `json:"failure_threshold" env:"SKILLWIRE_FAILURE_THRESHOLD" default:"3"`
	Cooldown            time.Duration `json:"cooldown" env:"SKILLWIRE_COOLDOWN" default:"30s"`
	CallTimeout         time.Duration `json:"call_timeout" env:"SKILLWIRE_CALL_TIMEOUT" default:"10s"`
	MaxRecoveryAttempts int           `json:"max_recovery_attempts" env:"SKILLWIRE_MAX_RECOVERY_ATTEMPTS" default:"2"`
	RecoveryBaseDelay   time.Duration `json:"recovery_base_delay" env:"SKILLWIRE_RECOVERY_BASE_DELAY" default:"100ms"`
	StatisticsCapacity  int           `json:"statistics_capacity" env:"SKILLWIRE_STATISTICS_CAPACITY" default:"1000"`
}

// RoutingConfig locates declarative intent rules.
type RoutingConfig struct {
	RulesDir string `json:"rules_dir" env:"SKILLWIRE_RULES_DIR"`
}

// MemoryConfig selects the session persistence backend.
type MemoryConfig struct {
	Provider string `json:"provider" env:"SKILLWIRE_MEMORY_PROVIDER" default:"memory"`
	RedisURL string `json:"redis_url" env:"SKILLWIRE_REDIS_URL"`
}

// AIConfig configures the external chat collaborator client.
type AIConfig struct {
	BaseURL     string        `json:"base_url" env:"SKILLWIRE_AI_BASE_URL"`
	APIKey      string        `json:"-" env:"SKILLWIRE_AI_API_KEY"`
	Model       string        `json:"model" env:"SKILLWIRE_AI_MODEL" default:"gpt-4o-mini"`
	MaxTokens   int           `json:"max_tokens" env:"SKILLWIRE_AI_MAX_TOKENS" default:"1024"`
	Temperature float32       `json:"temperature" env:"SKILLWIRE_AI_TEMPERATURE" default:"0.7"`
	Timeout     time.Duration `json:"timeout" env:"SKILLWIRE_AI_TIMEOUT" default:"60s"`
}

// TelemetryConfig configures the optional OpenTelemetry integration.
type TelemetryConfig struct {
	Enabled      bool   `json:"enabled" env:"SKILLWIRE_TELEMETRY_ENABLED" default:"false"`
	OTLPEndpoint string `json:"otlp_endpoint" env:"SKILLWIRE_OTEL_ENDPOINT"`
	ServiceName  string `json:"service_name" env:"SKILLWIRE_SERVICE_NAME"`
}

// LoggingConfig controls the built-in structured logger.
type LoggingConfig struct {
	Level  string `json:"level" env:"SKILLWIRE_LOG_LEVEL" default:"info"`
	Format string `json:"format" env:"SKILLWIRE_LOG_FORMAT" default:"json"`
}

// Option is a functional option for configuring the framework
type Option func(*Config)

// DefaultConfig returns a config with sensible defaults applied.
func DefaultConfig() *Config {
	return &Config{
		Name: "skillwire",
		Conversation: ConversationConfig{
			HistoryCapacity: 20,
			SessionTTL:      24 * time.Hour,
		},
		Resilience: ResilienceConfig{
			FailureThreshold:    3,
			Cooldown:            30 * time.Second,
			CallTimeout:         10 * time.Second,
			MaxRecoveryAttempts: 2,
			RecoveryBaseDelay:   100 * time.Millisecond,
			StatisticsCapacity:  1000,
		},
		Memory: MemoryConfig{
			Provider: "memory",
		},
		AI: AIConfig{
			Model:       "gpt-4o-mini",
			MaxTokens:   1024,
			Temperature: 0.7,
			Timeout:     60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// NewConfig creates a configuration: defaults, then environment variables,
// then the supplied options, then validation.
func NewConfig(opts ...Option) (*Config, error) {
	config := DefaultConfig()
	config.applyEnvironment()

	for _, opt := range opts {
		opt(config)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnvironment overlays SKILLWIRE_* environment variables.
func (c *Config) applyEnvironment() {
	if v := os.Getenv("SKILLWIRE_NAME"); v != "" {
		c.Name = v
	}
	if v, ok := envInt("SKILLWIRE_HISTORY_CAPACITY"); ok {
		c.Conversation.HistoryCapacity = v
	}
	if v, ok := envDuration("SKILLWIRE_SESSION_TTL"); ok {
		c.Conversation.SessionTTL = v
	}
	if v, ok := envInt("SKILLWIRE_FAILURE_THRESHOLD"); ok {
		c.Resilience.FailureThreshold = v
	}
	if v, ok := envDuration("SKILLWIRE_COOLDOWN"); ok {
		c.Resilience.Cooldown = v
	}
	if v, ok := envDuration("SKILLWIRE_CALL_TIMEOUT"); ok {
		c.Resilience.CallTimeout = v
	}
	if v, ok := envInt("SKILLWIRE_MAX_RECOVERY_ATTEMPTS"); ok {
		c.Resilience.MaxRecoveryAttempts = v
	}
	if v, ok := envDuration("SKILLWIRE_RECOVERY_BASE_DELAY"); ok {
		c.Resilience.RecoveryBaseDelay = v
	}
	if v, ok := envInt("SKILLWIRE_STATISTICS_CAPACITY"); ok {
		c.Resilience.StatisticsCapacity = v
	}
	if v := os.Getenv("SKILLWIRE_RULES_DIR"); v != "" {
		c.Routing.RulesDir = v
	}
	if v := os.Getenv("SKILLWIRE_MEMORY_PROVIDER"); v != "" {
		c.Memory.Provider = v
	}
	if v := os.Getenv("SKILLWIRE_REDIS_URL"); v != "" {
		c.Memory.RedisURL = v
	}
	if v := os.Getenv("SKILLWIRE_AI_BASE_URL"); v != "" {
		c.AI.BaseURL = v
	}
	if v := os.Getenv("SKILLWIRE_AI_API_KEY"); v != "" {
		c.AI.APIKey = v
	}
	if v := os.Getenv("SKILLWIRE_AI_MODEL"); v != "" {
		c.AI.Model = v
	}
	if v, ok := envInt("SKILLWIRE_AI_MAX_TOKENS"); ok {
		c.AI.MaxTokens = v
	}
	if v, ok := envDuration("SKILLWIRE_AI_TIMEOUT"); ok {
		c.AI.Timeout = v
	}
	if v := os.Getenv("SKILLWIRE_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("SKILLWIRE_OTEL_ENDPOINT"); v != "" {
		c.Telemetry.OTLPEndpoint = v
	}
	if v := os.Getenv("SKILLWIRE_SERVICE_NAME"); v != "" {
		c.Telemetry.ServiceName = v
	}
	if v := os.Getenv("SKILLWIRE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SKILLWIRE_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required: %w", ErrMissingConfiguration)
	}
	if c.Conversation.HistoryCapacity < 1 {
		return fmt.Errorf("history capacity must be at least 1, got %d: %w",
			c.Conversation.HistoryCapacity, ErrInvalidConfiguration)
	}
	if c.Resilience.FailureThreshold < 1 {
		return fmt.Errorf("failure threshold must be at least 1, got %d: %w",
			c.Resilience.FailureThreshold, ErrInvalidConfiguration)
	}
	if c.Resilience.Cooldown < 0 {
		return fmt.Errorf("cooldown must be non-negative, got %v: %w",
			c.Resilience.Cooldown, ErrInvalidConfiguration)
	}
	if c.Resilience.MaxRecoveryAttempts < 0 {
		return fmt.Errorf("max recovery attempts must be non-negative, got %d: %w",
			c.Resilience.MaxRecoveryAttempts, ErrInvalidConfiguration)
	}
	if c.Resilience.StatisticsCapacity < 1 {
		return fmt.Errorf("statistics capacity must be at least 1, got %d: %w",
			c.Resilience.StatisticsCapacity, ErrInvalidConfiguration)
	}
	if c.Memory.Provider == "redis" && c.Memory.RedisURL == "" {
		return fmt.Errorf("redis memory provider requires a redis URL: %w", ErrMissingConfiguration)
	}
	return nil
}

// Functional options

// WithName sets the framework/service name
func WithName(name string) Option {
	return func(c *Config) { c.Name = name }
}

// WithHistoryCapacity bounds the conversation buffer
func WithHistoryCapacity(n int) Option {
	return func(c *Config) { c.Conversation.HistoryCapacity = n }
}

// WithFailureThreshold sets the default breaker failure threshold
func WithFailureThreshold(n int) Option {
	return func(c *Config) { c.Resilience.FailureThreshold = n }
}

// WithCooldown sets the default breaker cooldown window
func WithCooldown(d time.Duration) Option {
	return func(c *Config) { c.Resilience.Cooldown = d }
}

// WithCallTimeout bounds each capability call
func WithCallTimeout(d time.Duration) Option {
	return func(c *Config) { c.Resilience.CallTimeout = d }
}

// WithMaxRecoveryAttempts sets the local recovery budget
func WithMaxRecoveryAttempts(n int) Option {
	return func(c *Config) { c.Resilience.MaxRecoveryAttempts = n }
}

// WithRulesDir loads intent rules from a directory of YAML files
func WithRulesDir(dir string) Option {
	return func(c *Config) { c.Routing.RulesDir = dir }
}

// WithRedisMemory selects redis-backed session persistence
func WithRedisMemory(redisURL string) Option {
	return func(c *Config) {
		c.Memory.Provider = "redis"
		c.Memory.RedisURL = redisURL
	}
}

// WithAI configures the chat collaborator endpoint
func WithAI(baseURL, apiKey, model string) Option {
	return func(c *Config) {
		c.AI.BaseURL = baseURL
		c.AI.APIKey = apiKey
		if model != "" {
			c.AI.Model = model
		}
	}
}

// WithTelemetryEnabled turns on OpenTelemetry export
func WithTelemetryEnabled(endpoint string) Option {
	return func(c *Config) {
		c.Telemetry.Enabled = true
		c.Telemetry.OTLPEndpoint = endpoint
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envDuration(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}
