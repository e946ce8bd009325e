// Package skillwire is a resilient capability dispatcher: free-form text is
// routed to registered capabilities (plugins) or to an external chat model,
// with per-capability circuit breakers, local recovery and fallback chains
// guarding every capability call.
package skillwire

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/skillwire/skillwire/ai"
	"github.com/skillwire/skillwire/conversation"
	"github.com/skillwire/skillwire/core"
	"github.com/skillwire/skillwire/orchestration"
	"github.com/skillwire/skillwire/resilience"
	"github.com/skillwire/skillwire/routing"
	"github.com/skillwire/skillwire/telemetry"
)

// DefaultSession is the session ID used by Process.
const DefaultSession = "default"

// ProcessResult is what a caller receives for one input: the user-facing
// response text, the routed intent, and (for capability intents) the
// structured execution record.
type ProcessResult struct {
	Response string
	Intent   routing.Intent
	Record   *orchestration.ExecutionRecord
}

// Framework owns the dispatch pipeline. Construct it once with New and
// share it; all methods are safe for concurrent use.
type Framework struct {
	config   *core.Config
	logger   core.Logger
	registry *core.CapabilityRegistry
	router   *routing.Router
	breakers *resilience.BreakerGroup
	executor *orchestration.ResilientExecutor
	memory   core.Memory
	store    *conversation.Store
	otel     *telemetry.Provider

	aiMu     sync.RWMutex
	aiClient core.AIClient

	sessionMu sync.Mutex
	sessions  map[string]*conversation.History
}

// New builds a framework from functional options layered over defaults and
// SKILLWIRE_* environment variables.
func New(opts ...core.Option) (*Framework, error) {
	config, err := core.NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	logger := core.NewStructuredLogger(config.Logging, config.Name)
	registry := core.NewCapabilityRegistry(logger)

	router := routing.NewRouter(registry, logger)
	if config.Routing.RulesDir != "" {
		if _, err := router.LoadDirectory(config.Routing.RulesDir); err != nil {
			return nil, fmt.Errorf("failed to load routing rules: %w", err)
		}
	}

	f := &Framework{
		config:   config,
		logger:   logger,
		registry: registry,
		router:   router,
		sessions: make(map[string]*conversation.History),
	}

	var metrics resilience.MetricsCollector
	if config.Telemetry.Enabled {
		serviceName := config.Telemetry.ServiceName
		if serviceName == "" {
			serviceName = config.Name
		}
		provider, err := telemetry.Initialize(context.Background(), telemetry.Config{
			ServiceName:  serviceName,
			OTLPEndpoint: config.Telemetry.OTLPEndpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		f.otel = provider
		metrics = resilience.NewOTelMetricsCollector(context.Background())
	}

	f.breakers = resilience.NewBreakerGroup(resilience.BreakerConfig{
		FailureThreshold: config.Resilience.FailureThreshold,
		Cooldown:         config.Resilience.Cooldown,
		CallTimeout:      config.Resilience.CallTimeout,
	}, logger, metrics)

	fallbacks := orchestration.NewFallbackResolver(registry, f.breakers, logger)
	f.executor = orchestration.NewResilientExecutor(registry, f.breakers, fallbacks, orchestration.ExecutorConfig{
		MaxRecoveryAttempts: config.Resilience.MaxRecoveryAttempts,
		RecoveryBaseDelay:   config.Resilience.RecoveryBaseDelay,
		LogCapacity:         config.Resilience.StatisticsCapacity,
	}, logger)
	if f.otel != nil {
		f.executor.SetTelemetry(f.otel)
	}

	switch config.Memory.Provider {
	case "redis":
		memory, err := core.NewRedisMemory(core.RedisMemoryOptions{
			RedisURL:  config.Memory.RedisURL,
			Namespace: config.Name,
			Logger:    logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect session store: %w", err)
		}
		f.memory = memory
	default:
		f.memory = core.NewMemoryStore()
	}
	f.store = conversation.NewStore(f.memory, config.Conversation.SessionTTL, logger)

	if config.AI.APIKey != "" {
		f.aiClient = ai.NewClient(config.AI.APIKey, config.AI.BaseURL,
			ai.WithModel(config.AI.Model),
			ai.WithMaxTokens(config.AI.MaxTokens),
			ai.WithTemperature(config.AI.Temperature),
			ai.WithTimeout(config.AI.Timeout),
			ai.WithLogger(logger),
		)
	}

	logger.Info("Framework initialized", map[string]interface{}{
		"operation":      "startup",
		"name":           config.Name,
		"memory":         config.Memory.Provider,
		"telemetry":      config.Telemetry.Enabled,
		"chat_available": f.aiClient != nil,
	})
	return f, nil
}

// Register adds a capability to the registry. A duplicate name overwrites
// the earlier registration.
func (f *Framework) Register(cap core.Capability) error {
	return f.registry.Register(cap)
}

// Discover instantiates capabilities from providers and registers the ones
// that construct cleanly. One provider's failure never aborts the others.
func (f *Framework) Discover(ctx context.Context, providers ...core.CapabilityProvider) []core.ProviderResult {
	return f.registry.Discover(ctx, providers...)
}

// Capabilities returns the registered capability names, sorted.
func (f *Framework) Capabilities() []string {
	return f.registry.List()
}

// AddRoute appends an intent rule. Earlier rules win ties.
func (f *Framework) AddRoute(rule routing.Rule) error {
	return f.router.AddRule(rule)
}

// RegisterFallback installs a fallback chain for a primary capability.
func (f *Framework) RegisterFallback(config orchestration.FallbackConfig) error {
	return f.executor.Fallbacks().Register(config)
}

// SetBreakerOverride tunes the circuit breaker for one capability. It
// applies to breakers created after the call.
func (f *Framework) SetBreakerOverride(name string, config resilience.BreakerConfig) {
	f.breakers.SetOverride(name, config)
}

// SetAIClient replaces the chat collaborator, e.g. with a test double.
func (f *Framework) SetAIClient(client core.AIClient) {
	f.aiMu.Lock()
	f.aiClient = client
	f.aiMu.Unlock()
}

// Execute dispatches a capability call directly, bypassing intent routing.
func (f *Framework) Execute(ctx context.Context, name string, params map[string]interface{}) *orchestration.ExecutionRecord {
	return f.executor.Execute(ctx, name, params)
}

// Statistics exports the aggregated execution rates for the recorded window.
func (f *Framework) Statistics() orchestration.Statistics {
	return f.executor.GetStatistics()
}

// BreakerSnapshot exposes per-capability breaker state for diagnostics.
func (f *Framework) BreakerSnapshot() map[string]map[string]interface{} {
	return f.breakers.Snapshot()
}

// NewSession returns a fresh unique session ID for ProcessSession.
func (f *Framework) NewSession() string {
	return uuid.New().String()
}

// Process handles one user input on the default session.
func (f *Framework) Process(ctx context.Context, text string) (*ProcessResult, error) {
	return f.ProcessSession(ctx, DefaultSession, text)
}

// ProcessSession handles one user input: the text is appended to the
// session's history, routed to a capability or the chat collaborator, and
// the reply is appended back. Capability failures never surface as raw
// errors; they are folded into the response and the execution record. The
// returned error is reserved for infrastructure problems (chat transport,
// session persistence).
func (f *Framework) ProcessSession(ctx context.Context, sessionID string, text string) (*ProcessResult, error) {
	history, err := f.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	history.Add(conversation.RoleUser, text)

	intent := f.router.Parse(text)
	result := &ProcessResult{Intent: intent}

	if intent.IsChat() {
		reply, err := f.chat(ctx, history)
		if err != nil {
			return nil, err
		}
		result.Response = reply
	} else {
		record := f.executor.Execute(ctx, intent.Capability, intent.Parameters)
		result.Record = record
		result.Response = f.renderRecord(record)
	}

	history.Add(conversation.RoleAssistant, result.Response)
	if err := f.store.Save(ctx, sessionID, history); err != nil {
		f.logger.Warn("Failed to persist session", map[string]interface{}{
			"operation": "process",
			"session":   sessionID,
			"error":     err.Error(),
		})
	}
	return result, nil
}

// History returns the live history buffer for a session, loading any
// persisted snapshot on first access.
func (f *Framework) History(ctx context.Context, sessionID string) (*conversation.History, error) {
	return f.session(ctx, sessionID)
}

// ResetSession drops a session's history from memory and the store.
func (f *Framework) ResetSession(ctx context.Context, sessionID string) error {
	f.sessionMu.Lock()
	delete(f.sessions, sessionID)
	f.sessionMu.Unlock()
	return f.store.Delete(ctx, sessionID)
}

// Shutdown flushes telemetry and closes the session store backend.
func (f *Framework) Shutdown(ctx context.Context) error {
	var firstErr error
	if f.otel != nil {
		if err := f.otel.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if closer, ok := f.memory.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f *Framework) session(ctx context.Context, sessionID string) (*conversation.History, error) {
	f.sessionMu.Lock()
	defer f.sessionMu.Unlock()

	if history, ok := f.sessions[sessionID]; ok {
		return history, nil
	}
	history, err := f.store.Load(ctx, sessionID, f.config.Conversation.HistoryCapacity)
	if err != nil {
		return nil, err
	}
	f.sessions[sessionID] = history
	return history, nil
}

func (f *Framework) chat(ctx context.Context, history *conversation.History) (string, error) {
	f.aiMu.RLock()
	client := f.aiClient
	f.aiMu.RUnlock()

	if client == nil {
		return "I don't have a chat backend configured. Try one of my capabilities instead.", nil
	}
	resp, err := client.Chat(ctx, history.AsChatMessages(), nil)
	if err != nil {
		return "", fmt.Errorf("chat collaborator failed: %w", err)
	}
	return resp.Content, nil
}

// renderRecord turns an execution record into user-facing text. Failures
// surface a generic apology with the capability name and error class, never
// stack traces or raw error chains.
func (f *Framework) renderRecord(record *orchestration.ExecutionRecord) string {
	switch record.Status {
	case orchestration.StatusFallbackUsed:
		return fmt.Sprintf("%s\n(handled by %s)", record.Output, record.FallbackName)
	case orchestration.StatusCircuitOpen:
		return fmt.Sprintf("Sorry, %q is temporarily unavailable after repeated failures. Please try again shortly.", record.Capability)
	case orchestration.StatusFailed:
		return fmt.Sprintf("Sorry, I couldn't complete that with %q (%s).", record.Capability, record.ErrorClass)
	default:
		return record.Output
	}
}
