package resilience

import (
	"sync"

	"github.com/skillwire/skillwire/core"
)

// BreakerGroup is a concurrent map of circuit breakers keyed by capability
// name. Breakers are created lazily on first use and never destroyed during
// the process lifetime.
type BreakerGroup struct {
	mu        sync.RWMutex
	breakers  map[string]*Breaker
	defaults  BreakerConfig
	overrides map[string]BreakerConfig
	logger    core.Logger
	metrics   MetricsCollector
}

// NewBreakerGroup creates a group with the given default settings. Name,
// Logger and Metrics fields of defaults are ignored; they are filled in per
// breaker.
func NewBreakerGroup(defaults BreakerConfig, logger core.Logger, metrics MetricsCollector) *BreakerGroup {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if metrics == nil {
		metrics = &noopMetrics{}
	}
	return &BreakerGroup{
		breakers:  make(map[string]*Breaker),
		defaults:  defaults,
		overrides: make(map[string]BreakerConfig),
		logger:    logger,
		metrics:   metrics,
	}
}

// SetOverride installs per-capability breaker settings. It only applies to
// breakers created afterwards; existing state machines are not rebuilt.
func (g *BreakerGroup) SetOverride(name string, config BreakerConfig) {
	g.mu.Lock()
	g.overrides[name] = config
	g.mu.Unlock()
}

// Get returns the breaker for name, creating it lazily.
func (g *BreakerGroup) Get(name string) *Breaker {
	g.mu.RLock()
	b, exists := g.breakers[name]
	g.mu.RUnlock()
	if exists {
		return b
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	// Double-check after acquiring the write lock.
	if b, exists := g.breakers[name]; exists {
		return b
	}

	config := g.defaults
	if override, ok := g.overrides[name]; ok {
		config = override
	}
	config.Name = name
	config.Logger = g.logger
	config.Metrics = g.metrics
	if config.FailureThreshold < 1 {
		config.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if config.ErrorClassifier == nil {
		config.ErrorClassifier = DefaultErrorClassifier
	}

	b, err := NewBreaker(&config)
	if err != nil {
		// Defaults are validated at group construction time by the
		// threshold backfill above, so this is unreachable apart from
		// negative durations in an override.
		g.logger.Error("Invalid breaker override, using defaults", map[string]interface{}{
			"operation": "breaker_group_get",
			"name":      name,
			"error":     err.Error(),
		})
		fallback := *DefaultBreakerConfig()
		fallback.Name = name
		fallback.Logger = g.logger
		fallback.Metrics = g.metrics
		b, _ = NewBreaker(&fallback)
	}

	g.breakers[name] = b
	return b
}

// Names returns the capability names with live breakers.
func (g *BreakerGroup) Names() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.breakers))
	for name := range g.breakers {
		names = append(names, name)
	}
	return names
}

// Snapshot returns per-breaker metrics for statistics export.
func (g *BreakerGroup) Snapshot() map[string]map[string]interface{} {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make(map[string]map[string]interface{}, len(g.breakers))
	for name, b := range g.breakers {
		out[name] = b.Snapshot()
	}
	return out
}
