package orchestration

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/skillwire/skillwire/core"
	"github.com/skillwire/skillwire/resilience"
)

// FallbackResolver maps failing capabilities to substitute chains. Fallback
// calls go through the substitute's own circuit breaker - they are not
// exempt from failure isolation.
type FallbackResolver struct {
	mu       sync.RWMutex
	configs  map[string]FallbackConfig
	registry *core.CapabilityRegistry
	breakers *resilience.BreakerGroup
	logger   core.Logger
}

// NewFallbackResolver creates a resolver over the given registry and
// breaker group.
func NewFallbackResolver(registry *core.CapabilityRegistry, breakers *resilience.BreakerGroup, logger core.Logger) *FallbackResolver {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &FallbackResolver{
		configs:  make(map[string]FallbackConfig),
		registry: registry,
		breakers: breakers,
		logger:   logger,
	}
}

// Register installs a fallback chain for its primary capability. The last
// registration for a primary wins.
func (r *FallbackResolver) Register(config FallbackConfig) error {
	if config.Primary == "" {
		return fmt.Errorf("fallback config requires a primary capability: %w", core.ErrInvalidConfiguration)
	}
	if len(config.Fallbacks) == 0 {
		return fmt.Errorf("fallback config for %q has no fallbacks: %w", config.Primary, core.ErrInvalidConfiguration)
	}

	r.mu.Lock()
	_, replaced := r.configs[config.Primary]
	r.configs[config.Primary] = config
	r.mu.Unlock()

	fields := map[string]interface{}{
		"operation": "fallback_register",
		"primary":   config.Primary,
		"fallbacks": config.Fallbacks,
	}
	if replaced {
		r.logger.Warn("Fallback config replaced", fields)
	} else {
		r.logger.Info("Fallback config registered", fields)
	}
	return nil
}

// ConfigFor returns the chain registered for primary, if any.
func (r *FallbackResolver) ConfigFor(primary string) (FallbackConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	config, ok := r.configs[primary]
	return config, ok
}

// ShouldFallback reports whether the chain fires for the given failure
// message: true when the config has no trigger substrings, or when any
// substring occurs in the message case-insensitively.
func (r *FallbackResolver) ShouldFallback(config FallbackConfig, errMsg string) bool {
	if len(config.TriggerSubstrings) == 0 {
		return true
	}
	lowered := strings.ToLower(errMsg)
	for _, trigger := range config.TriggerSubstrings {
		if trigger == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(trigger)) {
			return true
		}
	}
	return false
}

// Resolve walks the fallback chain for primary after cause. It returns the
// first successful result and the substitute's name. A nil result with a
// nil error means no chain applies (none configured, or the trigger did not
// match); core.ErrFallbackExhausted means the chain fired and every
// substitute failed. Unknown fallback names are skipped with a log entry.
func (r *FallbackResolver) Resolve(ctx context.Context, primary string, params map[string]interface{}, cause error) (*core.CapabilityResult, string, error) {
	config, ok := r.ConfigFor(primary)
	if !ok {
		return nil, "", nil
	}

	errMsg := ""
	if cause != nil {
		errMsg = cause.Error()
	}
	if !r.ShouldFallback(config, errMsg) {
		r.logger.Debug("Fallback chain not triggered", map[string]interface{}{
			"operation": "fallback_resolve",
			"primary":   primary,
			"error":     errMsg,
		})
		return nil, "", nil
	}

	attempts := 0
	var lastErr error
	for _, name := range config.Fallbacks {
		if config.MaxAttempts > 0 && attempts >= config.MaxAttempts {
			break
		}

		cap, err := r.registry.Get(name)
		if err != nil {
			r.logger.Warn("Skipping unknown fallback capability", map[string]interface{}{
				"operation": "fallback_resolve",
				"primary":   primary,
				"fallback":  name,
			})
			continue
		}
		attempts++

		result, err := invokeThroughBreaker(ctx, r.breakers, cap, params)
		if err != nil {
			lastErr = err
			r.logger.Debug("Fallback capability failed", map[string]interface{}{
				"operation": "fallback_resolve",
				"primary":   primary,
				"fallback":  name,
				"error":     err.Error(),
			})
			continue
		}

		r.logger.Info("Fallback capability succeeded", map[string]interface{}{
			"operation": "fallback_resolve",
			"primary":   primary,
			"fallback":  name,
			"attempts":  attempts,
		})
		return result, name, nil
	}

	if attempts == 0 {
		// Configured chain contained no usable capability.
		return nil, "", fmt.Errorf("no usable fallback for %q: %w", primary, core.ErrFallbackExhausted)
	}
	return nil, "", fmt.Errorf("fallbacks for %q failed (last: %v): %w", primary, lastErr, core.ErrFallbackExhausted)
}
