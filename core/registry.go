package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// CapabilityRegistry holds named capability instances. It is read-mostly
// after startup; registration remains safe at runtime for dynamically
// synthesized capabilities. The registry never shrinks implicitly.
type CapabilityRegistry struct {
	mu           sync.RWMutex
	capabilities map[string]Capability
	logger       Logger
}

// ProviderResult reports the outcome of a single provider during discovery.
type ProviderResult struct {
	Provider   string
	Capability string
	Err        error
}

// NewCapabilityRegistry creates an empty registry.
func NewCapabilityRegistry(logger Logger) *CapabilityRegistry {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &CapabilityRegistry{
		capabilities: make(map[string]Capability),
		logger:       logger,
	}
}

// SetLogger sets the logger provider
func (r *CapabilityRegistry) SetLogger(logger Logger) {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	r.mu.Lock()
	r.logger = logger
	r.mu.Unlock()
}

// Register inserts a capability by name. A duplicate name overwrites the
// earlier registration; this is reported as a warning, not an error.
func (r *CapabilityRegistry) Register(cap Capability) error {
	if cap == nil {
		return fmt.Errorf("capability cannot be nil")
	}
	name := cap.Name()
	if name == "" {
		return fmt.Errorf("capability name cannot be empty")
	}

	r.mu.Lock()
	_, exists := r.capabilities[name]
	r.capabilities[name] = cap
	logger := r.logger
	r.mu.Unlock()

	if exists {
		logger.Warn("Capability overwritten by duplicate registration", map[string]interface{}{
			"operation":  "capability_register",
			"capability": name,
		})
	} else {
		logger.Info("Capability registered", map[string]interface{}{
			"operation":  "capability_register",
			"capability": name,
		})
	}
	return nil
}

// Get returns the capability registered under name.
func (r *CapabilityRegistry) Get(name string) (Capability, error) {
	r.mu.RLock()
	cap, exists := r.capabilities[name]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("capability %q: %w", name, ErrCapabilityNotFound)
	}
	return cap, nil
}

// List returns all registered capability names, sorted for stable output.
func (r *CapabilityRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.capabilities))
	for name := range r.capabilities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered capabilities.
func (r *CapabilityRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.capabilities)
}

// Discover instantiates every provider and registers the capabilities that
// construct successfully. One provider's failure (error or panic) is logged
// and skipped; it never aborts discovery of the remaining providers.
// Providers run on a small worker pool since constructors may do I/O.
func (r *CapabilityRegistry) Discover(ctx context.Context, providers ...CapabilityProvider) []ProviderResult {
	results := make([]ProviderResult, len(providers))

	p := pool.New().WithMaxGoroutines(4)
	for i, provider := range providers {
		i, provider := i, provider
		p.Go(func() {
			results[i] = r.discoverOne(ctx, provider)
		})
	}
	p.Wait()

	registered := 0
	for _, res := range results {
		if res.Err == nil {
			registered++
		}
	}
	r.logger.Info("Capability discovery finished", map[string]interface{}{
		"operation":  "capability_discovery",
		"providers":  len(providers),
		"registered": registered,
		"skipped":    len(providers) - registered,
	})

	return results
}

// discoverOne runs a single provider with panic isolation.
func (r *CapabilityRegistry) discoverOne(ctx context.Context, provider CapabilityProvider) (result ProviderResult) {
	result.Provider = provider.Name()

	defer func() {
		if rec := recover(); rec != nil {
			result.Err = fmt.Errorf("provider %q panicked: %v: %w", provider.Name(), rec, ErrProviderFailed)
			r.logger.Error("Capability provider panicked, skipping", map[string]interface{}{
				"operation": "capability_discovery",
				"provider":  provider.Name(),
				"panic":     fmt.Sprintf("%v", rec),
			})
		}
	}()

	select {
	case <-ctx.Done():
		result.Err = ctx.Err()
		return result
	default:
	}

	cap, err := provider.Create()
	if err != nil {
		result.Err = fmt.Errorf("provider %q: %w", provider.Name(), err)
		r.logger.Warn("Capability provider failed, skipping", map[string]interface{}{
			"operation": "capability_discovery",
			"provider":  provider.Name(),
			"error":     err.Error(),
		})
		return result
	}
	if cap == nil {
		result.Err = fmt.Errorf("provider %q returned nil capability: %w", provider.Name(), ErrProviderFailed)
		r.logger.Warn("Capability provider returned nil, skipping", map[string]interface{}{
			"operation": "capability_discovery",
			"provider":  provider.Name(),
		})
		return result
	}

	if err := r.Register(cap); err != nil {
		result.Err = err
		return result
	}
	result.Capability = cap.Name()

	r.logger.Info("Capability discovered", map[string]interface{}{
		"operation":  "capability_discovery",
		"provider":   provider.Name(),
		"capability": cap.Name(),
	})
	return result
}

// FindByKeywords performs the heuristic alternative lookup: it matches the
// words of text against capability names and descriptions and returns the
// capability with the most hits. Used when an exact name lookup misses.
func (r *CapabilityRegistry) FindByKeywords(text string) (Capability, bool) {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var best Capability
	bestScore := 0
	for name, cap := range r.capabilities {
		haystack := strings.ToLower(name + " " + cap.Description())
		score := 0
		for _, word := range words {
			if len(word) < 3 {
				continue
			}
			if strings.Contains(haystack, word) {
				score++
			}
		}
		// Ties resolve to the lexically smaller name for determinism.
		if score > bestScore || (score == bestScore && score > 0 && best != nil && name < best.Name()) {
			best = cap
			bestScore = score
		}
	}

	if bestScore == 0 {
		return nil, false
	}
	return best, true
}
