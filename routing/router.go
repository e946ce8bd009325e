// Package routing maps free-form user text to a capability name using an
// ordered list of keyword rules. Routing is deterministic: the first rule
// whose keywords match wins, and input that matches no rule is chat intent
// to be forwarded to the external chat collaborator.
package routing

import (
	"fmt"
	"strings"
	"sync"

	"github.com/skillwire/skillwire/core"
)

// IntentChat is the capability-less intent returned when no rule matches.
const IntentChat = "chat"

// Rule binds a keyword set to a capability. A rule matches when any of its
// keywords occurs in the lower-cased input. Priority is registration order.
type Rule struct {
	Capability string                 `yaml:"capability" json:"capability"`
	Keywords   []string               `yaml:"keywords" json:"keywords"`
	Parameters map[string]interface{} `yaml:"parameters,omitempty" json:"parameters,omitempty"`
}

// Intent is the routing outcome for one input.
type Intent struct {
	// Capability is the routed capability name, or IntentChat.
	Capability string
	// Parameters carries the rule's static parameters plus the raw input
	// under "query".
	Parameters map[string]interface{}
	// MatchedKeyword is the keyword that selected the rule, empty for chat.
	MatchedKeyword string
}

// IsChat reports whether the input should go to the chat collaborator.
func (i Intent) IsChat() bool {
	return i.Capability == IntentChat
}

// Router holds the ordered rule list. Parse is pure: it mutates no state
// and performs no I/O, so it can be tested exhaustively.
type Router struct {
	mu       sync.RWMutex
	rules    []Rule
	registry *core.CapabilityRegistry
	logger   core.Logger
}

// NewRouter creates a router that validates rule targets against registry.
// The registry may be nil, in which case targets are not checked.
func NewRouter(registry *core.CapabilityRegistry, logger core.Logger) *Router {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Router{
		registry: registry,
		logger:   logger,
	}
}

// AddRule appends a rule; earlier rules take priority. A rule naming an
// unregistered capability is accepted with a warning, since capabilities
// may be registered later.
func (r *Router) AddRule(rule Rule) error {
	if rule.Capability == "" {
		return fmt.Errorf("rule capability cannot be empty: %w", core.ErrInvalidConfiguration)
	}
	if len(rule.Keywords) == 0 {
		return fmt.Errorf("rule for %q has no keywords: %w", rule.Capability, core.ErrInvalidConfiguration)
	}

	normalized := make([]string, 0, len(rule.Keywords))
	for _, kw := range rule.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			normalized = append(normalized, kw)
		}
	}
	rule.Keywords = normalized

	if r.registry != nil {
		if _, err := r.registry.Get(rule.Capability); err != nil {
			r.logger.Warn("Intent rule targets unregistered capability", map[string]interface{}{
				"operation":  "router_add_rule",
				"capability": rule.Capability,
			})
		}
	}

	r.mu.Lock()
	r.rules = append(r.rules, rule)
	r.mu.Unlock()

	r.logger.Debug("Intent rule added", map[string]interface{}{
		"operation":  "router_add_rule",
		"capability": rule.Capability,
		"keywords":   rule.Keywords,
	})
	return nil
}

// Rules returns a copy of the rule list in priority order.
func (r *Router) Rules() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Parse classifies text. The input is lower-cased and tested against the
// rules in registration order; the first rule with a matching keyword wins.
// Rules whose capability is not currently registered are skipped. When no
// rule matches the result is chat intent.
func (r *Router) Parse(text string) Intent {
	lowered := strings.ToLower(text)

	r.mu.RLock()
	rules := r.rules
	r.mu.RUnlock()

	for _, rule := range rules {
		if r.registry != nil {
			if _, err := r.registry.Get(rule.Capability); err != nil {
				continue
			}
		}
		for _, kw := range rule.Keywords {
			if strings.Contains(lowered, kw) {
				params := map[string]interface{}{"query": text}
				for k, v := range rule.Parameters {
					params[k] = v
				}
				return Intent{
					Capability:     rule.Capability,
					Parameters:     params,
					MatchedKeyword: kw,
				}
			}
		}
	}

	return Intent{
		Capability: IntentChat,
		Parameters: map[string]interface{}{"query": text},
	}
}
