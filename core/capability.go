package core

import (
	"context"
)

// Capability is the plugin contract of the framework. A capability is a
// named, pluggable unit of behavior; the dispatch core depends on nothing
// beyond this interface.
//
// Implementations must be safe for concurrent Execute calls: the executor
// may invoke the same capability from multiple sessions at once.
type Capability interface {
	// Name returns the unique capability name used for registration,
	// routing and circuit breaker identity.
	Name() string

	// Description is a human-readable summary, also consulted by the
	// heuristic lookup when a requested capability name is unknown.
	Description() string

	// Parameters returns the parameter schema as name -> description.
	Parameters() map[string]string

	// Execute runs the capability. A nil error means success. Blocking
	// work must honor ctx cancellation; the executor bounds every call
	// with a timeout.
	Execute(ctx context.Context, params map[string]interface{}) (*CapabilityResult, error)
}

// CapabilityResult is the outcome of a successful capability call.
// Results are immutable once produced; callers must not mutate Metadata.
type CapabilityResult struct {
	Output   string                 `json:"output"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// CapabilityFunc adapts a plain function into a Capability. This is the
// lightest way to register behavior without declaring a new type.
type CapabilityFunc struct {
	CapName        string
	CapDescription string
	CapParameters  map[string]string
	Handler        func(ctx context.Context, params map[string]interface{}) (*CapabilityResult, error)
}

func (c *CapabilityFunc) Name() string                  { return c.CapName }
func (c *CapabilityFunc) Description() string           { return c.CapDescription }
func (c *CapabilityFunc) Parameters() map[string]string { return c.CapParameters }

func (c *CapabilityFunc) Execute(ctx context.Context, params map[string]interface{}) (*CapabilityResult, error) {
	return c.Handler(ctx, params)
}

// CapabilityProvider constructs a capability instance during discovery.
// Providers replace runtime module scanning: interface satisfaction is
// checked at compile time and instantiation failures are reported per
// provider instead of aborting discovery.
type CapabilityProvider interface {
	// Name identifies the provider in discovery reports and logs.
	Name() string

	// Create instantiates the capability. A non-nil error marks this
	// provider as skipped; it never aborts discovery of the others.
	Create() (Capability, error)
}

// ProviderFunc adapts a constructor function into a CapabilityProvider.
type ProviderFunc struct {
	ProviderName string
	Constructor  func() (Capability, error)
}

func (p *ProviderFunc) Name() string { return p.ProviderName }

func (p *ProviderFunc) Create() (Capability, error) {
	return p.Constructor()
}
