// Package resilience provides per-capability failure isolation: a circuit
// breaker state machine, a lazily-populated breaker group keyed by
// capability name, and retry with exponential backoff.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/skillwire/skillwire/core"
)

// State represents the state of the circuit breaker
type State int

const (
	// StateClosed allows all requests through
	StateClosed State = iota
	// StateOpen blocks all requests until the cooldown elapses
	StateOpen
	// StateHalfOpen allows a single probe request
	StateHalfOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// MetricsCollector interface for circuit breaker metrics
type MetricsCollector interface {
	RecordSuccess(name string)
	RecordFailure(name string, errorType string)
	RecordStateChange(name string, from, to string)
	RecordRejection(name string)
}

// noopMetrics is a no-op metrics implementation
type noopMetrics struct{}

func (n *noopMetrics) RecordSuccess(name string)                      {}
func (n *noopMetrics) RecordFailure(name string, errorType string)    {}
func (n *noopMetrics) RecordStateChange(name string, from, to string) {}
func (n *noopMetrics) RecordRejection(name string)                    {}

// ErrorClassifier determines which errors count toward the failure threshold
type ErrorClassifier func(error) bool

// DefaultErrorClassifier counts every error except client-side context
// cancellation. Timeouts DO count: a capability exceeding its call budget
// is as broken as one that returns an error.
func DefaultErrorClassifier(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, core.ErrContextCanceled) {
		return false
	}
	return true
}

// BreakerConfig holds configuration for one circuit breaker.
type BreakerConfig struct {
	// Name identifies the circuit breaker (the capability name)
	Name string

	// FailureThreshold is the number of consecutive failures that opens
	// the breaker
	FailureThreshold int

	// Cooldown is how long the breaker stays open before permitting a
	// probe. The cooldown is a constant window; it does not grow between
	// consecutive openings.
	Cooldown time.Duration

	// CallTimeout bounds each protected call; zero disables the bound
	CallTimeout time.Duration

	// ErrorClassifier determines which errors count as failures
	ErrorClassifier ErrorClassifier

	// Logger for breaker events
	Logger core.Logger

	// Metrics collector for monitoring
	Metrics MetricsCollector
}

// DefaultBreakerConfig returns a production-ready default configuration
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		Name:             "default",
		FailureThreshold: 3,
		Cooldown:         30 * time.Second,
		CallTimeout:      10 * time.Second,
		ErrorClassifier:  DefaultErrorClassifier,
		Logger:           &core.NoOpLogger{},
		Metrics:          &noopMetrics{},
	}
}

// Validate validates the breaker configuration
func (c *BreakerConfig) Validate() error {
	if c == nil {
		return errors.New("configuration cannot be nil")
	}
	if c.Name == "" {
		return errors.New("circuit breaker name is required")
	}
	if c.FailureThreshold < 1 {
		return fmt.Errorf("failure threshold must be at least 1, got %d", c.FailureThreshold)
	}
	if c.Cooldown < 0 {
		return fmt.Errorf("cooldown must be non-negative, got %v", c.Cooldown)
	}
	if c.CallTimeout < 0 {
		return fmt.Errorf("call timeout must be non-negative, got %v", c.CallTimeout)
	}
	return nil
}

// Breaker is a per-capability circuit breaker.
//
// State machine: CLOSED counts consecutive failures and opens at the
// threshold; OPEN rejects every call until the cooldown elapses, then the
// next call becomes the single HALF_OPEN probe; a successful probe closes
// the breaker and resets the counter, a failed probe re-opens it with a
// fresh cooldown window.
//
// All transitions and the failure counter are guarded by one mutex, so
// operations against the same capability are linearized - two concurrent
// probes during HALF_OPEN are impossible.
type Breaker struct {
	config *BreakerConfig

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	cooldownUntil       time.Time
	probeInFlight       bool

	// cumulative counters, guarded by mu
	successes  uint64
	failures   uint64
	rejections uint64
	opens      uint64

	// now is replaceable in tests
	now func() time.Time
}

// NewBreaker creates a circuit breaker in the CLOSED state.
func NewBreaker(config *BreakerConfig) (*Breaker, error) {
	if config == nil {
		config = DefaultBreakerConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid circuit breaker config: %w", err)
	}
	if config.ErrorClassifier == nil {
		config.ErrorClassifier = DefaultErrorClassifier
	}
	if config.Logger == nil {
		config.Logger = &core.NoOpLogger{}
	}
	if config.Metrics == nil {
		config.Metrics = &noopMetrics{}
	}

	b := &Breaker{
		config: config,
		state:  StateClosed,
		now:    time.Now,
	}

	config.Logger.Debug("Circuit breaker created", map[string]interface{}{
		"operation":         "circuit_breaker_created",
		"name":              config.Name,
		"failure_threshold": config.FailureThreshold,
		"cooldown_ms":       config.Cooldown.Milliseconds(),
	})
	return b, nil
}

// SetLogger sets the logger provider
func (b *Breaker) SetLogger(logger core.Logger) {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	b.mu.Lock()
	b.config.Logger = logger
	b.mu.Unlock()
}

// Execute runs fn with circuit breaker protection and timeout handling.
// The returned error is either nil, a core.ErrCircuitOpen rejection, a
// core.ErrTimeout when the call exceeded its budget, or fn's own error.
// A call is never dropped silently.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	probe, err := b.allow()
	if err != nil {
		b.config.Metrics.RecordRejection(b.config.Name)
		b.config.Logger.Info("Circuit breaker rejected execution", map[string]interface{}{
			"operation": "circuit_breaker_reject",
			"name":      b.config.Name,
			"state":     b.State().String(),
		})
		return err
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if b.config.CallTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, b.config.CallTimeout)
		defer cancel()
	}

	// Run the call on a worker goroutine so a hung capability cannot
	// block the executor past its timeout. The channel is buffered: the
	// worker can always complete and exit even after we stop waiting.
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				b.config.Logger.Error("Circuit breaker caught panic", map[string]interface{}{
					"operation": "circuit_breaker_panic",
					"name":      b.config.Name,
					"panic":     fmt.Sprintf("%v", r),
				})
				done <- fmt.Errorf("panic in capability call: %v\n%s", r, stack)
			}
		}()
		done <- fn(callCtx)
	}()

	select {
	case err := <-done:
		b.record(probe, err)
		return err
	case <-callCtx.Done():
		ctxErr := callCtx.Err()
		failure := ctxErr
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			failure = fmt.Errorf("capability call exceeded %v: %w", b.config.CallTimeout, core.ErrTimeout)
		}
		b.record(probe, failure)
		// Drain the worker's eventual result so it never blocks.
		go func() { <-done }()
		return failure
	}
}

// allow decides whether a call may proceed. The bool reports whether this
// call is the half-open probe.
func (b *Breaker) allow() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return false, nil

	case StateOpen:
		if b.now().Before(b.cooldownUntil) {
			b.rejections++
			return false, fmt.Errorf("circuit breaker %q is open: %w", b.config.Name, core.ErrCircuitOpen)
		}
		// Cooldown elapsed: this call becomes the probe.
		b.transitionLocked(StateHalfOpen)
		b.probeInFlight = true
		return true, nil

	case StateHalfOpen:
		if b.probeInFlight {
			b.rejections++
			return false, fmt.Errorf("circuit breaker %q is probing: %w", b.config.Name, core.ErrCircuitOpen)
		}
		b.probeInFlight = true
		return true, nil

	default:
		return false, fmt.Errorf("circuit breaker %q in unknown state: %w", b.config.Name, core.ErrCircuitOpen)
	}
}

// record applies a call outcome to the state machine.
func (b *Breaker) record(probe bool, err error) {
	if err == nil {
		b.RecordSuccess()
		return
	}
	if !b.config.ErrorClassifier(err) {
		// Uncounted errors still release the probe slot.
		if probe {
			b.mu.Lock()
			b.probeInFlight = false
			b.mu.Unlock()
		}
		return
	}
	b.RecordFailure(err)
}

// RecordSuccess resets the failure counter; a successful half-open probe
// closes the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.successes++
	b.consecutiveFailures = 0
	b.probeInFlight = false
	if b.state == StateHalfOpen {
		b.transitionLocked(StateClosed)
	}
	b.config.Metrics.RecordSuccess(b.config.Name)
}

// RecordFailure counts a failure, opening the breaker at the threshold or
// re-opening it after a failed probe.
func (b *Breaker) RecordFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	errorType := "error"
	if err != nil {
		errorType = core.ErrorClass(err)
	}
	b.config.Metrics.RecordFailure(b.config.Name, errorType)

	switch b.state {
	case StateHalfOpen:
		b.probeInFlight = false
		b.cooldownUntil = b.now().Add(b.config.Cooldown)
		b.transitionLocked(StateOpen)
	case StateClosed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.config.FailureThreshold {
			b.cooldownUntil = b.now().Add(b.config.Cooldown)
			b.transitionLocked(StateOpen)
		}
	}
}

// transitionLocked changes state (must be called with mu held).
func (b *Breaker) transitionLocked(newState State) {
	oldState := b.state
	if oldState == newState {
		return
	}
	b.state = newState
	if newState == StateOpen {
		b.opens++
	}
	if newState == StateClosed {
		b.consecutiveFailures = 0
	}

	b.config.Logger.Info("Circuit breaker state changed", map[string]interface{}{
		"operation":            "circuit_breaker_transition",
		"name":                 b.config.Name,
		"from":                 oldState.String(),
		"to":                   newState.String(),
		"consecutive_failures": b.consecutiveFailures,
	})
	b.config.Metrics.RecordStateChange(b.config.Name, oldState.String(), newState.String())
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ConsecutiveFailures returns the current failure streak.
func (b *Breaker) ConsecutiveFailures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutiveFailures
}

// Snapshot returns current breaker metrics for statistics export.
func (b *Breaker) Snapshot() map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := map[string]interface{}{
		"name":                 b.config.Name,
		"state":                b.state.String(),
		"consecutive_failures": b.consecutiveFailures,
		"successes":            b.successes,
		"failures":             b.failures,
		"rejections":           b.rejections,
		"opens":                b.opens,
	}
	if b.state == StateOpen {
		snap["cooldown_until"] = b.cooldownUntil.UTC().Format(time.RFC3339)
	}
	return snap
}

// Reset returns the breaker to CLOSED with cleared counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	oldState := b.state
	b.state = StateClosed
	b.consecutiveFailures = 0
	b.probeInFlight = false
	b.cooldownUntil = time.Time{}

	b.config.Logger.Info("Circuit breaker reset", map[string]interface{}{
		"operation":      "circuit_breaker_reset",
		"name":           b.config.Name,
		"previous_state": oldState.String(),
	})
}
