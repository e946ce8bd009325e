package resilience

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/skillwire/skillwire/core"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterEnabled bool
}

// DefaultRetryConfig provides sensible defaults
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}
}

// Delay returns the backoff delay to sleep before the given 1-based
// attempt. Delays grow by BackoffFactor and cap at MaxDelay.
func (c *RetryConfig) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return c.InitialDelay
	}
	delay := float64(c.InitialDelay) * math.Pow(c.BackoffFactor, float64(attempt-1))
	if d := time.Duration(delay); d > c.MaxDelay {
		return c.MaxDelay
	}
	d := time.Duration(delay)
	if c.JitterEnabled {
		// Small deterministic-per-attempt jitter to desynchronize
		// retries across callers.
		d += time.Duration(float64(d) * 0.1 * math.Sin(float64(attempt)))
	}
	return d
}

// Retry executes a function with retry logic
func Retry(ctx context.Context, config *RetryConfig, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var lastErr error
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt == config.MaxAttempts {
			break
		}

		// Sleep with context cancellation
		timer := time.NewTimer(config.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("max retry attempts (%d) exceeded for %v: %w", config.MaxAttempts, lastErr, core.ErrMaxRetriesExceeded)
}

// RetryWithBreaker combines retry logic with a circuit breaker: once the
// breaker opens, remaining attempts are rejected without invoking fn.
func RetryWithBreaker(ctx context.Context, config *RetryConfig, b *Breaker, fn func(ctx context.Context) error) error {
	return Retry(ctx, config, func() error {
		return b.Execute(ctx, fn)
	})
}
