package core

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for comparison using errors.Is()
// These are generic errors that can be wrapped with additional context
var (
	// Capability-related errors
	ErrCapabilityNotFound = errors.New("capability not found")
	ErrProviderFailed     = errors.New("capability provider failed")

	// Dispatch errors
	ErrCircuitOpen        = errors.New("circuit breaker open")
	ErrFallbackExhausted  = errors.New("all fallback capabilities failed")
	ErrRecoveryExhausted  = errors.New("recovery attempts exhausted")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")

	// Configuration errors
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMissingConfiguration = errors.New("missing required configuration")

	// Operation errors
	ErrTimeout         = errors.New("operation timeout")
	ErrContextCanceled = errors.New("context canceled")

	// HTTP/Network errors
	ErrConnectionFailed = errors.New("connection failed")
	ErrRequestFailed    = errors.New("request failed")
)

// CapabilityError provides structured error information for a failed
// capability call. It implements the error interface and supports wrapping.
type CapabilityError struct {
	Op         string // Operation that failed (e.g., "executor.Execute")
	Capability string // Capability the failure belongs to
	Message    string // Human-readable message
	Err        error  // Underlying error for wrapping
}

// Error returns the string representation of the error
func (e *CapabilityError) Error() string {
	if e.Op != "" && e.Err != nil {
		if e.Capability != "" {
			return fmt.Sprintf("%s [%s]: %v", e.Op, e.Capability, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "capability error"
}

// Unwrap returns the underlying error for use with errors.Is/As
func (e *CapabilityError) Unwrap() error {
	return e.Err
}

// NewCapabilityError creates a new CapabilityError
func NewCapabilityError(op, capability string, err error) *CapabilityError {
	return &CapabilityError{
		Op:         op,
		Capability: capability,
		Err:        err,
	}
}

// ErrorClass returns a short class name for an error, suitable for
// user-facing messages. Stack traces and wrapped chains are never exposed.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCapabilityNotFound):
		return "not_found"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, ErrFallbackExhausted):
		return "fallback_exhausted"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrConnectionFailed), errors.Is(err, ErrRequestFailed):
		return "network"
	default:
		return "execution_error"
	}
}

// IsNotFound checks if an error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCapabilityNotFound)
}

// IsCircuitOpen checks if an error was a circuit breaker rejection
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

// IsFallbackExhausted checks if every configured fallback failed
func IsFallbackExhausted(err error) bool {
	return errors.Is(err, ErrFallbackExhausted)
}

// IsConfigurationError checks if an error is configuration-related
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrMissingConfiguration)
}

// IsRetryable checks if an error is retryable.
// Retryable errors are transient network or availability issues; request
// failures (bad input, auth, malformed responses) are permanent.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConnectionFailed)
}
