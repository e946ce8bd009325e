// Package orchestration contains the resilient executor: capability lookup,
// circuit-breaker gated invocation, local recovery, fallback resolution and
// execution statistics.
package orchestration

import (
	"time"
)

// Status classifies the outcome of one Execute call. Statuses are mutually
// exclusive; every call produces exactly one.
type Status string

const (
	// StatusSuccess - the primary capability succeeded on the first call
	StatusSuccess Status = "success"
	// StatusRecovered - a local recovery attempt on the same capability succeeded
	StatusRecovered Status = "recovered"
	// StatusFallbackUsed - a configured substitute capability produced the result
	StatusFallbackUsed Status = "fallback_used"
	// StatusFailed - the capability, recovery and fallback all failed
	StatusFailed Status = "failed"
	// StatusCircuitOpen - the breaker rejected the call without invoking anything
	StatusCircuitOpen Status = "circuit_open"
)

// ExecutionRecord is the structured result of one Execute call. A raw error
// never crosses the executor boundary; callers always receive a record.
type ExecutionRecord struct {
	ID         string `json:"id"`
	Capability string `json:"capability"`
	Status     Status `json:"status"`

	// Output and Metadata carry the capability result when the status is
	// success, recovered or fallback_used.
	Output   string                 `json:"output,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	Duration         time.Duration `json:"duration_ns"`
	RecoveryAttempts int           `json:"recovery_attempts"`
	RecoveryStrategy string        `json:"recovery_strategy,omitempty"`
	FallbackUsed     bool          `json:"fallback_used"`
	FallbackName     string        `json:"fallback_name,omitempty"`

	// Error holds the failure detail for failed / circuit_open records.
	Error      string    `json:"error,omitempty"`
	ErrorClass string    `json:"error_class,omitempty"`
	StartTime  time.Time `json:"start_time"`
}

// Succeeded reports whether the caller received a usable result.
func (r *ExecutionRecord) Succeeded() bool {
	switch r.Status {
	case StatusSuccess, StatusRecovered, StatusFallbackUsed:
		return true
	default:
		return false
	}
}

// FallbackConfig maps a failing primary capability to an ordered list of
// substitutes. At most one config exists per primary; a later registration
// replaces the earlier one.
type FallbackConfig struct {
	// Primary is the capability this chain protects.
	Primary string `json:"primary"`

	// Fallbacks are tried in order; the first success wins.
	Fallbacks []string `json:"fallbacks"`

	// TriggerSubstrings gate the chain: the chain fires only when one of
	// them occurs (case-insensitively) in the failure message. Empty
	// means unconditional. Matching against free-form error text is kept
	// for compatibility with existing callers even though typed error
	// categories would be sturdier.
	TriggerSubstrings []string `json:"trigger_substrings,omitempty"`

	// MaxAttempts caps how many fallbacks are tried; zero tries them all.
	MaxAttempts int `json:"max_attempts,omitempty"`
}
