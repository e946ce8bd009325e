package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapabilityErrorWrapping(t *testing.T) {
	inner := fmt.Errorf("lookup: %w", ErrCapabilityNotFound)
	err := NewCapabilityError("executor.Execute", "weather", inner)

	assert.True(t, errors.Is(err, ErrCapabilityNotFound))
	assert.Contains(t, err.Error(), "executor.Execute")
	assert.Contains(t, err.Error(), "weather")

	var capErr *CapabilityError
	assert.True(t, errors.As(err, &capErr))
	assert.Equal(t, "weather", capErr.Capability)
}

func TestErrorClass(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("x: %w", ErrCapabilityNotFound), "not_found"},
		{fmt.Errorf("x: %w", ErrCircuitOpen), "circuit_open"},
		{fmt.Errorf("x: %w", ErrFallbackExhausted), "fallback_exhausted"},
		{fmt.Errorf("x: %w", ErrTimeout), "timeout"},
		{fmt.Errorf("x: %w", ErrConnectionFailed), "network"},
		{fmt.Errorf("x: %w", ErrRequestFailed), "network"},
		{errors.New("anything else"), "execution_error"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ErrorClass(tc.err), "classifying %v", tc.err)
	}
}

func TestErrorPredicates(t *testing.T) {
	wrapped := NewCapabilityError("execute", "x", fmt.Errorf("gate: %w", ErrCircuitOpen))
	assert.True(t, IsCircuitOpen(wrapped))
	assert.False(t, IsNotFound(wrapped))

	assert.True(t, IsRetryable(fmt.Errorf("t: %w", ErrTimeout)))
	assert.True(t, IsRetryable(fmt.Errorf("c: %w", ErrConnectionFailed)))
	assert.False(t, IsRetryable(fmt.Errorf("r: %w", ErrRequestFailed)))
	assert.False(t, IsRetryable(errors.New("plain")))
}
