package orchestration

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(capability string, status Status, duration time.Duration) ExecutionRecord {
	return ExecutionRecord{
		ID:         "test",
		Capability: capability,
		Status:     status,
		Duration:   duration,
		StartTime:  time.Now(),
	}
}

func TestStatisticsRatesSumToOne(t *testing.T) {
	log := NewExecutionLog(100)
	log.Append(record("a", StatusSuccess, 10*time.Millisecond))
	log.Append(record("a", StatusSuccess, 10*time.Millisecond))
	log.Append(record("a", StatusRecovered, 20*time.Millisecond))
	log.Append(record("b", StatusFallbackUsed, 30*time.Millisecond))
	log.Append(record("b", StatusFailed, 5*time.Millisecond))
	log.Append(record("b", StatusCircuitOpen, 0))

	stats := log.Statistics()
	assert.Equal(t, 6, stats.TotalExecutions)

	sum := stats.SuccessRate + stats.RecoveryRate + stats.FallbackRate + stats.FailureRate
	assert.InDelta(t, 1.0, sum, 1e-9, "the four rates cover every record exactly once")

	// circuit_open folds into the failure rate and is also reported on
	// its own.
	assert.InDelta(t, 2.0/6.0, stats.FailureRate, 1e-9)
	assert.InDelta(t, 1.0/6.0, stats.CircuitOpenRate, 1e-9)
	assert.InDelta(t, 2.0/6.0, stats.SuccessRate, 1e-9)
}

func TestStatisticsPerCapability(t *testing.T) {
	log := NewExecutionLog(100)
	log.Append(record("echo", StatusSuccess, 10*time.Millisecond))
	log.Append(record("echo", StatusFailed, 30*time.Millisecond))
	log.Append(record("clock", StatusSuccess, 2*time.Millisecond))

	stats := log.Statistics()
	require.Contains(t, stats.PerCapability, "echo")
	require.Contains(t, stats.PerCapability, "clock")

	echo := stats.PerCapability["echo"]
	assert.Equal(t, 2, echo.Executions)
	assert.Equal(t, 1, echo.Successes)
	assert.Equal(t, 1, echo.Failures)
	assert.InDelta(t, 20.0, echo.AvgDurationMs, 0.01)
}

func TestStatisticsEmptyWindow(t *testing.T) {
	stats := NewExecutionLog(10).Statistics()
	assert.Zero(t, stats.TotalExecutions)
	assert.Zero(t, stats.SuccessRate)
	assert.Empty(t, stats.PerCapability)
}

func TestExecutionLogEviction(t *testing.T) {
	log := NewExecutionLog(3)
	for i := 1; i <= 5; i++ {
		log.Append(ExecutionRecord{ID: fmt.Sprintf("r%d", i), Status: StatusSuccess})
	}

	records := log.Records()
	require.Len(t, records, 3, "log never exceeds capacity")
	assert.Equal(t, "r3", records[0].ID)
	assert.Equal(t, "r5", records[2].ID)
}
