package orchestration

import (
	"sync"
	"time"
)

// DefaultLogCapacity bounds the execution log when none is configured.
const DefaultLogCapacity = 1000

// ExecutionLog is a bounded, append-only record of Execute outcomes. Once
// the capacity is reached the oldest record is evicted (FIFO). Appends are
// serialized; no update is lost under concurrent execution.
type ExecutionLog struct {
	mu       sync.RWMutex
	records  []ExecutionRecord
	capacity int
}

// NewExecutionLog creates a log bounded to capacity records.
func NewExecutionLog(capacity int) *ExecutionLog {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &ExecutionLog{
		records:  make([]ExecutionRecord, 0, capacity),
		capacity: capacity,
	}
}

// Append adds a record, evicting the oldest if the log is full.
func (l *ExecutionLog) Append(record ExecutionRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.records) >= l.capacity {
		drop := len(l.records) - l.capacity + 1
		l.records = append(l.records[:0], l.records[drop:]...)
	}
	l.records = append(l.records, record)
}

// Records returns a copy of the recorded window, oldest first.
func (l *ExecutionLog) Records() []ExecutionRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]ExecutionRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of recorded executions.
func (l *ExecutionLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// CapabilityStats is the per-capability slice of the statistics export.
type CapabilityStats struct {
	Executions    int     `json:"executions"`
	Successes     int     `json:"successes"`
	Recovered     int     `json:"recovered"`
	Fallbacks     int     `json:"fallbacks"`
	Failures      int     `json:"failures"`
	CircuitOpen   int     `json:"circuit_open"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}

// Statistics aggregates the recorded window into rates. The four rates
// (success, recovery, fallback, failure) sum to 1.0 over a non-empty
// window: circuit_open records fold into FailureRate, and CircuitOpenRate
// reports that subset separately for visibility.
type Statistics struct {
	TotalExecutions int                        `json:"total_executions"`
	SuccessRate     float64                    `json:"success_rate"`
	RecoveryRate    float64                    `json:"recovery_rate"`
	FallbackRate    float64                    `json:"fallback_rate"`
	FailureRate     float64                    `json:"failure_rate"`
	CircuitOpenRate float64                    `json:"circuit_open_rate"`
	AvgDurationMs   float64                    `json:"avg_duration_ms"`
	PerCapability   map[string]CapabilityStats `json:"per_capability"`
}

// Statistics computes the aggregate view of the current window.
func (l *ExecutionLog) Statistics() Statistics {
	records := l.Records()

	stats := Statistics{
		TotalExecutions: len(records),
		PerCapability:   make(map[string]CapabilityStats),
	}
	if len(records) == 0 {
		return stats
	}

	var successes, recovered, fallbacks, failures, circuitOpen int
	var totalDuration time.Duration
	perCapDuration := make(map[string]time.Duration)

	for _, rec := range records {
		cs := stats.PerCapability[rec.Capability]
		cs.Executions++
		perCapDuration[rec.Capability] += rec.Duration
		totalDuration += rec.Duration

		switch rec.Status {
		case StatusSuccess:
			successes++
			cs.Successes++
		case StatusRecovered:
			recovered++
			cs.Recovered++
		case StatusFallbackUsed:
			fallbacks++
			cs.Fallbacks++
		case StatusFailed:
			failures++
			cs.Failures++
		case StatusCircuitOpen:
			circuitOpen++
			cs.CircuitOpen++
		}
		stats.PerCapability[rec.Capability] = cs
	}

	total := float64(len(records))
	stats.SuccessRate = float64(successes) / total
	stats.RecoveryRate = float64(recovered) / total
	stats.FallbackRate = float64(fallbacks) / total
	stats.FailureRate = float64(failures+circuitOpen) / total
	stats.CircuitOpenRate = float64(circuitOpen) / total
	stats.AvgDurationMs = float64(totalDuration.Milliseconds()) / total

	for name, cs := range stats.PerCapability {
		if cs.Executions > 0 {
			cs.AvgDurationMs = float64(perCapDuration[name].Milliseconds()) / float64(cs.Executions)
			stats.PerCapability[name] = cs
		}
	}
	return stats
}
