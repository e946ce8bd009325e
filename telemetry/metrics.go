package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names used across the framework.
const (
	MetricExecutions       = "skillwire.executor.executions"
	MetricExecutionMs      = "skillwire.executor.duration_ms"
	MetricBreakerSuccess   = "skillwire.circuit_breaker.success"
	MetricBreakerFailure   = "skillwire.circuit_breaker.failure"
	MetricBreakerRejected  = "skillwire.circuit_breaker.rejected"
	MetricBreakerState     = "skillwire.circuit_breaker.state_change"
	MetricRecoveryAttempts = "skillwire.executor.recovery_attempts"
	MetricFallbacks        = "skillwire.executor.fallbacks"
)

// MetricInstruments holds cached metric instruments for efficient recording.
// Instruments are created once per name and reused; creation failures fall
// back to dropping the measurement rather than failing the caller.
type MetricInstruments struct {
	meter      metric.Meter
	mu         sync.Mutex
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
}

// NewMetricInstruments creates instruments bound to the global meter
func NewMetricInstruments(name string) *MetricInstruments {
	return &MetricInstruments{
		meter:      otel.Meter(name),
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}
}

// RecordCounter adds value to the named counter
func (m *MetricInstruments) RecordCounter(ctx context.Context, name string, value int64, attrs ...attribute.KeyValue) {
	m.mu.Lock()
	counter, ok := m.counters[name]
	if !ok {
		var err error
		counter, err = m.meter.Int64Counter(name)
		if err != nil {
			m.mu.Unlock()
			return
		}
		m.counters[name] = counter
	}
	m.mu.Unlock()

	counter.Add(ctx, value, metric.WithAttributes(attrs...))
}

// RecordHistogram records value in the named histogram
func (m *MetricInstruments) RecordHistogram(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue) {
	m.mu.Lock()
	histogram, ok := m.histograms[name]
	if !ok {
		var err error
		histogram, err = m.meter.Float64Histogram(name)
		if err != nil {
			m.mu.Unlock()
			return
		}
		m.histograms[name] = histogram
	}
	m.mu.Unlock()

	histogram.Record(ctx, value, metric.WithAttributes(attrs...))
}
