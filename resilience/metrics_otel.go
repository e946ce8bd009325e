package resilience

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/skillwire/skillwire/telemetry"
)

// OTelMetricsCollector implements MetricsCollector using OpenTelemetry
type OTelMetricsCollector struct {
	metrics *telemetry.MetricInstruments
	ctx     context.Context
}

// NewOTelMetricsCollector creates a new OpenTelemetry metrics collector
func NewOTelMetricsCollector(ctx context.Context) *OTelMetricsCollector {
	return &OTelMetricsCollector{
		metrics: telemetry.NewMetricInstruments("skillwire-resilience"),
		ctx:     ctx,
	}
}

// RecordSuccess records a successful circuit breaker execution
func (o *OTelMetricsCollector) RecordSuccess(name string) {
	o.metrics.RecordCounter(o.ctx, telemetry.MetricBreakerSuccess, 1,
		attribute.String("circuit_breaker", name),
		attribute.String("result", "success"),
	)
}

// RecordFailure records a failed circuit breaker execution
func (o *OTelMetricsCollector) RecordFailure(name string, errorType string) {
	o.metrics.RecordCounter(o.ctx, telemetry.MetricBreakerFailure, 1,
		attribute.String("circuit_breaker", name),
		attribute.String("error_type", errorType),
		attribute.String("result", "failure"),
	)
}

// RecordStateChange records a circuit breaker state transition
func (o *OTelMetricsCollector) RecordStateChange(name string, from, to string) {
	o.metrics.RecordCounter(o.ctx, telemetry.MetricBreakerState, 1,
		attribute.String("circuit_breaker", name),
		attribute.String("from_state", from),
		attribute.String("to_state", to),
	)
}

// RecordRejection records when the circuit breaker rejects a request
func (o *OTelMetricsCollector) RecordRejection(name string) {
	o.metrics.RecordCounter(o.ctx, telemetry.MetricBreakerRejected, 1,
		attribute.String("circuit_breaker", name),
		attribute.String("result", "rejected"),
	)
}
