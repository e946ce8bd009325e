package orchestration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skillwire/skillwire/core"
	"github.com/skillwire/skillwire/resilience"
	"github.com/skillwire/skillwire/telemetry"
)

// Recovery strategy names recorded on recovered executions.
const (
	StrategyRetrySame     = "retry_same"
	StrategyReducedParams = "reduced_params"
)

// ExecutorConfig tunes the recovery loop and the statistics window.
type ExecutorConfig struct {
	// MaxRecoveryAttempts bounds local retries of the primary capability
	// before the fallback chain is consulted.
	MaxRecoveryAttempts int

	// RecoveryBaseDelay is the backoff before the first recovery attempt;
	// each further attempt waits one more multiple of it.
	RecoveryBaseDelay time.Duration

	// LogCapacity bounds the execution record log.
	LogCapacity int
}

// DefaultExecutorConfig mirrors the framework-level defaults.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxRecoveryAttempts: 2,
		RecoveryBaseDelay:   100 * time.Millisecond,
		LogCapacity:         DefaultLogCapacity,
	}
}

// ResilientExecutor dispatches capability calls behind per-capability
// circuit breakers, attempts local recovery on failure, consults the
// fallback resolver when recovery is exhausted, and records every outcome.
//
// Execute never returns a raw error; every path produces exactly one
// ExecutionRecord, appended to the statistics log.
type ResilientExecutor struct {
	registry  *core.CapabilityRegistry
	breakers  *resilience.BreakerGroup
	fallbacks *FallbackResolver
	log       *ExecutionLog
	config    ExecutorConfig
	logger    core.Logger
	telemetry core.Telemetry

	// sleep is swapped out in tests to avoid real backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewResilientExecutor wires an executor over the given registry, breaker
// group and fallback resolver.
func NewResilientExecutor(registry *core.CapabilityRegistry, breakers *resilience.BreakerGroup, fallbacks *FallbackResolver, config ExecutorConfig, logger core.Logger) *ResilientExecutor {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if config.MaxRecoveryAttempts < 0 {
		config.MaxRecoveryAttempts = 0
	}
	if config.RecoveryBaseDelay <= 0 {
		config.RecoveryBaseDelay = DefaultExecutorConfig().RecoveryBaseDelay
	}
	return &ResilientExecutor{
		registry:  registry,
		breakers:  breakers,
		fallbacks: fallbacks,
		log:       NewExecutionLog(config.LogCapacity),
		config:    config,
		logger:    logger,
		telemetry: &core.NoOpTelemetry{},
		sleep:     sleepContext,
	}
}

// SetLogger replaces the executor's logger.
func (e *ResilientExecutor) SetLogger(logger core.Logger) {
	if logger != nil {
		e.logger = logger
	}
}

// SetTelemetry enables span and metric emission for Execute calls.
func (e *ResilientExecutor) SetTelemetry(t core.Telemetry) {
	if t != nil {
		e.telemetry = t
	}
}

// Fallbacks exposes the resolver so callers can register chains.
func (e *ResilientExecutor) Fallbacks() *FallbackResolver {
	return e.fallbacks
}

// Execute runs the named capability with full protection. The returned
// record is also appended to the statistics log.
func (e *ResilientExecutor) Execute(ctx context.Context, name string, params map[string]interface{}) *ExecutionRecord {
	ctx, span := e.telemetry.StartSpan(ctx, "executor.execute")
	defer span.End()
	span.SetAttribute("capability.name", name)

	record := &ExecutionRecord{
		ID:         uuid.New().String(),
		Capability: name,
		StartTime:  time.Now(),
	}
	defer func() {
		record.Duration = time.Since(record.StartTime)
		e.log.Append(*record)
		span.SetAttribute("execution.status", string(record.Status))
		e.telemetry.RecordMetric(telemetry.MetricExecutions, 1, map[string]string{
			"capability": record.Capability,
			"status":     string(record.Status),
		})
		e.telemetry.RecordMetric(telemetry.MetricExecutionMs, float64(record.Duration.Milliseconds()), map[string]string{
			"capability": record.Capability,
		})
	}()

	// Step 1: lookup, with a heuristic second chance.
	cap, err := e.registry.Get(name)
	if err != nil {
		cap = e.heuristicLookup(name, params)
		if cap == nil {
			e.fail(record, fmt.Errorf("capability %q: %w", name, core.ErrCapabilityNotFound))
			return record
		}
		e.logger.Info("Heuristic lookup substituted capability", map[string]interface{}{
			"operation": "execute",
			"requested": name,
			"matched":   cap.Name(),
		})
		record.Capability = cap.Name()
		span.SetAttribute("capability.resolved", cap.Name())
	}

	// Step 2: first call through the breaker.
	result, err := invokeThroughBreaker(ctx, e.breakers, cap, params)
	if err == nil {
		e.succeed(record, StatusSuccess, result)
		return record
	}
	if core.IsCircuitOpen(err) {
		record.Status = StatusCircuitOpen
		record.Error = err.Error()
		record.ErrorClass = core.ErrorClass(err)
		e.logger.Warn("Circuit open, call rejected", map[string]interface{}{
			"operation":  "execute",
			"capability": record.Capability,
		})
		return record
	}
	span.RecordError(err)
	primaryErr := err

	// Step 3: local recovery with increasing backoff.
	result, strategy, attempts, recErr := e.recover(ctx, cap, params, primaryErr)
	record.RecoveryAttempts = attempts
	if attempts > 0 {
		e.telemetry.RecordMetric(telemetry.MetricRecoveryAttempts, float64(attempts), map[string]string{
			"capability": record.Capability,
		})
	}
	if recErr == nil && result != nil {
		record.RecoveryStrategy = strategy
		e.succeed(record, StatusRecovered, result)
		e.logger.Info("Recovered after failure", map[string]interface{}{
			"operation":  "execute",
			"capability": record.Capability,
			"attempts":   attempts,
			"strategy":   strategy,
		})
		return record
	}

	// Step 4: fallback chain.
	result, fbName, fbErr := e.fallbacks.Resolve(ctx, record.Capability, params, primaryErr)
	if fbErr == nil && result != nil {
		record.FallbackUsed = true
		record.FallbackName = fbName
		e.succeed(record, StatusFallbackUsed, result)
		e.telemetry.RecordMetric(telemetry.MetricFallbacks, 1, map[string]string{
			"capability": record.Capability,
			"fallback":   fbName,
		})
		return record
	}
	if fbErr != nil {
		e.logger.Warn("Fallback chain exhausted", map[string]interface{}{
			"operation":  "execute",
			"capability": record.Capability,
			"error":      fbErr.Error(),
		})
	}

	// Step 5: everything failed; surface the original error.
	e.fail(record, primaryErr)
	return record
}

// GetStatistics aggregates the recorded window into exportable rates.
func (e *ResilientExecutor) GetStatistics() Statistics {
	return e.log.Statistics()
}

// Records returns a copy of the raw execution log, oldest first.
func (e *ResilientExecutor) Records() []ExecutionRecord {
	return e.log.Records()
}

// recover retries the failing capability locally: first with the original
// parameters, then with the parameter set reduced to the declared schema.
// It stops early when the breaker opens; hammering a tripped breaker with
// backoff retries would only burn the cooldown budget.
func (e *ResilientExecutor) recover(ctx context.Context, cap core.Capability, params map[string]interface{}, cause error) (*core.CapabilityResult, string, int, error) {
	strategies := []struct {
		name   string
		params map[string]interface{}
	}{
		{StrategyRetrySame, params},
		{StrategyReducedParams, reduceParams(cap, params)},
	}

	attempts := 0
	lastErr := cause
	for _, s := range strategies {
		if attempts >= e.config.MaxRecoveryAttempts {
			break
		}
		attempts++

		delay := e.config.RecoveryBaseDelay * time.Duration(attempts)
		if err := e.sleep(ctx, delay); err != nil {
			return nil, "", attempts, err
		}

		result, err := invokeThroughBreaker(ctx, e.breakers, cap, s.params)
		if err == nil {
			return result, s.name, attempts, nil
		}
		lastErr = err
		if core.IsCircuitOpen(err) {
			break
		}
		e.logger.Debug("Recovery attempt failed", map[string]interface{}{
			"operation":  "recover",
			"capability": cap.Name(),
			"strategy":   s.name,
			"attempt":    attempts,
			"error":      err.Error(),
		})
	}
	if attempts == 0 {
		return nil, "", 0, lastErr
	}
	return nil, "", attempts, fmt.Errorf("recovery failed after %d attempts (last: %v): %w", attempts, lastErr, core.ErrRecoveryExhausted)
}

// heuristicLookup tries to match the unknown name, or textual parameter
// values, against registered capability names and descriptions.
func (e *ResilientExecutor) heuristicLookup(name string, params map[string]interface{}) core.Capability {
	var sb strings.Builder
	sb.WriteString(name)
	for _, v := range params {
		if s, ok := v.(string); ok {
			sb.WriteByte(' ')
			sb.WriteString(s)
		}
	}
	cap, ok := e.registry.FindByKeywords(sb.String())
	if !ok {
		return nil
	}
	return cap
}

func (e *ResilientExecutor) succeed(record *ExecutionRecord, status Status, result *core.CapabilityResult) {
	record.Status = status
	record.Output = result.Output
	record.Metadata = result.Metadata
}

func (e *ResilientExecutor) fail(record *ExecutionRecord, err error) {
	record.Status = StatusFailed
	record.Error = err.Error()
	record.ErrorClass = core.ErrorClass(err)
	e.logger.Error("Execution failed", map[string]interface{}{
		"operation":   "execute",
		"capability":  record.Capability,
		"error":       record.Error,
		"error_class": record.ErrorClass,
	})
}

// invokeThroughBreaker runs one capability call behind its own breaker.
// Fallback calls use the same path, so substitutes are never exempt from
// failure isolation.
func invokeThroughBreaker(ctx context.Context, breakers *resilience.BreakerGroup, cap core.Capability, params map[string]interface{}) (*core.CapabilityResult, error) {
	var result *core.CapabilityResult
	err := breakers.Get(cap.Name()).Execute(ctx, func(ctx context.Context) error {
		res, err := cap.Execute(ctx, params)
		if err != nil {
			return core.NewCapabilityError("execute", cap.Name(), err)
		}
		if res == nil {
			return core.NewCapabilityError("execute", cap.Name(), fmt.Errorf("capability returned nil result: %w", core.ErrProviderFailed))
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// reduceParams strips parameters the capability does not declare in its
// schema. Unknown keys are the most common cause of parameter validation
// failures, so dropping them is the second recovery strategy.
func reduceParams(cap core.Capability, params map[string]interface{}) map[string]interface{} {
	schema := cap.Parameters()
	reduced := make(map[string]interface{}, len(schema))
	for k, v := range params {
		if _, ok := schema[k]; ok {
			reduced[k] = v
		}
	}
	return reduced
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff interrupted: %w", core.ErrContextCanceled)
	case <-timer.C:
		return nil
	}
}
