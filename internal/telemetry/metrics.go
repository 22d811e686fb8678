package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OutcomeSuccess is the outcome recorded for registry operations that did not fail.
// Failed operations are recorded with their error kind as the outcome.
const OutcomeSuccess = "success"

// CustomMetrics records the registry-specific metrics.
// A no-op implementation is used when telemetry is disabled, so callers never need to
// check whether metrics are enabled.
type CustomMetrics interface {
	// RecordOperation records a single registry operation with its outcome and latency.
	RecordOperation(ctx context.Context, op, outcome string, elapsed time.Duration)

	// RecordResolveResults records the number of tools returned by a format resolution.
	RecordResolveResults(ctx context.Context, count int)

	// RecordIndexInconsistencies records the number of problems found by an index audit.
	RecordIndexInconsistencies(ctx context.Context, count int)
}

type noopCustomMetrics struct{}

// NewNoopCustomMetrics returns a CustomMetrics implementation that does nothing.
func NewNoopCustomMetrics() CustomMetrics {
	return noopCustomMetrics{}
}

func (noopCustomMetrics) RecordOperation(context.Context, string, string, time.Duration) {}

func (noopCustomMetrics) RecordResolveResults(context.Context, int) {}

func (noopCustomMetrics) RecordIndexInconsistencies(context.Context, int) {}

type otelCustomMetrics struct {
	operations       metric.Int64Counter
	operationLatency metric.Float64Histogram
	resolveResults   metric.Int64Histogram
	inconsistencies  metric.Int64Gauge
}

// NewOtelCustomMetrics creates the registry instruments on the given meter.
func NewOtelCustomMetrics(meter metric.Meter) (CustomMetrics, error) {
	operations, err := meter.Int64Counter(
		"toolregistry_operations_total",
		metric.WithDescription("Number of registry operations, by operation and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operations counter: %w", err)
	}
	latency, err := meter.Float64Histogram(
		"toolregistry_operation_duration_seconds",
		metric.WithDescription("Latency of registry operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation latency histogram: %w", err)
	}
	results, err := meter.Int64Histogram(
		"toolregistry_resolve_results",
		metric.WithDescription("Number of tools returned per format resolution"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolve results histogram: %w", err)
	}
	inconsistencies, err := meter.Int64Gauge(
		"toolregistry_index_inconsistencies",
		metric.WithDescription("Format index inconsistencies found by the latest audit"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create index inconsistencies gauge: %w", err)
	}
	return &otelCustomMetrics{
		operations:       operations,
		operationLatency: latency,
		resolveResults:   results,
		inconsistencies:  inconsistencies,
	}, nil
}

func (m *otelCustomMetrics) RecordOperation(ctx context.Context, op, outcome string, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	)
	m.operations.Add(ctx, 1, attrs)
	m.operationLatency.Record(ctx, elapsed.Seconds(), attrs)
}

func (m *otelCustomMetrics) RecordResolveResults(ctx context.Context, count int) {
	m.resolveResults.Record(ctx, int64(count))
}

func (m *otelCustomMetrics) RecordIndexInconsistencies(ctx context.Context, count int) {
	m.inconsistencies.Record(ctx, int64(count))
}
