package otelhelper

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/dukex/watcher"

// NewMeterProvider installs a global meter provider exporting over OTLP/HTTP.
func NewMeterProvider(ctx context.Context, serviceName string) (Shutdown, error) {
	r, err := newResource(serviceName)
	if err != nil {
		return nil, err
	}

	exporter, err := otlpmetrichttp.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))),
		sdkmetric.WithResource(r),
	)

	otel.SetMeterProvider(mp)

	return mp.Shutdown, nil
}

// Meter returns the meter of the global provider.
func Meter() metric.Meter {
	return otel.GetMeterProvider().Meter(meterName)
}

// ExecutionMetrics counts finished executions by state and records how long they took.
type ExecutionMetrics struct {
	executions metric.Int64Counter
	duration   metric.Float64Histogram
	rejected   metric.Int64Counter
}

func NewExecutionMetrics(meter metric.Meter) (*ExecutionMetrics, error) {
	executions, err := meter.Int64Counter("watcher.executions",
		metric.WithDescription("Finished watch executions by state"))
	if err != nil {
		return nil, fmt.Errorf("failed to create executions counter: %w", err)
	}

	duration, err := meter.Float64Histogram("watcher.execution.duration",
		metric.WithDescription("Duration of watch executions"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	rejected, err := meter.Int64Counter("watcher.executions.rejected",
		metric.WithDescription("Executions that could not be submitted to the executor"))
	if err != nil {
		return nil, fmt.Errorf("failed to create rejected counter: %w", err)
	}

	return &ExecutionMetrics{executions: executions, duration: duration, rejected: rejected}, nil
}

func (m *ExecutionMetrics) RecordExecution(ctx context.Context, watchID, state string, took time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(WatchIDKey, watchID),
		attribute.String(ExecutionStateKey, state),
	)

	m.executions.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(took.Microseconds())/1000, attrs)
}

func (m *ExecutionMetrics) RecordRejected(ctx context.Context, watchID string) {
	m.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String(WatchIDKey, watchID)))
}
