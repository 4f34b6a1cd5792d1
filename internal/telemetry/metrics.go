package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/keystone"
)

// Metrics holds the OpenTelemetry instruments recorded by builds.
type Metrics struct {
	ComposeDuration metric.Float64Histogram
	BuildDuration   metric.Float64Histogram
	BuildsTotal     metric.Int64Counter
	BuildErrors     metric.Int64Counter
	OutputBytes     metric.Int64Counter
	RebuildsTotal   metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance bound to the global meter
// provider, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = NewMetrics(otel.GetMeterProvider().Meter(meterName))
	})
	return metrics
}

func NewMetrics(meter metric.Meter) *Metrics {
	m := &Metrics{}

	m.ComposeDuration, _ = meter.Float64Histogram(
		"keystone.compose.duration",
		metric.WithDescription("Duration of config composition"),
		metric.WithUnit("ms"),
	)

	m.BuildDuration, _ = meter.Float64Histogram(
		"keystone.build.duration",
		metric.WithDescription("Duration of bundling a composed config"),
		metric.WithUnit("ms"),
	)

	m.BuildsTotal, _ = meter.Int64Counter(
		"keystone.builds.total",
		metric.WithDescription("Total number of target builds"),
		metric.WithUnit("{build}"),
	)

	m.BuildErrors, _ = meter.Int64Counter(
		"keystone.builds.errors.total",
		metric.WithDescription("Total number of failed target builds"),
		metric.WithUnit("{error}"),
	)

	m.OutputBytes, _ = meter.Int64Counter(
		"keystone.build.output.bytes",
		metric.WithDescription("Bytes written to build outputs"),
		metric.WithUnit("By"),
	)

	m.RebuildsTotal, _ = meter.Int64Counter(
		"keystone.watch.rebuilds.total",
		metric.WithDescription("Total number of rebuilds triggered by file changes"),
		metric.WithUnit("{rebuild}"),
	)

	return m
}

// Target returns the attribute set identifying a build target.
func Target(name, env string) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("target", name),
		attribute.String("env", env),
	)
}

// Since records the milliseconds elapsed from started on h.
func Since(ctx context.Context, h metric.Float64Histogram, started time.Time, opts ...metric.RecordOption) {
	h.Record(ctx, float64(time.Since(started).Microseconds())/1000, opts...)
}
