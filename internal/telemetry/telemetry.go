package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// EndpointEnv enables telemetry export when set.
const EndpointEnv = "OTEL_EXPORTER_OTLP_ENDPOINT"

// exportInterval is short since a build usually finishes within a minute; the
// shutdown func flushes whatever is left.
const exportInterval = 2 * time.Second

// Enabled reports whether an OTLP endpoint is configured.
func Enabled(lookup func(string) (string, bool)) bool {
	v, ok := lookup(EndpointEnv)
	return ok && v != ""
}

// InitTelemetry installs OTLP trace and metric providers as the otel globals.
// Exporters read OTEL_EXPORTER_OTLP_* from the environment. The returned func
// flushes pending spans and metrics and must run before the process exits.
func InitTelemetry(ctx context.Context, serviceName, version string) (func(context.Context) error, error) {
	logger := zerolog.Ctx(ctx)

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
		resource.WithFromEnv(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var shutdowns []func(context.Context) error

	traceExporter, err := otlptracegrpc.New(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to create trace exporter, continuing without tracing")
	} else {
		// builds emit a handful of spans, sync export keeps them on exit
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithSyncer(traceExporter),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
		shutdowns = append(shutdowns, tp.Shutdown)
	}

	metricExporter, err := otlpmetricgrpc.New(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to create metric exporter, continuing without metrics")
	} else {
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(exportInterval))),
			sdkmetric.WithResource(res),
		)
		otel.SetMeterProvider(mp)
		shutdowns = append(shutdowns, mp.Shutdown)
	}

	logger.Info().
		Str("service", serviceName).
		Str("version", version).
		Int("providers", len(shutdowns)).
		Msg("OpenTelemetry initialized")

	return func(ctx context.Context) error {
		var errs []error
		for _, shutdown := range shutdowns {
			if err := shutdown(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		if err := errors.Join(errs...); err != nil {
			return fmt.Errorf("telemetry shutdown: %w", err)
		}
		return nil
	}, nil
}
