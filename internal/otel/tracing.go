// Package otel configures the OpenTelemetry tracer provider from the standard
// OTEL_* environment variables.
package otel

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"protonmc/internal/logging"
)

// ServiceName is reported when OTEL_SERVICE_NAME is unset.
const ServiceName = "protonmc"

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

func noop(context.Context) error { return nil }

// Init installs a tracer provider exporting over OTLP. Tracing stays off when
// OTEL_SDK_DISABLED=true or no OTLP endpoint is configured; exporter errors
// are logged and tracing is skipped rather than failing startup.
func Init(ctx context.Context, log *logging.Logger) (ShutdownFunc, error) {
	if log == nil {
		log = logging.Nop()
	}
	log = log.With("component", "tracing")
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	endpoint := getEnv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	if os.Getenv("OTEL_SDK_DISABLED") == "true" || endpoint == "" {
		log.Info("tracing_configured", "tracing_enabled", false)
		return noop, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(getEnv("OTEL_SERVICE_NAME", ServiceName)),
		),
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	protocol := getEnv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	exporter, err := newExporter(ctx, protocol)
	if err != nil {
		log.Error("tracing_init_failed", "error", err)
		return noop, nil
	}

	samplerType := getEnv("OTEL_TRACES_SAMPLER", "parentbased_traceidratio")
	samplerArg := getEnv("OTEL_TRACES_SAMPLER_ARG", "1.0")

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(sampler(samplerType, samplerArg)),
	)
	otel.SetTracerProvider(tp)

	log.Info("tracing_configured",
		"tracing_enabled", true,
		"otlp_protocol", protocol,
		"otlp_endpoint", endpoint,
		"sampler", samplerType,
		"sampler_arg", samplerArg,
	)
	return tp.Shutdown, nil
}

func newExporter(ctx context.Context, protocol string) (*otlptrace.Exporter, error) {
	switch protocol {
	case "grpc":
		return otlptracegrpc.New(ctx)
	case "http/protobuf":
		return otlptracehttp.New(ctx)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol: %s", protocol)
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func ratio(arg string) float64 {
	r, err := strconv.ParseFloat(arg, 64)
	if err != nil || r < 0 || r > 1 {
		return 1.0
	}
	return r
}

func sampler(name, arg string) trace.Sampler {
	switch name {
	case "always_on":
		return trace.AlwaysSample()
	case "always_off":
		return trace.NeverSample()
	case "traceidratio":
		return trace.TraceIDRatioBased(ratio(arg))
	case "parentbased_always_on":
		return trace.ParentBased(trace.AlwaysSample())
	case "parentbased_always_off":
		return trace.ParentBased(trace.NeverSample())
	case "parentbased_traceidratio":
		return trace.ParentBased(trace.TraceIDRatioBased(ratio(arg)))
	default:
		return trace.ParentBased(trace.AlwaysSample())
	}
}
