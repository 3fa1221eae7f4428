// Package observability wires the process-wide OpenTelemetry tracer
// provider, shared by every span pkg/server and pkg/orchestrator open
// (spec.md §6 tracing config).
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/corebridge/agentcore/pkg/config"
)

// InitGlobalTracer installs a TracerProvider as the process default
// and returns it so callers can Shutdown it on exit. A disabled
// config returns a no-op provider rather than failing: tracing is
// diagnostic, never load-bearing.
func InitGlobalTracer(ctx context.Context, cfg config.Config) (trace.TracerProvider, error) {
	if !cfg.TracingEnabled {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return tp, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.TracingEndpointURL),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: create otlp exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: build resource: %w", err)
	}

	rate := cfg.TracingSamplingRate
	if rate <= 0 {
		rate = 1.0
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(rate)),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	return tp, nil
}

// GetTracer returns a named tracer off the process-wide provider.
func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
