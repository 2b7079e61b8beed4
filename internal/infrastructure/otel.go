package infrastructure

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	// ServiceName identifies this service in trace output.
	ServiceName = "etlkit"
	// ServiceVersion is the reported service version.
	ServiceVersion = "1.0.0"
)

// TracingConfig holds tracing configuration.
type TracingConfig struct {
	Enabled bool
	// Exporter selects the span exporter: "stdout" or "none".
	Exporter string
}

// TracingProviders holds the configured tracer provider and tracer.
type TracingProviders struct {
	TracerProvider *sdktrace.TracerProvider
	Tracer         trace.Tracer
}

// DefaultTracingConfig returns the development defaults.
func DefaultTracingConfig() *TracingConfig {
	return &TracingConfig{Enabled: false, Exporter: "stdout"}
}

// InitializeTracing configures the OpenTelemetry tracer provider. When
// tracing is disabled a no-op tracer is returned so callers do not have to
// branch.
func InitializeTracing(cfg *TracingConfig, logger *slog.Logger) (*TracingProviders, error) {
	if cfg == nil {
		cfg = DefaultTracingConfig()
	}
	if logger == nil {
		logger = GetLogger()
	}

	if !cfg.Enabled || cfg.Exporter == "none" {
		return &TracingProviders{Tracer: noop.NewTracerProvider().Tracer(ServiceName)}, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	logger.Info("tracing initialized",
		slog.String("service", ServiceName),
		slog.String("exporter", cfg.Exporter))

	return &TracingProviders{
		TracerProvider: tp,
		Tracer:         tp.Tracer(ServiceName),
	}, nil
}

// Shutdown flushes and stops the tracer provider.
func (p *TracingProviders) Shutdown(ctx context.Context) error {
	if p == nil || p.TracerProvider == nil {
		return nil
	}
	return p.TracerProvider.Shutdown(ctx)
}

// Tracer returns the configured tracer, falling back to a no-op tracer.
func (p *TracingProviders) GetTracer() trace.Tracer {
	if p == nil || p.Tracer == nil {
		return noop.NewTracerProvider().Tracer(ServiceName)
	}
	return p.Tracer
}
