// Package tracing wires OpenTelemetry export for pipeline runs.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/joseph-ayodele/docpipe/internal/common"
)

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

// Config holds configuration for tracing setup
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string // host:port, the exporter adds the path
	Insecure       bool
	SampleRatio    float64
}

// FromCommon maps the loaded application config to tracing settings.
func FromCommon(c common.TracingConfig, version string) Config {
	endpoint, insecure := splitScheme(c.OTLPEndpoint)
	return Config{
		ServiceName:    c.ServiceName,
		ServiceVersion: version,
		Environment:    "development",
		OTLPEndpoint:   endpoint,
		Insecure:       insecure,
		SampleRatio:    c.SampleRatio,
	}
}

// splitScheme strips an http(s):// prefix; plain host:port is treated as insecure.
func splitScheme(endpoint string) (string, bool) {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "https://"), "/"), false
	case strings.HasPrefix(endpoint, "http://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "http://"), "/"), true
	default:
		return endpoint, true
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return errors.New("tracing: service name is required")
	}
	if strings.TrimSpace(c.OTLPEndpoint) == "" {
		return errors.New("tracing: otlp endpoint is required")
	}
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return fmt.Errorf("tracing: sample ratio %v out of range [0,1]", c.SampleRatio)
	}
	return nil
}

// Setup installs a global tracer provider exporting over OTLP/HTTP.
// The returned function must be called on exit to flush spans.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (ShutdownFunc, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Info("setting up tracing",
		"service_name", cfg.ServiceName,
		"otlp_endpoint", cfg.OTLPEndpoint,
		"environment", cfg.Environment,
		"sample_ratio", cfg.SampleRatio)

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		logger.Error("failed to create OTLP exporter", "error", err)
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		logger.Error("failed to create resource", "error", err)
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	logger.Info("tracing setup completed")
	return tp.Shutdown, nil
}

// Shutdown flushes pending spans, bounded to ten seconds.
func Shutdown(shutdown ShutdownFunc, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if shutdown == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	if err := shutdown(ctx); err != nil {
		logger.Error("failed to shutdown tracing", "error", err)
		return err
	}
	logger.Info("tracing shutdown completed", "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}
