// Package telemetry installs the OpenTelemetry trace and metric pipelines
// shared by the API and the worker.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/lungbuddy/lungbuddy/internal/provider/resilience"
)

const defaultExportInterval = 15 * time.Second

// Config selects where and how much telemetry is exported.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	Enabled        bool

	// SampleRatio is the fraction of new root traces recorded. Children of
	// a sampled parent are always recorded.
	SampleRatio float64

	// ExportInterval defaults to 15s.
	ExportInterval time.Duration
}

// ConfigFromEnv reads APP_ENV and the OTEL_* variables.
func ConfigFromEnv(serviceName, version string) Config {
	cfg := Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    os.Getenv("APP_ENV"),
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Enabled:        os.Getenv("OTEL_ENABLED") == "true",
		SampleRatio:    1,
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.OTLPEndpoint == "" {
		cfg.OTLPEndpoint = "localhost:4317"
	}
	if v, err := strconv.ParseFloat(os.Getenv("OTEL_TRACES_SAMPLER_ARG"), 64); err == nil && v >= 0 && v <= 1 {
		cfg.SampleRatio = v
	}
	return cfg
}

// Provider exposes the service meter and flushes exporters on Shutdown.
type Provider struct {
	Meter    metric.Meter
	shutdown []func(context.Context) error
}

// Shutdown stops the pipelines in reverse start order and joins their errors.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(p.shutdown) - 1; i >= 0; i-- {
		errs = append(errs, p.shutdown[i](ctx))
	}
	return errors.Join(errs...)
}

// Init installs global tracer and meter providers exporting over OTLP gRPC,
// along with W3C trace context and baggage propagation. When cfg.Enabled is
// false the globals are left alone and Meter is the global no-op meter.
func Init(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{Meter: otel.Meter(cfg.ServiceName)}, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	spanExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create span exporter: %w", err)
	}
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(Sampler(cfg.SampleRatio)),
	)

	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx)
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}
	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = defaultExportInterval
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(interval))),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{
		Meter:    meterProvider.Meter(cfg.ServiceName),
		shutdown: []func(context.Context) error{tracerProvider.Shutdown, meterProvider.Shutdown},
	}, nil
}

// Sampler returns a parent-based sampler recording ratio of root traces.
func Sampler(ratio float64) sdktrace.Sampler {
	root := sdktrace.TraceIDRatioBased(ratio)
	switch {
	case ratio >= 1:
		root = sdktrace.AlwaysSample()
	case ratio <= 0:
		root = sdktrace.NeverSample()
	}
	return sdktrace.ParentBased(root)
}

// RegisterProviderHealth exports each registered provider's circuit state
// (0 closed, 1 half-open, 2 open) and consecutive failures as gauges.
func RegisterProviderHealth(meter metric.Meter, registry *resilience.Registry) (metric.Registration, error) {
	state, err := meter.Int64ObservableGauge("provider.circuit.state",
		metric.WithDescription("Circuit breaker state per provider (0 closed, 1 half-open, 2 open)."))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64ObservableGauge("provider.consecutive_failures",
		metric.WithDescription("Consecutive failed requests per provider."))
	if err != nil {
		return nil, err
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for _, h := range registry.GetAllHealth() {
			attrs := metric.WithAttributes(attribute.String("provider", h.Name))
			o.ObserveInt64(state, int64(h.CircuitState), attrs)
			o.ObserveInt64(failures, int64(h.Counts.ConsecutiveFailures), attrs)
		}
		return nil
	}, state, failures)
}
