// Package telemetry builds OpenTelemetry providers for exporting cache metrics and computation
// spans.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Exporter names.
const (
	ExporterPrometheus = "prometheus"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"
)

var (
	// ErrUnknownExporter is returned for an exporter name that is not supported.
	ErrUnknownExporter = errors.New("telemetry: unknown exporter")

	// ErrMissingServiceName is returned when exporting is enabled without a service name.
	ErrMissingServiceName = errors.New("telemetry: service name is required")
)

// Config selects the exporters.
type Config struct {
	ServiceName string `yaml:"service_name"`
	// Metrics is one of prometheus, stdout or none. Empty means none.
	Metrics string `yaml:"metrics"`
	// Tracing is one of stdout or none. Empty means none.
	Tracing string `yaml:"tracing"`
}

func (c Config) enabled() bool {
	return !isNone(c.Metrics) || !isNone(c.Tracing)
}

func isNone(name string) bool {
	return name == "" || name == ExporterNone
}

// Validate checks the exporter names.
func (c Config) Validate() error {
	switch c.Metrics {
	case "", ExporterNone, ExporterStdout, ExporterPrometheus:
	default:
		return fmt.Errorf("%w: metrics %q", ErrUnknownExporter, c.Metrics)
	}

	switch c.Tracing {
	case "", ExporterNone, ExporterStdout:
	default:
		return fmt.Errorf("%w: tracing %q", ErrUnknownExporter, c.Tracing)
	}

	if c.enabled() && c.ServiceName == "" {
		return ErrMissingServiceName
	}
	return nil
}

type options struct {
	registerer prometheus.Registerer
	writer     io.Writer
}

// Option configures New.
type Option func(*options)

// WithRegisterer sets where the prometheus exporter registers its collector. Defaults to
// prometheus.DefaultRegisterer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithWriter sets the destination of the stdout exporters. Defaults to os.Stdout.
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		o.writer = w
	}
}

// Providers holds the configured meter and tracer providers.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: Shutdown returns every provider error joined.
type Providers struct {
	name           string
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
}

// New creates providers for cfg. Disabled signals fall back to no-op implementations.
func New(ctx context.Context, cfg Config, opts ...Option) (*Providers, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{
		registerer: prometheus.DefaultRegisterer,
		writer:     os.Stdout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	p := &Providers{name: cfg.ServiceName}
	if !cfg.enabled() {
		return p, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if !isNone(cfg.Metrics) {
		reader, err := newMetricsReader(cfg.Metrics, o)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics reader: %w", err)
		}
		p.meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(reader),
		)
	}

	if !isNone(cfg.Tracing) {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(o.writer))
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		p.tracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithBatcher(exporter),
		)
	}

	return p, nil
}

func newMetricsReader(name string, o options) (sdkmetric.Reader, error) {
	switch name {
	case ExporterStdout:
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(o.writer))
		if err != nil {
			return nil, err
		}
		return sdkmetric.NewPeriodicReader(exp), nil

	case ExporterPrometheus:
		return otelprom.New(otelprom.WithRegisterer(o.registerer))

	default:
		return nil, fmt.Errorf("%w: metrics %q", ErrUnknownExporter, name)
	}
}

// Meter returns the meter to hand to the cache.
func (p *Providers) Meter() metric.Meter {
	if p.meterProvider == nil {
		return metricnoop.NewMeterProvider().Meter(p.name)
	}
	return p.meterProvider.Meter(p.name)
}

// Tracer returns the tracer to hand to the cache.
func (p *Providers) Tracer() trace.Tracer {
	if p.tracerProvider == nil {
		return tracenoop.NewTracerProvider().Tracer(p.name)
	}
	return p.tracerProvider.Tracer(p.name)
}

// Shutdown flushes and stops the providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error

	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter shutdown: %w", err))
		}
	}

	return errors.Join(errs...)
}
