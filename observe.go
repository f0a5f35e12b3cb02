package cache

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/selasijean/golang-computed-cache"

// Eviction reasons reported on the cache.evictions counter.
const (
	reasonCapacity = "capacity"
	reasonClear    = "clear"
	reasonUndefine = "undefine"
)

type instruments struct {
	hits          metric.Int64Counter
	misses        metric.Int64Counter
	computations  metric.Int64Counter
	computeErrors metric.Int64Counter
	evictions     metric.Int64Counter
	cycles        metric.Int64Counter
	duration      metric.Float64Histogram
}

func newInstruments(meter metric.Meter) (*instruments, error) {
	var (
		m   instruments
		err error
	)

	if m.hits, err = meter.Int64Counter("cache.hits",
		metric.WithDescription("Reads served from a fresh entry"),
		metric.WithUnit("{read}"),
	); err != nil {
		return nil, err
	}
	if m.misses, err = meter.Int64Counter("cache.misses",
		metric.WithDescription("Reads that required a computation"),
		metric.WithUnit("{read}"),
	); err != nil {
		return nil, err
	}
	if m.computations, err = meter.Int64Counter("cache.computations",
		metric.WithDescription("Completed compute calls"),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, err
	}
	if m.computeErrors, err = meter.Int64Counter("cache.compute.errors",
		metric.WithDescription("Compute calls that returned an error or panicked"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}
	if m.evictions, err = meter.Int64Counter("cache.evictions",
		metric.WithDescription("Entries removed from the cache"),
		metric.WithUnit("{entry}"),
	); err != nil {
		return nil, err
	}
	if m.cycles, err = meter.Int64Counter("cache.cycles",
		metric.WithDescription("Circular dependencies detected"),
		metric.WithUnit("{cycle}"),
	); err != nil {
		return nil, err
	}
	if m.duration, err = meter.Float64Histogram("cache.compute.duration_ms",
		metric.WithDescription("Compute call duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	return &m, nil
}

func noopInstruments() *instruments {
	m, _ := newInstruments(noop.NewMeterProvider().Meter(instrumentationName))
	return m
}

func (m *instruments) recordCompute(ctx context.Context, elapsed time.Duration, err error) {
	m.computations.Add(ctx, 1)
	if err != nil {
		m.computeErrors.Add(ctx, 1)
	}
	m.duration.Record(ctx, float64(elapsed)/float64(time.Millisecond))
}

func (m *instruments) recordEviction(ctx context.Context, reason string) {
	m.evictions.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.eviction.reason", reason)))
}

func noopTracer() trace.Tracer {
	return tracenoop.NewTracerProvider().Tracer(instrumentationName)
}

func startComputeSpan[K comparable](ctx context.Context, tracer trace.Tracer, key K) (context.Context, trace.Span) {
	return tracer.Start(ctx, "cache.compute",
		trace.WithAttributes(attribute.String("cache.key", fmt.Sprint(key))),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func endComputeSpan(span trace.Span, changed bool, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetAttributes(attribute.Bool("cache.changed", changed))
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
