package cache

import (
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// DefaultMaxSize is the default number of computed entries kept before eviction starts.
	DefaultMaxSize = 1000
)

// CacheOptions are options for the cache.
type CacheOptions struct {
	MaxSize     int
	EnableStats bool
	Clock       clockwork.Clock
	Logger      *zap.Logger
	Meter       metric.Meter
	Tracer      trace.Tracer
}

type CacheOption func(*CacheOptions)

func defaultOptions() CacheOptions {
	return CacheOptions{
		MaxSize:     DefaultMaxSize,
		EnableStats: true,
	}
}

// OptMaxSize bounds the number of computed entries. Values below one are raised to one.
//
// If not provided, the bound is DefaultMaxSize.
func OptMaxSize(size int) CacheOption {
	return func(o *CacheOptions) {
		if size < 1 {
			size = 1
		}
		o.MaxSize = size
	}
}

// OptStats toggles hit, miss and compute-time accounting. Enabled by default.
func OptStats(enabled bool) CacheOption {
	return func(o *CacheOptions) {
		o.EnableStats = enabled
	}
}

// OptClock sets the clock used for TTLs, entry ages and eviction order.
func OptClock(clock clockwork.Clock) CacheOption {
	return func(o *CacheOptions) {
		o.Clock = clock
	}
}

// OptLogger sets the logger. The cache logs nothing if no logger is given.
func OptLogger(logger *zap.Logger) CacheOption {
	return func(o *CacheOptions) {
		o.Logger = logger
	}
}

// OptMeter sets the meter used to record cache metrics.
func OptMeter(meter metric.Meter) CacheOption {
	return func(o *CacheOptions) {
		o.Meter = meter
	}
}

// OptTracer sets the tracer used to record a span per computation.
func OptTracer(tracer trace.Tracer) CacheOption {
	return func(o *CacheOptions) {
		o.Tracer = tracer
	}
}

type invalidateOptions struct {
	cascade bool
}

// InvalidateOption configures a single Invalidate call.
type InvalidateOption func(*invalidateOptions)

// OptNoCascade limits an invalidation to the named key instead of its transitive dependents.
func OptNoCascade() InvalidateOption {
	return func(o *invalidateOptions) {
		o.cascade = false
	}
}
