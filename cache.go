// Package cache implements a computed-value cache. Values are produced by user supplied compute
// functions, memoized per key, and recomputed only when a declared dependency is invalidated,
// their TTL runs out, or they were evicted to keep the cache within its size bound.
package cache

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type counters struct {
	hits          uint64
	misses        uint64
	computations  uint64
	computeErrors uint64
	evictions     uint64
	cycles        uint64
	computeTime   int64 // nanoseconds
}

type evicted[K comparable, V any] struct {
	key   K
	value V
}

// Cache memoizes the values of defined keys and tracks which keys depend on which.
//
// All operations are serialized on one lock. Compute functions run with that lock held and may
// call Get on the same cache as long as they pass along the ctx they were given and call it from
// their own goroutine.
type Cache[K comparable, V any] struct {
	definitions map[K]*definition[K, V]
	entries     map[K]*cacheEntry[V]
	graph       *graph[K]

	inflight map[K]struct{}
	stack    []K
	seq      uint64
	pending  []evicted[K, V]

	counters    counters
	maxSize     int
	enableStats bool
	evictFn     EvictFunc[K, V]

	clock   clockwork.Clock
	logger  *zap.Logger
	metrics *instruments
	tracer  trace.Tracer

	mu sync.Mutex
}

var (
	_ Reader[string, any] = (*Cache[string, any])(nil)
	_ Invalidator[string] = (*Cache[string, any])(nil)
)

// New creates an empty cache with the given options.
func New[K comparable, V any](opts ...CacheOption) *Cache[K, V] {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	c := &Cache[K, V]{
		definitions: make(map[K]*definition[K, V]),
		entries:     make(map[K]*cacheEntry[V]),
		graph:       newGraph[K](),
		inflight:    make(map[K]struct{}),
		maxSize:     options.MaxSize,
		enableStats: options.EnableStats,
		clock:       options.Clock,
		logger:      options.Logger,
		tracer:      options.Tracer,
	}

	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.tracer == nil {
		c.tracer = noopTracer()
	}

	c.metrics = noopInstruments()
	if options.Meter != nil {
		m, err := newInstruments(options.Meter)
		if err != nil {
			c.logger.Warn("cache metrics disabled", zap.Error(err))
		} else {
			c.metrics = m
		}
	}

	return c
}

// WithEvictFn sets the function called with every entry removed from the cache, whether by
// eviction, Clear or Undefine. Panics raised by fn are logged and otherwise ignored.
func (c *Cache[K, V]) WithEvictFn(fn EvictFunc[K, V]) *Cache[K, V] {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictFn = fn
	return c
}

// Define registers how key is computed. It fails with ErrInvalidSpec when spec has no compute
// function or a negative TTL, and with ErrDuplicateKey when key is already defined. Eager specs
// are computed before Define returns; a failed eager computation is returned but the definition
// is kept.
func (c *Cache[K, V]) Define(ctx context.Context, key K, spec Spec[K, V]) error {
	if spec.Compute == nil || spec.TTL < 0 {
		return keyError(ErrInvalidSpec, key)
	}

	_, err := withLock(ctx, c, func(ctx context.Context) (struct{}, error) {
		if _, ok := c.definitions[key]; ok {
			return struct{}{}, keyError(ErrDuplicateKey, key)
		}

		def := newDefinition(key, spec)
		c.definitions[key] = def
		c.graph.addEdges(key, def.dependencies)
		c.logger.Debug("cache key defined", zap.Any("key", key), zap.Any("dependencies", def.dependencies))

		if spec.Eager {
			_, err := c.compute(ctx, def)
			return struct{}{}, err
		}
		return struct{}{}, nil
	})
	return err
}

// Undefine removes the definition and entry of key and stops key from being notified by its
// dependencies. Keys that still declare key as a dependency are left untouched.
func (c *Cache[K, V]) Undefine(ctx context.Context, key K) error {
	_, err := withLock(ctx, c, func(ctx context.Context) (struct{}, error) {
		def, ok := c.definitions[key]
		if !ok {
			return struct{}{}, keyError(ErrUndefinedKey, key)
		}

		if _, ok := c.entries[key]; ok {
			c.removeEntry(ctx, key, reasonUndefine)
		}
		delete(c.definitions, key)
		c.graph.removeEdges(key, def.dependencies)
		c.logger.Debug("cache key undefined", zap.Any("key", key))
		return struct{}{}, nil
	})
	return err
}

// Get returns the value of key, computing it if there is no fresh entry.
func (c *Cache[K, V]) Get(ctx context.Context, key K) (V, error) {
	return withLock(ctx, c, func(ctx context.Context) (V, error) {
		return c.get(ctx, key)
	})
}

// Peek returns the cached value of key without computing it. It reports false when there is no
// fresh entry. Peek does not count as a hit or a miss.
func (c *Cache[K, V]) Peek(ctx context.Context, key K) (V, bool) {
	_, release := c.acquire(ctx)
	defer release()

	var zero V
	def, ok := c.definitions[key]
	if !ok {
		return zero, false
	}
	e, ok := c.entries[key]
	if !ok || !e.isValid(c.clock.Now(), def.ttl) {
		return zero, false
	}
	return e.value, true
}

// Has reports whether key is defined.
func (c *Cache[K, V]) Has(ctx context.Context, key K) bool {
	_, release := c.acquire(ctx)
	defer release()

	_, ok := c.definitions[key]
	return ok
}

// Len returns the number of computed entries, including dirty ones.
func (c *Cache[K, V]) Len(ctx context.Context) int {
	_, release := c.acquire(ctx)
	defer release()

	return len(c.entries)
}

// Dependents returns the keys that declared key as a dependency, in no particular order.
func (c *Cache[K, V]) Dependents(ctx context.Context, key K) []K {
	_, release := c.acquire(ctx)
	defer release()

	return c.graph.directDependents(key)
}
