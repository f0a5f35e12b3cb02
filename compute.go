package cache

import (
	"context"
	"slices"
	"time"

	"go.trai.ch/zerr"
	"go.uber.org/zap"
)

func (c *Cache[K, V]) get(ctx context.Context, key K) (V, error) {
	def, ok := c.definitions[key]
	if !ok {
		var zero V
		return zero, keyError(ErrUndefinedKey, key)
	}

	e, cached := c.entries[key]
	if cached && e.isValid(c.clock.Now(), def.ttl) {
		if c.enableStats {
			e.hits++
			c.counters.hits++
		}
		c.metrics.hits.Add(ctx, 1)
		return e.value, nil
	}

	if c.enableStats {
		c.counters.misses++
		if cached {
			e.misses++
		}
	}
	c.metrics.misses.Add(ctx, 1)

	value, err := c.compute(ctx, def)
	if err != nil {
		return value, err
	}

	// the first miss of a key happens before its entry exists
	if e, ok := c.entries[key]; ok && !cached && c.enableStats {
		e.misses++
	}
	return value, nil
}

// compute runs the compute function of def and stores the result. A key that is already being
// computed further up the call stack is rejected with ErrCircularDependency and no entry is
// touched.
func (c *Cache[K, V]) compute(ctx context.Context, def *definition[K, V]) (V, error) {
	var zero V
	key := def.key

	if _, busy := c.inflight[key]; busy {
		c.counters.cycles++
		c.metrics.cycles.Add(ctx, 1)

		path := append(slices.Clone(c.stack), key)
		c.logger.Debug("circular dependency", zap.Any("key", key), zap.Any("path", path))
		return zero, circularDependencyError(key, path)
	}

	ctx, span := startComputeSpan(ctx, c.tracer, key)
	value, elapsed, err := c.invoke(ctx, def)

	if c.enableStats {
		c.counters.computations++
		c.counters.computeTime += int64(elapsed)
	}
	c.metrics.recordCompute(ctx, elapsed, err)

	if err != nil {
		if c.enableStats {
			c.counters.computeErrors++
		}
		err = &ComputeError{Key: key, Err: err}
		endComputeSpan(span, false, err)
		c.logger.Debug("compute failed", zap.Any("key", key), zap.Error(err))
		return zero, err
	}

	// the key was undefined or redefined by its own compute function
	if c.definitions[key] != def {
		endComputeSpan(span, true, nil)
		return value, nil
	}

	e, existed := c.entries[key]
	changed := !existed || !def.equals(e.value, value)
	if !existed {
		e = &cacheEntry[V]{}
		c.entries[key] = e
	}

	c.seq++
	e.value = value
	e.computedAt = c.clock.Now()
	e.seq = c.seq
	e.dirty = false
	e.computeTime = elapsed

	c.evictOverflow(ctx)

	if changed {
		c.notifyDependents(key)
	}

	endComputeSpan(span, changed, nil)
	c.logger.Debug("computed",
		zap.Any("key", key),
		zap.Duration("elapsed", elapsed),
		zap.Bool("changed", changed),
	)
	return value, nil
}

// invoke calls the compute function with key marked as in flight. The marker is removed even if
// the function fails or panics.
func (c *Cache[K, V]) invoke(ctx context.Context, def *definition[K, V]) (value V, elapsed time.Duration, err error) {
	key := def.key
	c.inflight[key] = struct{}{}
	c.stack = append(c.stack, key)

	start := c.clock.Now()
	defer func() {
		elapsed = c.clock.Since(start)
		delete(c.inflight, key)
		c.stack = c.stack[:len(c.stack)-1]
	}()
	defer zerr.Defer(func(perr error) {
		var zero V
		value, err = zero, perr
	})

	value, err = def.compute(ctx)
	return value, elapsed, err
}

// notifyDependents marks the direct dependents of key dirty. Only one level is visited; walking
// the whole closure is left to Invalidate.
func (c *Cache[K, V]) notifyDependents(key K) {
	for _, dep := range c.graph.directDependents(key) {
		if dep == key {
			continue
		}
		if e, ok := c.entries[dep]; ok {
			e.markAsStale()
		}
	}
}
