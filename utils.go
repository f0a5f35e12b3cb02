package cache

import (
	"context"
	"sync/atomic"
)

// operationKey marks a context as running inside an operation of one particular cache, which
// already holds that cache's lock.
type operationKey[K comparable, V any] struct {
	c *Cache[K, V]
}

// operation is the ctx token of one locked operation. It is marked done on release, so a ctx
// kept past the end of its operation takes the lock again.
type operation struct {
	done atomic.Bool
}

// acquire takes the cache lock unless ctx belongs to an operation that still holds it, which is
// the case for reads issued by a compute function. The returned release flushes eviction
// callbacks after the lock is dropped.
func (c *Cache[K, V]) acquire(ctx context.Context) (context.Context, func()) {
	key := operationKey[K, V]{c: c}
	if op, ok := ctx.Value(key).(*operation); ok && !op.done.Load() {
		return ctx, func() {}
	}

	c.mu.Lock()
	op := &operation{}
	return context.WithValue(ctx, key, op), func() {
		op.done.Store(true)
		evicted, fn := c.pending, c.evictFn
		c.pending = nil
		c.mu.Unlock()

		c.notifyEvicted(fn, evicted)
	}
}

func withLock[K comparable, V any, T any](ctx context.Context, c *Cache[K, V], fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, release := c.acquire(ctx)
	defer release()

	return fn(ctx)
}
