package cache

import (
	"context"

	"go.uber.org/zap"
)

// Invalidate marks the entry of key dirty so the next read recomputes it. By default every key
// that depends on key, directly or transitively, is marked dirty as well, whether or not its
// value will turn out to change. Use OptNoCascade to mark only key.
func (c *Cache[K, V]) Invalidate(ctx context.Context, key K, opts ...InvalidateOption) error {
	options := invalidateOptions{cascade: true}
	for _, opt := range opts {
		opt(&options)
	}

	_, err := withLock(ctx, c, func(ctx context.Context) (struct{}, error) {
		if _, ok := c.definitions[key]; !ok {
			return struct{}{}, keyError(ErrUndefinedKey, key)
		}

		keys := []K{key}
		if options.cascade {
			keys = append(keys, c.graph.transitiveDependents(key)...)
		}

		marked := 0
		for _, k := range keys {
			if e, ok := c.entries[k]; ok {
				e.markAsStale()
				marked++
			}
		}

		c.logger.Debug("cache key invalidated",
			zap.Any("key", key),
			zap.Bool("cascade", options.cascade),
			zap.Int("marked", marked),
		)
		return struct{}{}, nil
	})
	return err
}

// Clear removes the entries of the given keys, or every entry when no key is given. Definitions
// are kept, so cleared keys are recomputed on their next read.
func (c *Cache[K, V]) Clear(ctx context.Context, keys ...K) {
	ctx, release := c.acquire(ctx)
	defer release()

	if len(keys) == 0 {
		for k := range c.entries {
			c.removeEntry(ctx, k, reasonClear)
		}
		return
	}

	for _, k := range keys {
		c.removeEntry(ctx, k, reasonClear)
	}
}
