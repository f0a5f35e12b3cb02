package cache

import (
	"context"

	"go.trai.ch/zerr"
	"go.uber.org/zap"
)

// evictOverflow removes the least recently computed entries until the cache is within maxSize.
func (c *Cache[K, V]) evictOverflow(ctx context.Context) {
	for len(c.entries) > c.maxSize {
		key, ok := c.oldestEntry()
		if !ok {
			return
		}
		c.removeEntry(ctx, key, reasonCapacity)
	}
}

func (c *Cache[K, V]) oldestEntry() (K, bool) {
	var (
		oldestKey K
		oldest    *cacheEntry[V]
	)
	for k, e := range c.entries {
		if oldest == nil || e.olderThan(oldest) {
			oldestKey, oldest = k, e
		}
	}
	return oldestKey, oldest != nil
}

// removeEntry drops the entry of key and queues it for the evict function, which runs once the
// current operation releases the lock.
func (c *Cache[K, V]) removeEntry(ctx context.Context, key K, reason string) {
	e, ok := c.entries[key]
	if !ok {
		return
	}
	delete(c.entries, key)

	if reason == reasonCapacity && c.enableStats {
		c.counters.evictions++
	}
	c.metrics.recordEviction(ctx, reason)
	c.logger.Debug("cache entry removed", zap.Any("key", key), zap.String("reason", reason))

	if c.evictFn != nil {
		c.pending = append(c.pending, evicted[K, V]{key: key, value: e.value})
	}
}

func (c *Cache[K, V]) notifyEvicted(fn EvictFunc[K, V], entries []evicted[K, V]) {
	if fn == nil {
		return
	}
	for _, ev := range entries {
		c.callEvictFn(fn, ev)
	}
}

func (c *Cache[K, V]) callEvictFn(fn EvictFunc[K, V], ev evicted[K, V]) {
	defer zerr.Defer(func(err error) {
		c.logger.Warn("evict function panicked",
			zap.Any("key", ev.key),
			zap.Error(err),
		)
	})

	fn(ev.key, ev.value)
}
