package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func defineConstants(t *testing.T, c *Cache[string, int], n int) []string {
	t.Helper()

	keys := make([]string, 0, n)
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("k%d", i)
		value := i
		require.NoError(t, c.Define(context.Background(), key, Spec[string, int]{
			Compute: func(ctx context.Context) (int, error) { return value, nil },
		}))
		keys = append(keys, key)
	}
	return keys
}

func TestEvict_OldestComputedFirst(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	c := New[string, int](OptMaxSize(3), OptClock(clock))

	var evictedKeys []string
	c.WithEvictFn(func(key string, value int) {
		evictedKeys = append(evictedKeys, key)
	})

	keys := defineConstants(t, c, 4)
	for _, key := range keys[:3] {
		_, err := c.Get(ctx, key)
		require.NoError(t, err)
		clock.Advance(time.Millisecond)
	}

	// reading k0 again is a hit and does not refresh it
	_, err := c.Get(ctx, "k0")
	require.NoError(t, err)

	_, err = c.Get(ctx, "k3")
	require.NoError(t, err)

	require.Equal(t, 3, c.Len(ctx))
	require.Equal(t, []string{"k0"}, evictedKeys)
	require.Equal(t, uint64(1), c.Stats(ctx).Evictions)

	_, ok := c.Peek(ctx, "k0")
	require.False(t, ok)
	require.True(t, c.Has(ctx, "k0"))

	v, err := c.Get(ctx, "k0")
	require.NoError(t, err)
	require.Equal(t, 0, v)
	require.Equal(t, []string{"k0", "k1"}, evictedKeys)
}

func TestEvict_SameTimestamp(t *testing.T) {
	ctx := context.Background()
	c := New[string, int](OptMaxSize(2), OptClock(clockwork.NewFakeClock()))

	var evictedKeys []string
	c.WithEvictFn(func(key string, value int) {
		evictedKeys = append(evictedKeys, key)
	})

	for _, key := range defineConstants(t, c, 5) {
		_, err := c.Get(ctx, key)
		require.NoError(t, err)
		require.LessOrEqual(t, c.Len(ctx), 2)
	}

	require.Equal(t, []string{"k0", "k1", "k2"}, evictedKeys)
	_, ok := c.Peek(ctx, "k4")
	require.True(t, ok)
}

func TestEvict_DuringNestedComputation(t *testing.T) {
	ctx := context.Background()
	c := New[string, int](OptMaxSize(1), OptClock(clockwork.NewFakeClock()))

	require.NoError(t, c.Define(ctx, "a", Spec[string, int]{Compute: func(ctx context.Context) (int, error) { return 2, nil }}))
	require.NoError(t, c.Define(ctx, "b", Spec[string, int]{Compute: reader(c, "a"), Dependencies: []string{"a"}}))

	v, err := c.Get(ctx, "b")
	require.NoError(t, err)
	require.Equal(t, 2, v)
	require.Equal(t, 1, c.Len(ctx))

	_, ok := c.Peek(ctx, "b")
	require.True(t, ok)
}

func TestEvict_PanickingEvictFn(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.WarnLevel)
	c := New[string, int](OptMaxSize(1), OptLogger(zap.New(core)), OptClock(clockwork.NewFakeClock()))

	var evictedKeys []string
	c.WithEvictFn(func(key string, value int) {
		if key == "k0" {
			panic("cleanup failed")
		}
		evictedKeys = append(evictedKeys, key)
	})

	for _, key := range defineConstants(t, c, 3) {
		_, err := c.Get(ctx, key)
		require.NoError(t, err)
	}

	require.Equal(t, 1, c.Len(ctx))
	require.Equal(t, []string{"k1"}, evictedKeys)

	entries := logs.FilterMessage("evict function panicked").All()
	require.Len(t, entries, 1)
	require.Equal(t, "k0", entries[0].ContextMap()["key"])
}

func TestEvict_EvictFnMayUseCache(t *testing.T) {
	ctx := context.Background()
	c := New[string, int](OptMaxSize(1), OptClock(clockwork.NewFakeClock()))

	var sizes []int
	c.WithEvictFn(func(key string, value int) {
		sizes = append(sizes, c.Len(ctx))
	})

	for _, key := range defineConstants(t, c, 2) {
		_, err := c.Get(ctx, key)
		require.NoError(t, err)
	}
	require.Equal(t, []int{1}, sizes)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	c := New[string, int]()

	removed := make(map[string]int)
	c.WithEvictFn(func(key string, value int) {
		removed[key] = value
	})

	keys := defineConstants(t, c, 3)
	for _, key := range keys {
		_, err := c.Get(ctx, key)
		require.NoError(t, err)
	}

	c.Clear(ctx, "k1", "missing")
	require.Equal(t, 2, c.Len(ctx))
	require.Equal(t, map[string]int{"k1": 1}, removed)

	c.Clear(ctx)
	require.Equal(t, 0, c.Len(ctx))
	require.Equal(t, map[string]int{"k0": 0, "k1": 1, "k2": 2}, removed)

	// definitions survive a clear
	for _, key := range keys {
		require.True(t, c.Has(ctx, key))
	}
	v, err := c.Get(ctx, "k2")
	require.NoError(t, err)
	require.Equal(t, 2, v)

	// removals other than capacity evictions are not counted as evictions
	require.Equal(t, uint64(0), c.Stats(ctx).Evictions)
}
