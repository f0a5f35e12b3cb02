package cache

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestStats_HitsAndMisses(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	c := New[string, int](OptClock(clock))

	require.NoError(t, c.Define(ctx, "a", Spec[string, int]{Compute: func(ctx context.Context) (int, error) {
		clock.Advance(10 * time.Millisecond)
		return 1, nil
	}}))
	require.NoError(t, c.Define(ctx, "b", Spec[string, int]{Compute: func(ctx context.Context) (int, error) {
		clock.Advance(30 * time.Millisecond)
		return 2, nil
	}}))

	stats := c.Stats(ctx)
	require.Equal(t, 2, stats.Definitions)
	require.Equal(t, 0, stats.Entries)
	require.Zero(t, stats.HitRatio())
	require.Zero(t, stats.AvgComputeTime)

	for i := 0; i < 3; i++ {
		_, err := c.Get(ctx, "a")
		require.NoError(t, err)
	}
	_, err := c.Get(ctx, "b")
	require.NoError(t, err)

	clock.Advance(5 * time.Second)

	stats = c.Stats(ctx)
	require.Equal(t, 2, stats.Entries)
	require.Equal(t, uint64(2), stats.Hits)
	require.Equal(t, uint64(2), stats.Misses)
	require.Equal(t, uint64(2), stats.Computations)
	require.InDelta(t, 0.5, stats.HitRatio(), 1e-9)
	require.Equal(t, 20*time.Millisecond, stats.AvgComputeTime)

	a := stats.Keys["a"]
	require.Equal(t, uint64(2), a.Hits)
	require.Equal(t, uint64(1), a.Misses)
	require.Equal(t, 10*time.Millisecond, a.ComputeTime)
	require.Equal(t, 5*time.Second+30*time.Millisecond, a.Age)
	require.False(t, a.Dirty)

	require.Equal(t, 5*time.Second, stats.Keys["b"].Age)

	require.NoError(t, c.Invalidate(ctx, "a"))
	stats = c.Stats(ctx)
	require.Equal(t, 1, stats.Dirty)
	require.True(t, stats.Keys["a"].Dirty)

	_, err = c.Get(ctx, "a")
	require.NoError(t, err)
	stats = c.Stats(ctx)
	require.Equal(t, uint64(2), stats.Keys["a"].Misses)
	require.Equal(t, uint64(3), stats.Misses)
}

func TestStats_ComputeErrors(t *testing.T) {
	ctx := context.Background()
	c := New[string, int]()

	require.NoError(t, c.Define(ctx, "a", Spec[string, int]{Compute: func(ctx context.Context) (int, error) {
		return 0, context.DeadlineExceeded
	}}))

	for i := 0; i < 2; i++ {
		_, err := c.Get(ctx, "a")
		require.ErrorIs(t, err, context.DeadlineExceeded)
	}

	stats := c.Stats(ctx)
	require.Equal(t, uint64(2), stats.ComputeErrors)
	require.Equal(t, uint64(2), stats.Computations)
	require.Equal(t, uint64(2), stats.Misses)
	require.Equal(t, 0, stats.Entries)
}

func TestStats_Disabled(t *testing.T) {
	ctx := context.Background()
	c := New[string, int](OptStats(false))

	require.NoError(t, c.Define(ctx, "a", Spec[string, int]{Compute: func(ctx context.Context) (int, error) { return 1, nil }}))
	require.NoError(t, c.Define(ctx, "loop", Spec[string, int]{Compute: reader(c, "loop")}))

	for i := 0; i < 3; i++ {
		_, err := c.Get(ctx, "a")
		require.NoError(t, err)
	}
	_, err := c.Get(ctx, "loop")
	require.ErrorIs(t, err, ErrCircularDependency)

	stats := c.Stats(ctx)
	require.Equal(t, 1, stats.Entries)
	require.Zero(t, stats.Hits)
	require.Zero(t, stats.Misses)
	require.Zero(t, stats.Computations)
	require.Zero(t, stats.Keys["a"].Hits)
	require.Equal(t, uint64(1), stats.CircularDependencies)
}

func TestDependencyTree(t *testing.T) {
	ctx := context.Background()
	c := New[string, int]()
	constant := func(ctx context.Context) (int, error) { return 1, nil }

	require.NoError(t, c.Define(ctx, "a", Spec[string, int]{Compute: constant}))
	require.NoError(t, c.Define(ctx, "b", Spec[string, int]{Compute: reader(c, "a"), Dependencies: []string{"a"}}))
	require.NoError(t, c.Define(ctx, "c", Spec[string, int]{Compute: reader(c, "a"), Dependencies: []string{"a"}}))
	require.NoError(t, c.Define(ctx, "d", Spec[string, int]{Compute: reader(c, "b"), Dependencies: []string{"b", "c", "ghost"}}))

	_, err := c.Get(ctx, "d")
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, "b"))

	tree, err := c.DependencyTree(ctx, "d")
	require.NoError(t, err)
	require.Equal(t, &TreeNode[string]{
		Key:    "d",
		Cached: true,
		Dirty:  true,
		Dependencies: []*TreeNode[string]{
			{Key: "b", Cached: true, Dirty: true, Dependencies: []*TreeNode[string]{
				{Key: "a", Cached: true},
			}},
			{Key: "c", Dependencies: []*TreeNode[string]{
				{Key: "a", Cached: true, Repeated: true},
			}},
			{Key: "ghost", Undefined: true},
		},
	}, tree)
}

func TestDependencyTree_DeclaredCycle(t *testing.T) {
	ctx := context.Background()
	c := New[string, int]()
	constant := func(ctx context.Context) (int, error) { return 1, nil }

	require.NoError(t, c.Define(ctx, "x", Spec[string, int]{Compute: constant, Dependencies: []string{"y"}}))
	require.NoError(t, c.Define(ctx, "y", Spec[string, int]{Compute: constant, Dependencies: []string{"x"}}))

	tree, err := c.DependencyTree(ctx, "x")
	require.NoError(t, err)
	require.Equal(t, &TreeNode[string]{
		Key: "x",
		Dependencies: []*TreeNode[string]{
			{Key: "y", Dependencies: []*TreeNode[string]{
				{Key: "x", Repeated: true},
			}},
		},
	}, tree)
}
