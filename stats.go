package cache

import (
	"context"
	"time"
)

// Stats is a point-in-time snapshot of the cache. Counters stay at zero when stats are disabled,
// except CircularDependencies which is always counted.
type Stats[K comparable] struct {
	Definitions int
	Entries     int
	Dirty       int
	Edges       int

	Hits                 uint64
	Misses               uint64
	Computations         uint64
	ComputeErrors        uint64
	Evictions            uint64
	CircularDependencies uint64

	AvgComputeTime time.Duration

	Keys map[K]EntryStats
}

// HitRatio returns hits / (hits + misses), or zero before the first read.
func (s Stats[K]) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// EntryStats describes one computed entry.
type EntryStats struct {
	Age         time.Duration
	Dirty       bool
	Hits        uint64
	Misses      uint64
	ComputeTime time.Duration
}

// Stats returns a snapshot of the cache counters and entries.
func (c *Cache[K, V]) Stats(ctx context.Context) Stats[K] {
	_, release := c.acquire(ctx)
	defer release()

	now := c.clock.Now()
	s := Stats[K]{
		Definitions:          len(c.definitions),
		Entries:              len(c.entries),
		Edges:                c.graph.edgeCount(),
		Hits:                 c.counters.hits,
		Misses:               c.counters.misses,
		Computations:         c.counters.computations,
		ComputeErrors:        c.counters.computeErrors,
		Evictions:            c.counters.evictions,
		CircularDependencies: c.counters.cycles,
		Keys:                 make(map[K]EntryStats, len(c.entries)),
	}
	if c.counters.computations > 0 {
		s.AvgComputeTime = time.Duration(c.counters.computeTime / int64(c.counters.computations))
	}

	for k, e := range c.entries {
		if e.dirty {
			s.Dirty++
		}
		s.Keys[k] = EntryStats{
			Age:         now.Sub(e.computedAt),
			Dirty:       e.dirty,
			Hits:        e.hits,
			Misses:      e.misses,
			ComputeTime: e.computeTime,
		}
	}
	return s
}

// TreeNode is one key in a dependency tree.
type TreeNode[K comparable] struct {
	Key K
	// Cached is set when the key has an entry, fresh or not.
	Cached bool
	Dirty  bool
	// Undefined is set for declared dependencies that have no definition.
	Undefined bool
	// Repeated is set when the key already appears elsewhere in the tree; its dependencies are
	// listed only at the first occurrence.
	Repeated     bool
	Dependencies []*TreeNode[K]
}

// DependencyTree rebuilds the declared dependencies of key as a tree.
func (c *Cache[K, V]) DependencyTree(ctx context.Context, key K) (*TreeNode[K], error) {
	return withLock(ctx, c, func(ctx context.Context) (*TreeNode[K], error) {
		if _, ok := c.definitions[key]; !ok {
			return nil, keyError(ErrUndefinedKey, key)
		}
		return c.buildTree(key, make(map[K]bool)), nil
	})
}

func (c *Cache[K, V]) buildTree(key K, seen map[K]bool) *TreeNode[K] {
	node := &TreeNode[K]{Key: key}
	if e, ok := c.entries[key]; ok {
		node.Cached = true
		node.Dirty = e.dirty
	}

	def, ok := c.definitions[key]
	if !ok {
		node.Undefined = true
		return node
	}
	if seen[key] {
		node.Repeated = true
		return node
	}
	seen[key] = true

	for _, dep := range def.dependencies {
		node.Dependencies = append(node.Dependencies, c.buildTree(dep, seen))
	}
	return node
}
