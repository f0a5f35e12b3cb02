package cache

import (
	"context"
	"time"
)

// ComputeFunc produces the value of a key. It may read other keys of the same cache by calling
// Get with the ctx it was given. Those reads must happen on the calling goroutine and before
// ComputeFunc returns: the ctx lets them share the lock of the running operation, so concurrent
// Gets from goroutines started by ComputeFunc are not allowed.
type ComputeFunc[V any] func(ctx context.Context) (V, error)

// EqualFunc reports whether a recomputed value is the same as the previous one.
type EqualFunc[V any] func(previous, current V) bool

// EvictFunc is called with every entry removed by eviction, Clear or Undefine.
type EvictFunc[K comparable, V any] func(key K, value V)

// Spec describes how the value of a key is computed.
type Spec[K comparable, V any] struct {
	// Compute is required.
	Compute ComputeFunc[V]

	// Dependencies lists the keys Compute reads. Only this list is used to cascade invalidations,
	// so it must contain every key Compute passes to Get.
	Dependencies []K

	// TTL bounds how long a computed value is served without recomputation. Zero means forever.
	// Negative values are rejected by Define.
	TTL time.Duration

	// Eager computes the value as part of Define instead of on first read.
	Eager bool

	// Equals decides whether a recomputation changed the value. Defaults to identity.
	Equals EqualFunc[V]
}

// Reader is implemented by anything that can serve computed values.
type Reader[K comparable, V any] interface {
	Get(ctx context.Context, key K) (V, error)
}

// Invalidator is the interface handed to the owners of raw inputs so they can report changes.
type Invalidator[K comparable] interface {
	Invalidate(ctx context.Context, key K, opts ...InvalidateOption) error
}
