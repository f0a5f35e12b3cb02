package cache

import (
	"reflect"
	"slices"
	"time"
)

type definition[K comparable, V any] struct {
	key          K
	compute      ComputeFunc[V]
	dependencies []K
	ttl          time.Duration
	equals       EqualFunc[V]
}

func newDefinition[K comparable, V any](key K, spec Spec[K, V]) *definition[K, V] {
	equals := spec.Equals
	if equals == nil {
		equals = identical[V]
	}

	return &definition[K, V]{
		key:          key,
		compute:      spec.Compute,
		dependencies: slices.Clone(spec.Dependencies),
		ttl:          spec.TTL,
		equals:       equals,
	}
}

type cacheEntry[V any] struct {
	value      V
	computedAt time.Time
	// seq orders entries computed at the same clock reading.
	seq   uint64
	dirty bool

	hits        uint64
	misses      uint64
	computeTime time.Duration
}

func (e *cacheEntry[V]) isValid(now time.Time, ttl time.Duration) bool {
	if e.dirty {
		return false
	}
	if ttl > 0 && now.Sub(e.computedAt) > ttl {
		return false
	}
	return true
}

func (e *cacheEntry[V]) markAsStale() {
	e.dirty = true
}

func (e *cacheEntry[V]) olderThan(other *cacheEntry[V]) bool {
	if !e.computedAt.Equal(other.computedAt) {
		return e.computedAt.Before(other.computedAt)
	}
	return e.seq < other.seq
}

// identical is the default EqualFunc. Comparable values are compared with ==, maps and slices
// by reference, and anything else is treated as changed.
func identical[V any](previous, current V) (same bool) {
	a, b := any(previous), any(current)
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) {
		return false
	}

	switch ta.Kind() {
	case reflect.Map:
		return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
	case reflect.Slice:
		va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	}

	if !ta.Comparable() {
		return false
	}

	// structs and arrays holding interfaces can still panic on ==
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}
