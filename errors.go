package cache

import (
	"errors"
	"fmt"

	"go.trai.ch/zerr"
)

var (
	// ErrDuplicateKey is returned by Define when the key already has a definition.
	ErrDuplicateKey = errors.New("cache: key already defined")

	// ErrInvalidSpec is returned by Define when the spec has no compute function or a negative TTL.
	ErrInvalidSpec = errors.New("cache: invalid spec")

	// ErrUndefinedKey is returned when an operation names a key without a definition.
	ErrUndefinedKey = errors.New("cache: key not defined")

	// ErrCircularDependency is returned when a computation reads a key that is already being
	// computed further up the same call stack.
	ErrCircularDependency = errors.New("cache: circular dependency")
)

// ComputeError wraps a failure of a key's compute function.
type ComputeError struct {
	Key any
	Err error
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("cache: compute %v: %v", e.Key, e.Err)
}

func (e *ComputeError) Unwrap() error {
	return e.Err
}

func keyError[K comparable](err error, key K) error {
	return zerr.With(zerr.Wrap(err, fmt.Sprintf("key %v", key)), "key", key)
}

func circularDependencyError[K comparable](key K, path []K) error {
	return zerr.With(keyError(ErrCircularDependency, key), "path", path)
}
