// Package keyed implements the session-keyed mutable state store shared by the
// example backends: at most one entity per thread key, lazily created, mutated
// under a single lock, and only ever handed out as a snapshot copy.
package keyed

import (
	"context"
)

// Entity is the constraint for stored values. Clone must be a deep copy so a
// returned snapshot can never alias store-internal state.
type Entity[T any] interface {
	Clone() T
}

// Factory builds the default entity inserted on first access of a key.
type Factory[T Entity[T]] func() T

// Op mutates the live entity in place. It must not block on I/O: it runs with
// the store lock held and a slow op would stall unrelated sessions.
type Op[T Entity[T]] func(*T) error

// Store holds one entity per session key and serializes all access.
//
// Load and Mutate never fail for a missing key; the entity is created from the
// factory on first use. A failing Op propagates to the caller after the lock
// is released.
type Store[T Entity[T]] interface {
	// Load returns a snapshot of the entity for key, creating it if absent.
	Load(ctx context.Context, key string) (T, error)
	// Mutate applies op to the live entity for key and returns a snapshot of
	// the result. The read-modify-return sequence is atomic with respect to
	// every other caller of the same store, regardless of key.
	Mutate(ctx context.Context, key string, op Op[T]) (T, error)
}
