package keyed

import (
	"context"
	"sync"
)

// Memory is the in-memory Store used by all example backends. One mutex
// serializes every key; entity mutation is sub-microsecond pure computation,
// so the lost parallelism is not worth per-key locking.
type Memory[T Entity[T]] struct {
	mu       sync.Mutex
	fresh    Factory[T]
	entities map[string]*T
}

// NewMemory creates an empty store whose missing keys are filled from fresh.
func NewMemory[T Entity[T]](fresh Factory[T]) *Memory[T] {
	return &Memory[T]{fresh: fresh, entities: make(map[string]*T)}
}

// ensure returns the live entity for key, inserting a default if absent.
// Callers must hold mu.
func (m *Memory[T]) ensure(key string) *T {
	if e, ok := m.entities[key]; ok {
		return e
	}
	v := m.fresh()
	m.entities[key] = &v
	return &v
}

// Load returns a snapshot of the entity for key, creating it if absent.
func (m *Memory[T]) Load(_ context.Context, key string) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*m.ensure(key)).Clone(), nil
}

// Mutate applies op under the store lock and returns a snapshot of the result.
// An op error propagates with the lock released; the mutation always completes
// or fails before any caller can observe the entity again.
func (m *Memory[T]) Mutate(_ context.Context, key string, op Op[T]) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.ensure(key)
	if err := op(e); err != nil {
		var zero T
		return zero, err
	}
	return (*e).Clone(), nil
}
