// Package memory provides in-process registries that resolve simulation
// entities by display name.
package memory

import (
	"fmt"
	"sync"

	"github.com/alem-hub/lineage/internal/domain/shared"
)

// Named is any entity identified by its display name.
type Named interface {
	Name() string
}

// Registry stores entities by name, preserving registration order.
// *Registry[*mentorship.Practitioner] satisfies mentorship.Registry.
type Registry[T Named] struct {
	mu     sync.RWMutex
	kind   string
	byName map[string]T
	order  []T
}

// NewRegistry creates an empty registry. kind is used in error messages.
func NewRegistry[T Named](kind string) *Registry[T] {
	return &Registry[T]{
		kind:   kind,
		byName: make(map[string]T),
	}
}

// Register adds an entity. Names must be unique.
func (r *Registry[T]) Register(v T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := v.Name()
	if _, exists := r.byName[name]; exists {
		return shared.WrapError("memory", "Register", shared.ErrAlreadyExists,
			fmt.Sprintf("%s already registered", r.kind), fmt.Errorf("%q", name))
	}

	r.byName[name] = v
	r.order = append(r.order, v)
	return nil
}

// Lookup finds an entity by name.
func (r *Registry[T]) Lookup(name string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.byName[name]
	return v, ok
}

// MustLookup finds an entity by name or returns a not-found error.
func (r *Registry[T]) MustLookup(name string) (T, error) {
	v, ok := r.Lookup(name)
	if !ok {
		var zero T
		return zero, shared.WrapError("memory", "Lookup", shared.ErrNotFound,
			fmt.Sprintf("unknown %s", r.kind), fmt.Errorf("%q", name))
	}
	return v, nil
}

// All returns every entity in registration order.
func (r *Registry[T]) All() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]T, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered entities.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
