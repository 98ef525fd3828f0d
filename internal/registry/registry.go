// Package registry implements the explicit, string-keyed processor registry
// called for by the specification's redesign notes: no reflection-based
// subclass scanning, just an explicit register call per processor.
package registry

import (
	"fmt"
	"sync"

	"github.com/go-partisan/partisan/internal/processor"
	"github.com/go-partisan/partisan/internal/task"
)

// Factory builds a Processor from the arguments a persisted Task carries.
// Registered once per processor class name at plugin-load time.
type Factory func(args task.Arguments) (processor.Processor, error)

// Registry maps a processor class name to its Factory.
type Registry struct {
	mu    sync.RWMutex
	items map[string]Factory
}

func New() *Registry {
	return &Registry{items: make(map[string]Factory)}
}

// Register adds a processor factory under name. Registering the same name
// twice is an error, matching the original's ProcessorClassAlreadyRegistered.
func (r *Registry) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	r.items[name] = factory
	return nil
}

// MustRegister panics on a duplicate registration; intended for plugin
// init-time wiring where a duplicate is a programming error, not a runtime
// condition to recover from.
func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Lookup returns the factory registered under name.
func (r *Registry) Lookup(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.items[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return factory, nil
}

// IsRegistered reports whether name has a registered factory.
func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.items[name]
	return ok
}

// Names returns every registered processor class name, for diagnostics.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.items))
	for name := range r.items {
		names = append(names, name)
	}
	return names
}
