package node

import (
	"fmt"
	"sync"

	"github.com/fluxgraph/core/graph"
)

// Registry resolves a graph.NodeDescriptor's Kind string to a Factory,
// with no reflection: callers register every kind they support up
// front, typically at process startup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register associates kind with factory. Registering the same kind
// twice overwrites the earlier factory.
func (r *Registry) Register(kind string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = factory
}

// Build constructs a Node for descriptor using the factory registered
// for descriptor.Kind.
func (r *Registry) Build(descriptor graph.NodeDescriptor) (Node, error) {
	r.mu.RLock()
	factory, ok := r.factories[descriptor.Kind]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("node: no factory registered for kind %q", descriptor.Kind)
	}
	return factory(descriptor)
}

// Kinds returns every kind currently registered.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	return kinds
}
