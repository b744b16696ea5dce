package module

import (
	"maps"
	"slices"
	"sync"
)

// Registry maps module names to their port bundles for cross module lookups during bootstrap
type Registry struct {
	mu    sync.RWMutex
	ports map[string]any
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry { return &Registry{ports: map[string]any{}} }

// Register stores ports under name, replacing any earlier entry
func (r *Registry) Register(name string, ports any) {
	r.mu.Lock()
	r.ports[name] = ports
	r.mu.Unlock()
}

// Lookup returns the raw bundle registered under name
func (r *Registry) Lookup(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.ports[name]
	return v, ok
}

// Names lists registered module names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.ports))
}

func (r *Registry) reset() {
	r.mu.Lock()
	r.ports = map[string]any{}
	r.mu.Unlock()
}

// process wide registry used by Mount and the package level helpers
var global = NewRegistry()

// Register stores ports under name in the process registry
func Register(name string, ports any) { global.Register(name, ports) }

// PortsAs fetches the bundle registered under name and asserts it to T
func PortsAs[T any](name string) (T, bool) {
	v, ok := global.Lookup(name)
	if !ok {
		var zero T
		return zero, false
	}
	out, ok := v.(T)
	return out, ok
}

// Names lists the modules in the process registry
func Names() []string { return global.Names() }

// Reset clears the process registry; tests only
func Reset() { global.reset() }
