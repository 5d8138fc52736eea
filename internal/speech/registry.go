package speech

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the configured synthesizers by name.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Synthesizer
	primary  string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Synthesizer)}
}

// Register adds a synthesizer. The first one registered becomes primary.
func (r *Registry) Register(name string, s Synthesizer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[name] = s
	if r.primary == "" {
		r.primary = name
	}
}

// SetPrimary selects the synthesizer used by Primary.
func (r *Registry) SetPrimary(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.backends[name]; !ok {
		return fmt.Errorf("speech: unknown backend %q", name)
	}
	r.primary = name
	return nil
}

// Get returns a synthesizer by name.
func (r *Registry) Get(name string) (Synthesizer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.backends[name]
	return s, ok
}

// Primary returns the primary synthesizer, or nil if none is registered.
func (r *Registry) Primary() Synthesizer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.backends[r.primary]
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
