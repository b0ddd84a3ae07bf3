package activities

import (
	"errors"
	"fmt"
)

// ErrModuleNotFound is returned when no module is registered for a kind.
var ErrModuleNotFound = errors.New("activity module not found")

// Registry maps activity kinds to their modules. It is built once at
// startup and read-only afterwards, so lookups need no locking.
type Registry struct {
	modules map[string]Module
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]Module)}
}

// NewDefaultRegistry registers the full sealed module set.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewParaglidingModule())
	r.Register(NewSurfingModule())
	r.Register(NewDivingModule())
	return r
}

// Register adds a module. A duplicate kind is a configuration error and
// panics at startup rather than surfacing at request time.
func (r *Registry) Register(m Module) {
	if m == nil {
		panic("activities: nil module")
	}
	kind := m.Kind()
	if kind == "" {
		panic("activities: module with empty kind")
	}
	if _, exists := r.modules[kind]; exists {
		panic(fmt.Sprintf("activities: duplicate module for kind %q", kind))
	}
	r.modules[kind] = m
}

// Resolve returns the module for a kind.
func (r *Registry) Resolve(kind string) (Module, error) {
	m, ok := r.modules[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrModuleNotFound, kind)
	}
	return m, nil
}

// Kinds lists the registered kinds. Order is not significant.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.modules))
	for k := range r.modules {
		kinds = append(kinds, k)
	}
	return kinds
}
