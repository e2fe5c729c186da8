// Package industry defines the pluggable Module contract that business-
// model dynamics implement, and a name-keyed Registry for looking a Module
// up by industry name. The engine receives its Module as a constructor
// argument and does not consult a Registry itself.
package industry

import (
	"fmt"
	"sync"

	"github.com/chronicle-sim/core/companystate"
	"github.com/chronicle-sim/core/rng"
)

// Overrides is the partial state update a Module hands back for the
// engine to apply via companystate.CompanyState.Clone.
type Overrides = companystate.Overrides

// Module is the pure-function contract a business-model implementation
// satisfies. UpdateState must not mutate state, must not consult any
// randomness outside the supplied source, and must not perform I/O:
// everything it needs arrives through its arguments.
type Module interface {
	Name() string
	UpdateState(state companystate.CompanyState, daysElapsed float64, params map[string]any, source *rng.Source) (Overrides, error)
}

// Registry maps a blueprint's industry name to the Module that implements
// it. The core never imports a specific industry package directly; it
// only depends on this interface, so new industries can be added without
// touching the engine.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]Module
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]Module)}
}

// Register adds or replaces the Module for a given name.
func (r *Registry) Register(m Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[m.Name()] = m
}

// Get resolves a previously registered Module by name.
func (r *Registry) Get(name string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[name]
	return m, ok
}

// MustGet resolves name or returns a descriptive error instead of panicking
// or reporting a bare boolean.
func (r *Registry) MustGet(name string) (Module, error) {
	m, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("industry: no module registered for %q", name)
	}
	return m, nil
}
