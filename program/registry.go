package program

import (
	"fmt"
	"slices"
	"sync"

	"github.com/jina-lang/jinart/core"
)

// Factory builds a behavior from the args of a spawn instruction.
type Factory func(args map[string]any) (core.Behavior, error)

// Registry resolves behavior names used by spawn instructions.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry holding the built-in behaviors.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for name, f := range builtins() {
		r.MustRegister(name, f)
	}
	return r
}

// Register adds a factory under name.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" || f == nil {
		return fmt.Errorf("invalid behavior registration %q", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("behavior %q already registered", name)
	}
	r.factories[name] = f
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

// Build creates the behavior registered under name.
func (r *Registry) Build(name string, args map[string]any) (core.Behavior, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBehavior, name)
	}
	b, err := f(args)
	if err != nil {
		return nil, fmt.Errorf("behavior %q: %w", name, err)
	}
	return b, nil
}

// Names returns the registered behavior names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Resolve checks that every behavior the program spawns is registered.
func (r *Registry) Resolve(p *Program) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i, in := range p.Instructions {
		if in.Spawn == nil {
			continue
		}
		if _, ok := r.factories[in.Spawn.Behavior]; !ok {
			return fmt.Errorf("instruction %d: %w: %q", i, ErrUnknownBehavior, in.Spawn.Behavior)
		}
	}
	return nil
}
