package core

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
)

// registry maps actor IDs and names to live actors.
type registry struct {
	mu sync.RWMutex

	// Map of Actor ID to Actor instance
	actors map[ActorID]*actor

	// Maps actor name to Actor ID
	names map[string]ActorID

	// Counter for generating unique Actor IDs
	idCounter atomic.Uint32
}

func newRegistry() *registry {
	return &registry{
		actors: make(map[ActorID]*actor),
		names:  make(map[string]ActorID),
	}
}

// nextID generates the next available Actor ID. IDs are never reused.
func (r *registry) nextID() ActorID {
	return ActorID(r.idCounter.Add(1))
}

// register adds an actor to the table.
func (r *registry) register(a *actor) error {
	if a == nil {
		return fmt.Errorf("cannot register nil actor")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.actors[a.id]; exists {
		return fmt.Errorf("actor with ID %d already registered", a.id)
	}
	if a.name != "" {
		if _, exists := r.names[a.name]; exists {
			return fmt.Errorf("%w: %q", ErrNameTaken, a.name)
		}
		r.names[a.name] = a.id
	}
	r.actors[a.id] = a
	return nil
}

// unregister removes an actor from the table.
func (r *registry) unregister(id ActorID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, exists := r.actors[id]
	if !exists {
		return fmt.Errorf("%w: %d", ErrActorNotFound, id)
	}
	delete(r.actors, id)
	if a.name != "" && r.names[a.name] == id {
		delete(r.names, a.name)
	}
	return nil
}

// lookup finds an actor by its ID.
func (r *registry) lookup(id ActorID) (*actor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, exists := r.actors[id]
	return a, exists
}

// lookupName finds an actor by its name.
func (r *registry) lookupName(name string) (*actor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.names[name]
	if !exists {
		return nil, false
	}
	a, exists := r.actors[id]
	return a, exists
}

// list returns the registered actors ordered by ID.
func (r *registry) list() []*actor {
	r.mu.RLock()
	out := make([]*actor, 0, len(r.actors))
	for _, a := range r.actors {
		out = append(out, a)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b *actor) int {
		return int(a.id) - int(b.id)
	})
	return out
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actors)
}
