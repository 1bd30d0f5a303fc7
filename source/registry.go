package source

import (
	"fmt"
	"sort"
	"sync"

	"github.com/c360/sourceregistry/errors"
)

// Registry manages registered media content sources. It provides
// thread-safe registration, lookup and removal, and point-in-time
// snapshots for safe traversal while the registry is being mutated.
//
// All traversal that may trigger callbacks capable of mutating the
// registry must go through Snapshot, never over the live map.
type Registry struct {
	sources map[string]*Source
	mu      sync.RWMutex
}

// NewRegistry creates a new empty source registry
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]*Source),
	}
}

// Register adds a source to the registry.
// Returns an error if a source with the same ID is already registered.
func (r *Registry) Register(s *Source) error {
	if s == nil {
		return errors.WrapInvalid(errors.ErrInvalidSource, "Registry", "Register", "source validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[s.id]; exists {
		msg := fmt.Errorf("%w: %q", errors.ErrDuplicateSource, s.id)
		return errors.WrapInvalid(msg, "Registry", "Register", "duplicate source check")
	}

	r.sources[s.id] = s
	return nil
}

// Unregister removes a source from the registry and returns it.
// It is safe to call from within a subscriber callback while a
// notification cycle is in progress: it only affects the live registry,
// never a snapshot already taken.
func (r *Registry) Unregister(id string) (*Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, exists := r.sources[id]
	if !exists {
		msg := fmt.Errorf("%w: %q", errors.ErrSourceNotFound, id)
		return nil, errors.WrapInvalid(msg, "Registry", "Unregister", "source lookup")
	}

	delete(r.sources, id)
	return s, nil
}

// Lookup retrieves a source by ID
func (r *Registry) Lookup(id string) (*Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, exists := r.sources[id]
	if !exists {
		msg := fmt.Errorf("%w: %q", errors.ErrSourceNotFound, id)
		return nil, errors.WrapInvalid(msg, "Registry", "Lookup", "source lookup")
	}
	return s, nil
}

// Snapshot returns a point-in-time copy of the registered sources,
// sorted by ID for deterministic traversal order. The returned slice is
// decoupled from the registry: subsequent Register/Unregister calls do
// not alter it, so it can be traversed safely while callbacks mutate
// the live registry.
func (r *Registry) Snapshot() []*Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make([]*Source, 0, len(r.sources))
	for _, s := range r.sources {
		snapshot = append(snapshot, s)
	}
	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].id < snapshot[j].id
	})
	return snapshot
}

// IDs returns the IDs of all registered sources, sorted
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.sources))
	for id := range r.sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered sources
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sources)
}

// VisibleCount returns the number of registered sources currently visible
func (r *Registry) VisibleCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, s := range r.sources {
		if s.Visible() {
			count++
		}
	}
	return count
}
