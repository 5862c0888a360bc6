package device

import "sync"

// Registry holds at most one callback per identifier.
type Registry[F any] struct {
	mu  sync.RWMutex
	cbs map[int]F
}

// NewRegistry returns an empty registry.
func NewRegistry[F any]() *Registry[F] {
	return &Registry[F]{cbs: make(map[int]F)}
}

// Set registers cb for id, superseding any earlier registration.
func (r *Registry[F]) Set(id int, cb F) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cbs[id] = cb
}

// Remove drops the registration for id.
func (r *Registry[F]) Remove(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cbs, id)
}

// Get returns the callback registered for id.
func (r *Registry[F]) Get(id int) (F, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cb, ok := r.cbs[id]
	return cb, ok
}

// Reset drops every registration.
func (r *Registry[F]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cbs = make(map[int]F)
}

func (r *Registry[F]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cbs)
}
