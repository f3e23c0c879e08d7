package app

import (
	"sort"
	"sync"

	"github.com/neomorfeo/provisr/internal/domain"
)

// ListenerRegistry holds the ordered set of lifecycle listeners. Listeners
// are kept sorted by ascending priority; the slice is re-sorted on every
// registration change, never during fan-out. Safe for concurrent use.
type ListenerRegistry struct {
	mu        sync.RWMutex
	listeners []domain.LifecycleListener
}

// NewListenerRegistry creates an empty registry.
func NewListenerRegistry(listeners ...domain.LifecycleListener) *ListenerRegistry {
	r := &ListenerRegistry{}
	for _, l := range listeners {
		r.Register(l)
	}
	return r
}

// Register adds a listener and re-sorts by priority.
func (r *ListenerRegistry) Register(l domain.LifecycleListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
	sort.SliceStable(r.listeners, func(i, j int) bool {
		return r.listeners[i].Priority() < r.listeners[j].Priority()
	})
}

// Unregister removes a previously registered listener.
func (r *ListenerRegistry) Unregister(l domain.LifecycleListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, reg := range r.listeners {
		if reg == l {
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			return
		}
	}
}

// Snapshot returns the listeners in priority order. The returned slice is a
// copy; fan-out never holds the registry lock.
func (r *ListenerRegistry) Snapshot() []domain.LifecycleListener {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.LifecycleListener, len(r.listeners))
	copy(out, r.listeners)
	return out
}
