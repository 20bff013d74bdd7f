package cart

import (
	"context"
	"sync"
	"time"
)

// Registry maps session identifiers to their cart stores. Carts are
// in-memory only and expire after TTL of inactivity.
type Registry struct {
	TTL time.Duration
	Now func() time.Time

	mu      sync.Mutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	store    *Store
	lastSeen time.Time
}

// NewRegistry constructs a registry with the provided idle TTL.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{TTL: ttl, entries: make(map[string]*registryEntry)}
}

func (r *Registry) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Registry) ttl() time.Duration {
	if r.TTL <= 0 {
		return 72 * time.Hour
	}
	return r.TTL
}

// Get returns the cart store for the session, creating one when absent.
// Access refreshes the idle deadline.
func (r *Registry) Get(sessionID string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[sessionID]
	if !ok {
		entry = &registryEntry{store: NewStore()}
		r.entries[sessionID] = entry
	}
	entry.lastSeen = r.now()
	return entry.store
}

// Peek returns the store without creating or touching it.
func (r *Registry) Peek(sessionID string) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[sessionID]
	if !ok {
		return nil, false
	}
	return entry.store, true
}

// Drop removes the session's cart immediately.
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	delete(r.entries, sessionID)
	r.mu.Unlock()
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep removes sessions idle longer than TTL and reports how many were
// evicted.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.ttl())
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for id, entry := range r.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(r.entries, id)
			evicted++
		}
	}
	return evicted
}

// StartJanitor runs Sweep on the provided interval until ctx is done.
func (r *Registry) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Sweep()
			}
		}
	}()
}
