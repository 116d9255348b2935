// Package cache holds the per-domain caches behind the request path: keyed
// national bulk caches and a spatial point index, built in the background by
// a single-flight coordinator.
package cache

import (
	"sync"
	"time"
)

// Unit is one committed cache entry. Units are immutable once committed and
// replaced wholesale by the next build cycle.
type Unit struct {
	Key     string
	Payload any
	BuiltAt time.Time
}

// Store is the process-wide cache. It is read-mostly from the request path
// and written only by the build coordinator; commits are atomic from a
// reader's perspective.
type Store struct {
	mu      sync.RWMutex
	domains map[string]map[string]Unit
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{domains: make(map[string]map[string]Unit)}
}

// Commit writes one unit into the live cache. Readers see it immediately,
// including mid-build.
func (s *Store) Commit(domain, key string, payload any, builtAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.domains[domain]
	if !ok {
		d = make(map[string]Unit)
		s.domains[domain] = d
	}
	d[key] = Unit{Key: key, Payload: payload, BuiltAt: builtAt}
}

// Read returns the current unit for a key. It never blocks on an
// in-progress build; during rebuilds it returns the stale unit.
func (s *Store) Read(domain, key string) (Unit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.domains[domain][key]
	return u, ok
}

// Snapshot returns a copy of every unit in a domain.
func (s *Store) Snapshot(domain string) map[string]Unit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.domains[domain]
	out := make(map[string]Unit, len(src))
	for k, u := range src {
		out[k] = u
	}
	return out
}

// Count returns the number of committed units in a domain.
func (s *Store) Count(domain string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.domains[domain])
}
