// Package vars is the variable-store collaborator: it supplies variable
// snapshots to jobs and persists the mutation deltas scripts hand back.
package vars

import "sync"

// Store is a concurrency-safe string key-value scope (one per variable
// namespace the host persists: environment and globals).
type Store struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{values: make(map[string]string)}
}

// Seed replaces the store contents.
func (s *Store) Seed(values map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]string, len(values))
	for k, v := range values {
		s.values[k] = v
	}
}

// Get returns the value for key.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores one value.
func (s *Store) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Snapshot returns a copy of the current values for handing to a job.
func (s *Store) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Apply persists a mutation delta from a script result. An empty-string
// value is the deletion sentinel.
func (s *Store) Apply(updates map[string]string) {
	if len(updates) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range updates {
		if v == "" {
			delete(s.values, k)
			continue
		}
		s.values[k] = v
	}
}

// Len returns the number of stored variables.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}
