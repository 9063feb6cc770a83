package guard

import (
	"context"
	"sync"
)

// MemorySource is an in-memory IdentitySource for tests and local
// development. Safe for concurrent use.
type MemorySource struct {
	mu     sync.RWMutex
	actors map[string]Actor
}

// NewMemorySource creates an empty in-memory identity source.
func NewMemorySource() *MemorySource {
	return &MemorySource{actors: make(map[string]Actor)}
}

// Put stores or replaces an actor record.
func (s *MemorySource) Put(a Actor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actors[a.ID] = a
}

func (s *MemorySource) Actor(ctx context.Context, id string) (*Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.actors[id]
	if !ok {
		return nil, ErrActorNotFound
	}
	// Copy to keep the stored record immutable from the caller's side.
	cp := a
	cp.Groups = append([]Group(nil), a.Groups...)
	cp.Permissions = append([]string(nil), a.Permissions...)
	return &cp, nil
}
