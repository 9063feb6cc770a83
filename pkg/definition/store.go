package definition

import (
	"errors"
	"sync"
)

// Store memoizes resolved definitions for the process lifetime. Resolution
// falls back to the default variant when the requested variant has no
// resource. There is no hot reload; a changed definition requires a process
// restart.
//
// Concurrent first-time resolution of the same pair converges on a single
// cached instance via a per-key once, so the shared definition keeps a
// singular identity.
type Store struct {
	loader Loader

	mu      sync.Mutex
	entries map[storeKey]*storeEntry
}

type storeKey struct{ entityType, variant string }

type storeEntry struct {
	once sync.Once
	def  *Definition
	err  error
}

// NewStore creates a store backed by the given loader.
func NewStore(loader Loader) *Store {
	return &Store{
		loader:  loader,
		entries: make(map[storeKey]*storeEntry),
	}
}

// Resolve returns the definition for (entityType, variant), loading it on
// first access. An empty variant resolves as the default variant. Load
// errors are cached alongside successes: a misconfigured definition fails
// identically on every call rather than retrying the parse.
func (s *Store) Resolve(entityType, variant string) (*Definition, error) {
	if variant == "" {
		variant = DefaultVariant
	}
	key := storeKey{entityType, variant}

	s.mu.Lock()
	entry, ok := s.entries[key]
	if !ok {
		entry = &storeEntry{}
		s.entries[key] = entry
	}
	s.mu.Unlock()

	entry.once.Do(func() {
		entry.def, entry.err = s.load(entityType, variant)
	})
	return entry.def, entry.err
}

func (s *Store) load(entityType, variant string) (*Definition, error) {
	def, err := s.loader.Load(entityType, variant)
	if err == nil || variant == DefaultVariant {
		return def, err
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	def, derr := s.loader.Load(entityType, DefaultVariant)
	if derr == nil {
		return def, nil
	}
	if errors.Is(derr, ErrNotFound) {
		return nil, &NotFoundError{EntityType: entityType, Variant: variant}
	}
	return nil, derr
}
