package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/statekit/statekit/pkg/definition"
)

// Entity is the view of an entity instance action handlers receive.
type Entity interface {
	ID() string
	EntityType() string
	Variant() string
	State() string
}

// SyncAction runs inline immediately after a transition commits, on the
// caller's goroutine. A non-nil error fails the whole trigger call; the
// caller must not persist the entity on that path.
type SyncAction func(ctx context.Context, e Entity, ev Event) error

// BackgroundAction runs out-of-band on a queue worker after the transition
// has been persisted. Delivery is at-least-once and unordered relative to
// other background actions on the same entity.
type BackgroundAction func(ctx context.Context, e Entity, ev Event) error

// ActionSet holds the side-effect handlers of one (entityType, variant)
// pair, keyed by trigger name. Both maps are optional.
type ActionSet struct {
	Sync       map[string]SyncAction
	Background map[string]BackgroundAction
}

// Registry maps (entityType, variant) pairs to their action sets. It is
// populated with explicit Register calls at process start; there is no
// filesystem or reflection-based handler discovery. Lookups fall back to
// the default variant the same way definition resolution does.
type Registry struct {
	mu   sync.RWMutex
	sets map[registryKey]ActionSet
}

type registryKey struct{ entityType, variant string }

// NewRegistry creates an empty action-set registry.
func NewRegistry() *Registry {
	return &Registry{sets: make(map[registryKey]ActionSet)}
}

// Register binds an action set to an (entityType, variant) pair. An empty
// variant registers the default variant. Registering a pair twice is a
// wiring error.
func (r *Registry) Register(entityType, variant string, set ActionSet) error {
	if variant == "" {
		variant = definition.DefaultVariant
	}
	key := registryKey{entityType, variant}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sets[key]; exists {
		return fmt.Errorf("dispatch: action set for %s/%s already registered", entityType, variant)
	}
	r.sets[key] = set
	return nil
}

// ActionSet returns the set for the pair, falling back to the default
// variant. The second return is false when neither is registered; handlers
// are optional, so that is not an error.
func (r *Registry) ActionSet(entityType, variant string) (ActionSet, bool) {
	if variant == "" {
		variant = definition.DefaultVariant
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if set, ok := r.sets[registryKey{entityType, variant}]; ok {
		return set, true
	}
	if variant != definition.DefaultVariant {
		if set, ok := r.sets[registryKey{entityType, definition.DefaultVariant}]; ok {
			return set, true
		}
	}
	return ActionSet{}, false
}
