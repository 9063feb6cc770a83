package guard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/statekit/statekit/pkg/definition"
)

// NamespacePrefix marks permission codenames that belong to the lifecycle
// authorization namespace. Groups holding no such permission are treated as
// unrestricted for self-transitions.
const NamespacePrefix = "state_machine_"

// Entity is the minimal view of an entity instance the guard needs.
type Entity interface {
	ID() string
	EntityType() string
	Variant() string
}

// GlobalPermission returns the codename of the variant-scoped permission
// that grants transitions over other principals: state_machine_{type}_{variant}.
func GlobalPermission(entityType, variant string) string {
	if variant == "" {
		variant = definition.DefaultVariant
	}
	return fmt.Sprintf("%s%s_%s", NamespacePrefix, entityType, variant)
}

// Guard decides whether an actor may execute a candidate transition.
//
// Two authorization paths coexist deliberately. Non-principal entities use
// the legacy permission-list check on the transition metadata; principal
// entities use the group-based global/self rule. The paths are not unified
// on purpose: their semantics differ and merging them silently would change
// behavior. See the package documentation.
type Guard struct {
	cfg    Config
	source IdentitySource
}

// New creates a guard backed by the given identity source. A nil source is
// allowed only when authorization is disabled.
func New(cfg Config, source IdentitySource) (*Guard, error) {
	if cfg.Enabled && source == nil {
		return nil, ErrSourceNil
	}
	if cfg.PrincipalType == "" {
		cfg.PrincipalType = "user"
	}
	return &Guard{cfg: cfg, source: source}, nil
}

// Check carries the per-invocation state of one engine call: the actor id,
// the bypass flag and the memoized identity lookup. The memoization keeps
// the guard to at most one identity lookup per engine invocation even when
// several candidate transitions are evaluated.
type Check struct {
	ActorID string
	Bypass  bool

	actor    *Actor
	resolved bool
}

// NewCheck creates the per-call check state for one engine invocation.
func NewCheck(actorID string, bypass bool) *Check {
	return &Check{ActorID: actorID, Bypass: bypass}
}

// Allowed reports whether the transition may proceed. The returned reason
// is a human-readable denial explanation, empty on allow. A non-nil error
// means the identity store failed and is distinct from a denial.
func (g *Guard) Allowed(ctx context.Context, tr *definition.Transition, e Entity, chk *Check) (bool, string, error) {
	if !g.cfg.Enabled || chk.Bypass {
		return true, "", nil
	}

	actor, err := g.resolveActor(ctx, chk)
	if err != nil {
		return false, "", err
	}
	if actor == nil {
		// Fail-open compatibility default: transitions without a
		// resolvable actor (system- or worker-originated) are allowed
		// unless fail-closed is configured.
		if g.cfg.FailClosed {
			return false, fmt.Sprintf("actor %q could not be resolved", chk.ActorID), nil
		}
		return true, "", nil
	}

	if e.EntityType() != g.cfg.PrincipalType {
		return g.allowedLegacy(tr, actor)
	}
	return g.allowedPrincipal(e, actor)
}

// allowedLegacy is the pre-group permission-list path, kept for
// non-principal entities. Flagged for eventual removal.
func (g *Guard) allowedLegacy(tr *definition.Transition, actor *Actor) (bool, string, error) {
	if len(tr.Meta.Permissions) == 0 {
		return true, "", nil
	}
	for _, p := range tr.Meta.Permissions {
		if actor.HasPermission(p) {
			return true, "", nil
		}
	}
	return false, fmt.Sprintf("actor %q holds none of the permissions required for %q", actor.ID, tr.Trigger), nil
}

// allowedPrincipal applies the group-based rule for principal entities.
// Acting on another principal requires a group holding the variant-scoped
// global permission. Acting on oneself requires membership in at least one
// group holding no lifecycle-namespaced permission at all; such groups are
// implicitly unrestricted. The exclusion form of the self rule is
// intentional and must not be rewritten as an allow-list.
func (g *Guard) allowedPrincipal(e Entity, actor *Actor) (bool, string, error) {
	if actor.ID != e.ID() {
		global := GlobalPermission(e.EntityType(), e.Variant())
		for _, grp := range actor.Groups {
			if grp.HasPermission(global) {
				return true, "", nil
			}
		}
		return false, fmt.Sprintf("actor %q belongs to no group holding %q", actor.ID, global), nil
	}

	for _, grp := range actor.Groups {
		if !grp.hasNamespacedPermission() {
			return true, "", nil
		}
	}
	return false, fmt.Sprintf("actor %q belongs to no unrestricted group", actor.ID), nil
}

func (g *Guard) resolveActor(ctx context.Context, chk *Check) (*Actor, error) {
	if chk.resolved {
		return chk.actor, nil
	}
	chk.resolved = true
	if chk.ActorID == "" {
		return nil, nil
	}
	actor, err := g.source.Actor(ctx, chk.ActorID)
	if errors.Is(err, ErrActorNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("guard: resolve actor %q: %w", chk.ActorID, err)
	}
	chk.actor = actor
	return actor, nil
}

func (grp *Group) hasNamespacedPermission() bool {
	for _, p := range grp.Permissions {
		if strings.Contains(p, NamespacePrefix) {
			return true
		}
	}
	return false
}
