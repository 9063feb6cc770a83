package guard

import "context"

// Group is a named permission set an actor belongs to.
type Group struct {
	Name        string
	Permissions []string
}

// HasPermission reports whether the group directly holds the permission.
func (grp *Group) HasPermission(perm string) bool {
	for _, p := range grp.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// Actor is the resolved identity of the party requesting a transition,
// with its group memberships and directly assigned permissions.
type Actor struct {
	ID          string
	Groups      []Group
	Permissions []string
}

// HasPermission reports whether the actor holds the permission directly or
// through any group membership.
func (a *Actor) HasPermission(perm string) bool {
	for _, p := range a.Permissions {
		if p == perm {
			return true
		}
	}
	for _, grp := range a.Groups {
		if grp.HasPermission(perm) {
			return true
		}
	}
	return false
}

// IdentitySource resolves actor records from the authorization store.
// Lookups are read-only; implementations must return ErrActorNotFound
// (wrapped or verbatim) when the id resolves to nothing, so the guard can
// apply its configured fail-open or fail-closed policy.
type IdentitySource interface {
	Actor(ctx context.Context, id string) (*Actor, error)
}
