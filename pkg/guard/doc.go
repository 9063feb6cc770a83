// Package guard decides whether an actor may execute a lifecycle
// transition, based on group and permission lookups against an
// authorization store.
//
// Two authorization paths coexist:
//
//   - Non-principal entities (tasks, clients, ...) use the legacy path: a
//     transition with no declared permissions is open to everyone; a
//     transition with declared permissions requires the actor to hold any
//     one of them, directly or through a group.
//
//   - The principal entity type (user-like) uses the group-based path. An
//     actor acting on a different principal needs a group holding the
//     variant-scoped global permission (state_machine_{type}_{variant}).
//     An actor acting on itself needs at least one group holding no
//     permission in the state_machine_ namespace at all; groups outside
//     the namespace are implicitly unrestricted for self-transitions.
//
// The two paths are intentionally not unified. Their semantics differ and
// reconciling them is a product decision, not a refactor.
//
// Actor resolution fails open: a transition whose actor id resolves to no
// record is allowed, so that automated and system-originated transitions
// are never blocked by a missing session. Set Config.FailClosed to reverse
// this once every automated caller carries a real identity.
//
// One identity lookup is performed per engine invocation and memoized in
// the Check value, no matter how many candidate transitions are evaluated.
package guard
