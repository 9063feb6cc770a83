// Package engine is the finite-state-machine core of statekit: it resolves
// the declarative lifecycle definition for an entity, matches the
// requested trigger against the current state, evaluates guards and, on
// success, applies the state change and runs the post-transition protocol.
//
// A trigger call works against the caller's entity instance directly;
// there is no long-lived machine object per entity. The engine mutates the
// instance in memory only; persisting the new state is the caller's step,
// taken after Trigger returns successfully:
//
//	res, err := eng.Trigger(ctx, task, "submit", engine.Attempt{ActorID: actorID})
//	switch {
//	case err == nil || dispatch.IsListenerError(err):
//	    _ = repo.Save(ctx, task) // transition applied
//	case engine.IsNoMatchingTransitionError(err), engine.IsTransitionRejectedError(err):
//	    // expected business-flow denial, state untouched
//	default:
//	    // configuration failure or synchronous action failure: do not persist
//	}
//
// Guard conditions referenced by name in definition documents are bound at
// process start with RegisterCondition; the permission guard is always
// evaluated last, after every declared condition.
package engine
