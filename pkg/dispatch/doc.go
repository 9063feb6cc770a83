// Package dispatch runs the side effects of a committed lifecycle
// transition in a fixed order:
//
//  1. the synchronous action for the trigger, inline on the caller's
//     goroutine; its error fails the whole trigger call;
//  2. the background action, handed to the task-dispatch collaborator as a
//     serializable TaskPayload; enqueue failures are reported but do not
//     undo the transition;
//  3. the transition event, broadcast to every registered listener in
//     registration order; listener failures are isolated per listener and
//     aggregated after all have run.
//
// Action handlers are bound explicitly through a Registry keyed by
// (entityType, variant), populated at process start. The registry replaces
// the convention-based module discovery of earlier systems: what is not
// registered does not run.
package dispatch
