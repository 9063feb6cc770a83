package queue

import (
	"context"
	"fmt"

	"github.com/statekit/statekit/pkg/dispatch"
)

// EntityLoader loads and persists entities on the worker side of a
// background transition action. The loader returns the entity in its
// persisted state, which by the time the task runs is the transition
// destination (or later, if further transitions happened in between).
type EntityLoader interface {
	Get(ctx context.Context, entityType, id string) (dispatch.Entity, error)
	Save(ctx context.Context, e dispatch.Entity) error
}

// NewTransitionTaskHandler adapts the background actions registered in the
// dispatch registry into a queue handler. The handler name matches the
// task name the dispatcher enqueues, so wiring is:
//
//	worker.RegisterHandler(queue.NewTransitionTaskHandler(loader, registry))
//
// A task whose trigger has no registered background action completes as a
// no-op: handler sets may change between enqueue and processing across a
// deployment, and that is not the task's fault.
func NewTransitionTaskHandler(loader EntityLoader, registry *dispatch.Registry) Handler {
	return NewTaskHandler(func(ctx context.Context, p dispatch.TaskPayload) error {
		ent, err := loader.Get(ctx, p.EntityType, p.EntityID)
		if err != nil {
			return fmt.Errorf("load %s %q: %w", p.EntityType, p.EntityID, err)
		}

		set, _ := registry.ActionSet(ent.EntityType(), ent.Variant())
		action := set.Background[p.Trigger]
		if action == nil {
			return nil
		}

		ev := dispatch.Event{
			EntityType: p.EntityType,
			EntityID:   p.EntityID,
			Dest:       ent.State(),
			Trigger:    p.Trigger,
			ActorID:    p.ActorID,
			Payload:    p.Payload,
		}
		if err := action(ctx, ent, ev); err != nil {
			return fmt.Errorf("background action for %q: %w", p.Trigger, err)
		}

		return loader.Save(ctx, ent)
	})
}
