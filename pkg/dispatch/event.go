package dispatch

import (
	"github.com/statekit/statekit/pkg/definition"
)

// payloadActorKey is the payload key an actor id is extracted from when the
// attempt itself carried none. The key is removed from the event payload.
const payloadActorKey = "actor_id"

// Event describes one committed transition. It is immutable once built and
// broadcast to every registered listener.
type Event struct {
	EntityType string
	EntityID   string
	Source     string
	Dest       string
	Trigger    string
	ActorID    string
	Payload    map[string]any
	Meta       definition.Meta
}

// newEvent builds the event for a committed transition. When actorID is
// empty and the payload carries an actor_id key, the id is lifted out of
// the payload; the payload is copied so the caller's map is never mutated.
func newEvent(e Entity, tr *definition.Transition, source, actorID string, payload map[string]any) Event {
	ev := Event{
		EntityType: e.EntityType(),
		EntityID:   e.ID(),
		Source:     source,
		Dest:       tr.Dest,
		Trigger:    tr.Trigger,
		ActorID:    actorID,
		Meta:       tr.Meta,
	}
	if payload != nil {
		cp := make(map[string]any, len(payload))
		for k, v := range payload {
			cp[k] = v
		}
		if ev.ActorID == "" {
			if id, ok := cp[payloadActorKey].(string); ok {
				ev.ActorID = id
				delete(cp, payloadActorKey)
			}
		}
		ev.Payload = cp
	}
	return ev
}

// TaskPayload is the serializable payload handed to the task-dispatch
// collaborator for background handlers.
type TaskPayload struct {
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Trigger    string         `json:"trigger"`
	ActorID    string         `json:"actor_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}
