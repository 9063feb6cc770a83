package engine

// Entity is the adapter contract a business entity satisfies to
// participate in lifecycle transitions. The engine owns the in-memory
// state change only; persistence stays with the caller, which invokes its
// own save after a successful trigger.
type Entity interface {
	// ID identifies the instance within its entity type.
	ID() string
	// EntityType names the entity type, matching the definition layout.
	EntityType() string
	// Variant returns the workflow-variant discriminator. An empty string
	// selects the default variant.
	Variant() string
	// State returns the current lifecycle state.
	State() string
	// SetState applies a new lifecycle state. Only the engine calls this,
	// and only with a destination declared in the resolved definition.
	SetState(state string)
}

// LastTransitionRecorder is implemented by entity types that keep an audit
// field of the last trigger applied. Trailing underscores (the convention
// for trigger names that clash with reserved words) are stripped before
// recording.
type LastTransitionRecorder interface {
	RecordLastTransition(trigger string)
}
