package engine

import (
	"errors"
	"fmt"
)

// NoMatchingTransitionError reports that the trigger has no transition
// reachable from the entity's current state. This is an expected
// business-flow condition, not a configuration error, and must never be
// logged as one.
type NoMatchingTransitionError struct {
	EntityType string
	State      string
	Trigger    string
}

func (e *NoMatchingTransitionError) Error() string {
	return fmt.Sprintf("engine: no transition %q from state %q of %s", e.Trigger, e.State, e.EntityType)
}

// TransitionRejectedError reports that a guard vetoed an otherwise valid
// transition. The entity state is untouched. Reason is human-readable;
// PermissionDenied distinguishes the implicit permission guard from
// declared conditions so transports can map denials to a 403.
type TransitionRejectedError struct {
	Trigger          string
	Reason           string
	PermissionDenied bool
}

func (e *TransitionRejectedError) Error() string {
	return fmt.Sprintf("engine: transition %q rejected: %s", e.Trigger, e.Reason)
}

// UnknownConditionError reports a declared guard condition with no
// registered implementation. Unlike a rejection, this is a wiring error:
// the definition references a condition nobody registered.
type UnknownConditionError struct {
	EntityType string
	Trigger    string
	Condition  string
}

func (e *UnknownConditionError) Error() string {
	return fmt.Sprintf("engine: transition %q of %s references unregistered condition %q", e.Trigger, e.EntityType, e.Condition)
}

// IsNoMatchingTransitionError reports whether err means the trigger is not
// valid from the current state.
func IsNoMatchingTransitionError(err error) bool {
	var e *NoMatchingTransitionError
	return errors.As(err, &e)
}

// IsTransitionRejectedError reports whether err is a guard rejection.
func IsTransitionRejectedError(err error) bool {
	var e *TransitionRejectedError
	return errors.As(err, &e)
}
