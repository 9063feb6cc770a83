package dispatch

import (
	"errors"
	"fmt"
)

// ActionError wraps a synchronous handler failure. The in-memory state
// change has already been applied when it is raised; the trigger call
// reports failure and the caller must not persist the entity.
type ActionError struct {
	Trigger string
	Err     error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("dispatch: synchronous action for %q failed: %v", e.Trigger, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// EnqueueError wraps a background-handler scheduling failure. The
// transition itself is still successful; the failure is reported so the
// caller can alert on lost background work.
type EnqueueError struct {
	Trigger string
	Err     error
}

func (e *EnqueueError) Error() string {
	return fmt.Sprintf("dispatch: enqueue background action for %q failed: %v", e.Trigger, e.Err)
}

func (e *EnqueueError) Unwrap() error { return e.Err }

// ListenerError aggregates listener failures from one broadcast. Every
// listener has run by the time it is returned; the transition is applied
// and persistable.
type ListenerError struct {
	Trigger string
	Errs    []error
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("dispatch: %d listener(s) failed for %q: %v", len(e.Errs), e.Trigger, errors.Join(e.Errs...))
}

func (e *ListenerError) Unwrap() error { return errors.Join(e.Errs...) }

// IsActionError reports whether err is a synchronous handler failure.
func IsActionError(err error) bool {
	var e *ActionError
	return errors.As(err, &e)
}

// IsListenerError reports whether err is an aggregated listener failure,
// meaning the transition itself was applied.
func IsListenerError(err error) bool {
	var e *ListenerError
	return errors.As(err, &e)
}
