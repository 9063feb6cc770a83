package guard

import "errors"

var (
	// ErrActorNotFound is returned by identity sources when no actor
	// record exists for the requested id.
	ErrActorNotFound = errors.New("guard: actor not found")

	// ErrSourceNil is returned when a guard is created with authorization
	// enabled but no identity source.
	ErrSourceNil = errors.New("guard: identity source cannot be nil when authorization is enabled")
)
