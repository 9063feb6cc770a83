package definition

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when neither the requested variant nor the
	// default variant has a loadable definition resource. This signals a
	// deployment gap, not a business-flow condition.
	ErrNotFound = errors.New("definition: not found")

	// ErrInvalid wraps structural errors in a definition document. Always
	// raised at load time, never during a transition.
	ErrInvalid = errors.New("definition: invalid")
)

// InvalidError describes a structural problem in a loaded definition.
type InvalidError struct {
	EntityType string
	Variant    string
	Detail     string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("definition: invalid %s/%s: %s", e.EntityType, e.Variant, e.Detail)
}

func (e *InvalidError) Unwrap() error { return ErrInvalid }

// NotFoundError reports that no definition resource could be resolved for
// an entity type, neither for the requested variant nor the default.
type NotFoundError struct {
	EntityType string
	Variant    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("definition: no resource for %s/%s or %s/%s", e.EntityType, e.Variant, e.EntityType, DefaultVariant)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func invalidf(d *Definition, format string, args ...any) error {
	return &InvalidError{EntityType: d.EntityType, Variant: d.Variant, Detail: fmt.Sprintf(format, args...)}
}

// IsNotFoundError reports whether err is a definition resolution failure.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidError reports whether err is a structural definition error.
func IsInvalidError(err error) bool {
	return errors.Is(err, ErrInvalid)
}
