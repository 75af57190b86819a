package registry

import (
	"errors"
	"fmt"
)

// Sentinel errors for key construction through declarations.
var (
	// ErrParentMismatch is returned when a parent key was not produced by the
	// declaration's parent filter.
	ErrParentMismatch = errors.New("registry: parent key does not match declared parent")

	// ErrInvalidDeclaration is returned when building keys from a declaration
	// that failed validation.
	ErrInvalidDeclaration = errors.New("registry: invalid declaration")
)

// ConfigurationError reports a conflicting or malformed declaration. It is
// detected at bind time and is never recoverable.
type ConfigurationError struct {
	Entity string
	Name   string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("registry: entity %q: %s", e.Entity, e.Reason)
	}
	return fmt.Sprintf("registry: entity %q, %q: %s", e.Entity, e.Name, e.Reason)
}
