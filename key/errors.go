package key

import "errors"

// Sentinel errors for key construction.
var (
	// ErrEmptyParent is returned when Extend is given a zero parent key.
	ErrEmptyParent = errors.New("key: parent key is empty")

	// ErrEmptyLevel is returned when a level declares no fields.
	ErrEmptyLevel = errors.New("key: level declares no fields")

	// ErrMissingField is returned when a declared variable has no value.
	ErrMissingField = errors.New("key: missing declared field")

	// ErrUndeclaredField is returned when values carry a name the level does not declare.
	ErrUndeclaredField = errors.New("key: undeclared field")

	// ErrDuplicateField is returned when a field name appears twice in a key.
	ErrDuplicateField = errors.New("key: duplicate field")

	// ErrUnsupportedValue is returned for values that have no canonical form.
	ErrUnsupportedValue = errors.New("key: unsupported field value")

	// ErrEmptyEntity is returned when Root is given an empty entity name.
	ErrEmptyEntity = errors.New("key: entity name is empty")
)
