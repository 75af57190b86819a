package mutation

import (
	"errors"
	"fmt"
)

var (
	// ErrNilCommit is returned when Commit is called without a commit function.
	ErrNilCommit = errors.New("mutation: nil commit function")

	// ErrNilStore is returned by New when no store is supplied.
	ErrNilStore = errors.New("mutation: nil store")
)

// MutationError is an origin-write failure. No cache effect was applied.
type MutationError struct {
	Name string
	Err  error
}

func (e *MutationError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("mutation: %v", e.Err)
	}
	return fmt.Sprintf("mutation %s: %v", e.Name, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }
