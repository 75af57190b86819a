package query

import (
	"errors"
	"fmt"

	"github.com/jonwraymond/querycache/key"
)

var (
	// ErrNilFetch is returned when a request carries no fetch function.
	ErrNilFetch = errors.New("query: nil fetch function")

	// ErrZeroKey is returned when a request carries the zero key.
	ErrZeroKey = errors.New("query: zero key")

	// ErrNilStore is returned by New when no store is supplied.
	ErrNilStore = errors.New("query: nil store")
)

// FetchError is a transport failure for one key. It is stored on the
// entry and returned to every caller waiting on the fetch.
type FetchError struct {
	Key key.Key
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("query: fetch %s: %v", e.Key, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

type panicError struct {
	value any
}

func (e panicError) Error() string {
	return fmt.Sprintf("fetch panicked: %v", e.value)
}
