package transport

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonwraymond/querycache/resilience"
)

var (
	// ErrInvalidBaseURL is returned by New for a base URL that is not
	// absolute.
	ErrInvalidBaseURL = errors.New("transport: base URL must be absolute")

	// ErrEmptySigningKey is returned by NewTokenSigner without a key.
	ErrEmptySigningKey = errors.New("transport: signing key is empty")
)

// StatusError is a non-2xx origin response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string // truncated response body
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transport: %s %s: %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	switch {
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

// classify marks errors that retrying cannot fix as permanent.
func classify(err *StatusError) error {
	if err.Temporary() {
		return err
	}
	return resilience.Permanent(err)
}
