package store

import (
	"errors"
	"time"
)

// Policy configures freshness and retention.
type Policy struct {
	// StaleTime is how long a successful value stays fresh. Zero keeps
	// values fresh until they are invalidated.
	StaleTime time.Duration `json:"staleTime"`

	// Retention is how long an entry with no observers survives after its
	// last update before GC evicts it. Zero disables eviction.
	Retention time.Duration `json:"retention"`
}

// DefaultPolicy returns the default policy.
// StaleTime: 0 (fresh until invalidated), Retention: 5 minutes.
func DefaultPolicy() Policy {
	return Policy{
		StaleTime: 0,
		Retention: 5 * time.Minute,
	}
}

// ErrInvalidPolicy is returned by Validate for negative durations.
var ErrInvalidPolicy = errors.New("store: policy durations must not be negative")

// Validate checks the policy.
func (p Policy) Validate() error {
	if p.StaleTime < 0 || p.Retention < 0 {
		return ErrInvalidPolicy
	}
	return nil
}

// expired reports whether an unobserved entry last touched at touched is
// past retention at now.
func (p Policy) expired(touched, now time.Time) bool {
	return p.Retention > 0 && now.Sub(touched) >= p.Retention
}
