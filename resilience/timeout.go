package resilience

import (
	"context"
	"errors"
	"time"
)

// Timeout bounds one operation attempt.
type Timeout struct {
	d time.Duration
}

// NewTimeout creates a timeout wrapper. Non-positive durations default to
// 30 seconds.
func NewTimeout(d time.Duration) *Timeout {
	if d <= 0 {
		d = 30 * time.Second
	}
	return &Timeout{d: d}
}

// Execute runs op with a derived deadline. A deadline hit by this wrapper
// is reported as ErrTimeout; a deadline inherited from ctx is returned as is.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	tctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()

	err := op(tctx)
	if err != nil && errors.Is(tctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return errors.Join(ErrTimeout, err)
	}
	return err
}

// Duration returns the configured timeout.
func (t *Timeout) Duration() time.Duration {
	return t.d
}
