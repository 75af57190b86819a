package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, Strategy: BackoffConstant})

	attempts := 0
	err := r.Execute(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetry_ReturnsLastError(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond})
	want := errors.New("still down")

	attempts := 0
	err := r.Execute(context.Background(), func(context.Context) error {
		attempts++
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected last error, got: %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestRetry_PermanentStopsImmediately(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond})
	notFound := errors.New("not found")

	attempts := 0
	err := r.Execute(context.Background(), func(context.Context) error {
		attempts++
		return Permanent(notFound)
	})
	if !errors.Is(err, notFound) || !IsPermanent(err) {
		t.Fatalf("expected permanent not found, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestRetry_ContextCancelledDuringBackoff(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 5, InitialDelay: time.Hour, Strategy: BackoffConstant})
	ctx, cancel := context.WithCancel(context.Background())

	err := r.Execute(ctx, func(context.Context) error {
		cancel()
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got: %v", err)
	}
}

func TestRetry_OnRetryCallback(t *testing.T) {
	var seen []int
	r := NewRetry(RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		OnRetry:      func(attempt int, _ error, _ time.Duration) { seen = append(seen, attempt) },
	})
	_ = r.Execute(context.Background(), func(context.Context) error { return errors.New("x") })

	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("expected OnRetry for attempts [1 2], got %v", seen)
	}
}

func TestRetry_Delay(t *testing.T) {
	tests := []struct {
		name     string
		cfg      RetryConfig
		attempt  int
		expected time.Duration
	}{
		{"exponential first", RetryConfig{InitialDelay: 100 * time.Millisecond}, 1, 100 * time.Millisecond},
		{"exponential third", RetryConfig{InitialDelay: 100 * time.Millisecond}, 3, 400 * time.Millisecond},
		{"linear", RetryConfig{InitialDelay: 100 * time.Millisecond, Strategy: BackoffLinear}, 3, 300 * time.Millisecond},
		{"constant", RetryConfig{InitialDelay: 50 * time.Millisecond, Strategy: BackoffConstant}, 4, 50 * time.Millisecond},
		{"capped", RetryConfig{InitialDelay: time.Second, MaxDelay: 2 * time.Second}, 10, 2 * time.Second},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := NewRetry(tc.cfg).Delay(tc.attempt); got != tc.expected {
				t.Errorf("Delay(%d) = %v, want %v", tc.attempt, got, tc.expected)
			}
		})
	}
}

func TestRetry_JitterBounds(t *testing.T) {
	r := NewRetry(RetryConfig{InitialDelay: 100 * time.Millisecond, Strategy: BackoffConstant, Jitter: true})
	for range 50 {
		d := r.Delay(1)
		if d < 100*time.Millisecond || d >= 125*time.Millisecond {
			t.Fatalf("jittered delay out of bounds: %v", d)
		}
	}
}

func TestRetry_Defaults(t *testing.T) {
	cfg := NewRetry(RetryConfig{}).Config()
	if cfg.MaxAttempts != 3 || cfg.InitialDelay != 100*time.Millisecond || cfg.MaxDelay != 10*time.Second || cfg.Multiplier != 2 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.RetryIf(context.Canceled) {
		t.Error("cancellation must not be retried")
	}
}
