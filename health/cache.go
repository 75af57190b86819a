package health

import (
	"context"
	"fmt"

	"github.com/jonwraymond/querycache/resilience"
	"github.com/jonwraymond/querycache/store"
)

// StoreCheckerConfig configures StoreChecker.
type StoreCheckerConfig struct {
	// DegradedRatio is the share of error entries that degrades the store.
	// Default: 0.25
	DegradedRatio float64

	// UnhealthyRatio is the share of error entries that fails the check.
	// Default: 0.75
	UnhealthyRatio float64

	// MinEntries is the entry count below which ratios are not judged.
	// Default: 4
	MinEntries int
}

// StoreChecker reports the share of entries whose last fetch failed.
type StoreChecker struct {
	store  *store.Store
	config StoreCheckerConfig
}

// NewStoreChecker creates a StoreChecker, applying defaults.
func NewStoreChecker(s *store.Store, config StoreCheckerConfig) *StoreChecker {
	if config.DegradedRatio <= 0 || config.DegradedRatio > 1 {
		config.DegradedRatio = 0.25
	}
	if config.UnhealthyRatio <= 0 || config.UnhealthyRatio > 1 {
		config.UnhealthyRatio = 0.75
	}
	if config.UnhealthyRatio < config.DegradedRatio {
		config.UnhealthyRatio = config.DegradedRatio
	}
	if config.MinEntries <= 0 {
		config.MinEntries = 4
	}
	return &StoreChecker{store: s, config: config}
}

func (c *StoreChecker) Name() string { return "store" }

func (c *StoreChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context canceled", err)
	}
	st := c.store.Stats()
	details := map[string]any{
		"entries":  st.Entries,
		"loading":  st.Loading,
		"errors":   st.Errors,
		"stale":    st.Stale,
		"observed": st.Observed,
	}
	if st.Entries < c.config.MinEntries {
		return Healthy(fmt.Sprintf("%d entries", st.Entries)).WithDetails(details)
	}

	ratio := float64(st.Errors) / float64(st.Entries)
	details["error_ratio"] = ratio
	msg := fmt.Sprintf("%d of %d entries failed their last fetch", st.Errors, st.Entries)
	switch {
	case ratio >= c.config.UnhealthyRatio:
		return Unhealthy(msg, ErrCheckFailed).WithDetails(details)
	case ratio >= c.config.DegradedRatio:
		return Degraded(msg).WithDetails(details)
	default:
		return Healthy(msg).WithDetails(details)
	}
}

// CircuitChecker reports the origin circuit breaker state. An open
// circuit is unhealthy, a half-open one degraded.
type CircuitChecker struct {
	name    string
	breaker *resilience.CircuitBreaker
}

// NewCircuitChecker creates a CircuitChecker named name.
func NewCircuitChecker(name string, breaker *resilience.CircuitBreaker) *CircuitChecker {
	if name == "" {
		name = "circuit"
	}
	return &CircuitChecker{name: name, breaker: breaker}
}

func (c *CircuitChecker) Name() string { return c.name }

func (c *CircuitChecker) Check(context.Context) Result {
	if c.breaker == nil {
		return Healthy("no circuit breaker configured")
	}
	m := c.breaker.Metrics()
	details := map[string]any{"state": m.State.String(), "failures": m.Failures}
	switch m.State {
	case resilience.StateOpen:
		return Unhealthy("origin circuit open", resilience.ErrCircuitOpen).WithDetails(details)
	case resilience.StateHalfOpen:
		return Degraded("origin circuit probing").WithDetails(details)
	default:
		return Healthy("origin circuit closed").WithDetails(details)
	}
}
