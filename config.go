package querycache

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/querycache/observe"
	"github.com/jonwraymond/querycache/resilience"
	"github.com/jonwraymond/querycache/store"
)

// Config holds all configuration for a Client built by NewFromConfig.
type Config struct {
	Observe observe.Config `json:"observe"`
	Store   store.Policy   `json:"store"`

	// GCInterval is how often StartGC sweeps the store. Zero disables
	// background collection.
	GCInterval time.Duration `json:"gcInterval"`

	// PrefetchLimit bounds concurrent fetches started by Prefetch.
	PrefetchLimit int `json:"prefetchLimit"`

	Fetch    PolicyConfig `json:"fetch"`
	Mutation PolicyConfig `json:"mutation"`
}

// PolicyConfig selects the resilience policies around origin calls.
// Nil sections are disabled.
type PolicyConfig struct {
	// Timeout bounds each attempt. Zero disables the timeout.
	Timeout time.Duration `json:"timeout"`

	Retry          *resilience.RetryConfig          `json:"retry,omitempty"`
	CircuitBreaker *resilience.CircuitBreakerConfig `json:"circuitBreaker,omitempty"`
	Bulkhead       *resilience.BulkheadConfig       `json:"bulkhead,omitempty"`
}

// Configuration errors.
var (
	ErrInvalidGCInterval    = errors.New("querycache: gc interval must not be negative")
	ErrInvalidPrefetchLimit = errors.New("querycache: prefetch limit must not be negative")
	ErrInvalidTimeout       = errors.New("querycache: timeout must not be negative")
	ErrMutationRetry        = errors.New("querycache: mutation retry requires an idempotent origin; set Retry.RetryIf")
)

// DefaultConfig returns a configuration with logging at info level,
// tracing and metrics off, the default store policy, a one minute GC
// sweep and a 30 second fetch timeout.
func DefaultConfig() Config {
	return Config{
		Observe: observe.Config{
			ServiceName: "querycache",
			Tracing:     observe.TracingConfig{Exporter: "none"},
			Metrics:     observe.MetricsConfig{Exporter: "none"},
			Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
		},
		Store:         store.DefaultPolicy(),
		GCInterval:    time.Minute,
		PrefetchLimit: 8,
		Fetch:         PolicyConfig{Timeout: 30 * time.Second},
		Mutation:      PolicyConfig{Timeout: 30 * time.Second},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Observe.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if c.GCInterval < 0 {
		return ErrInvalidGCInterval
	}
	if c.PrefetchLimit < 0 {
		return ErrInvalidPrefetchLimit
	}
	if err := c.Fetch.validate(); err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if err := c.Mutation.validate(); err != nil {
		return fmt.Errorf("mutation: %w", err)
	}
	if c.Mutation.Retry != nil && c.Mutation.Retry.RetryIf == nil {
		return ErrMutationRetry
	}
	return nil
}

func (p PolicyConfig) validate() error {
	if p.Timeout < 0 {
		return ErrInvalidTimeout
	}
	return nil
}

// executor builds the resilience executor, or nil when nothing is enabled.
func (p PolicyConfig) executor() *resilience.Executor {
	var opts []resilience.ExecutorOption
	if p.Bulkhead != nil {
		opts = append(opts, resilience.WithBulkhead(resilience.NewBulkhead(*p.Bulkhead)))
	}
	if p.CircuitBreaker != nil {
		opts = append(opts, resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(*p.CircuitBreaker)))
	}
	if p.Retry != nil {
		opts = append(opts, resilience.WithRetry(resilience.NewRetry(*p.Retry)))
	}
	if p.Timeout > 0 {
		opts = append(opts, resilience.WithTimeout(p.Timeout))
	}
	if len(opts) == 0 {
		return nil
	}
	return resilience.NewExecutor(opts...)
}
