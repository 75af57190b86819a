package mutation

import (
	"context"

	"github.com/jonwraymond/querycache/observe"
	"github.com/jonwraymond/querycache/resilience"
	"github.com/jonwraymond/querycache/store"
)

// CommitFunc performs the write against the origin and returns its result.
type CommitFunc func(ctx context.Context) (any, error)

// EffectsFunc derives cache effects from a successful commit result.
type EffectsFunc func(result any) []Effect

// Coordinator executes mutations.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Atomicity: effects are applied in a single store batch after the
//     origin succeeds; on failure none are applied.
//   - Context: ctx is passed to the commit function. A commit canceled by
//     ctx is a failure.
type Coordinator struct {
	store      *store.Store
	resilience *resilience.Executor
	inst       *observe.Instrumenter
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithResilience routes every commit through r. Commits are usually not
// idempotent, so r should not retry unless the origin deduplicates.
func WithResilience(r *resilience.Executor) Option {
	return func(c *Coordinator) { c.resilience = r }
}

// WithInstrumenter sets the telemetry wrapper.
func WithInstrumenter(inst *observe.Instrumenter) Option {
	return func(c *Coordinator) {
		if inst != nil {
			c.inst = inst
		}
	}
}

// New creates a Coordinator over s.
func New(s *store.Store, opts ...Option) (*Coordinator, error) {
	if s == nil {
		return nil, ErrNilStore
	}
	c := &Coordinator{store: s, inst: observe.NopInstrumenter()}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Commit runs commit and, on success, applies effects(result). name
// labels the mutation in errors and telemetry. effects may be nil.
func (c *Coordinator) Commit(ctx context.Context, name string, commit CommitFunc, effects EffectsFunc) (any, Applied, error) {
	if commit == nil {
		return nil, Applied{}, &MutationError{Name: name, Err: ErrNilCommit}
	}

	var (
		result  any
		applied Applied
	)
	meta := observe.OpMeta{Op: observe.OpMutate, Leaf: name}
	err := c.inst.Run(ctx, meta, func(ctx context.Context) error {
		v, err := resilience.Do(ctx, c.resilience, func(ctx context.Context) (any, error) {
			return commit(ctx)
		})
		if err != nil {
			return &MutationError{Name: name, Err: err}
		}
		result = v

		var declared []Effect
		if effects != nil {
			declared = effects(v)
		}
		if len(declared) > 0 {
			c.store.Batch(func(tx *store.Tx) { applied = apply(tx, declared) })
		}
		return nil
	})
	if err != nil {
		return nil, Applied{}, err
	}
	return result, applied, nil
}
