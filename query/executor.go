package query

import (
	"context"
	"errors"
	"strconv"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/querycache/key"
	"github.com/jonwraymond/querycache/observe"
	"github.com/jonwraymond/querycache/resilience"
	"github.com/jonwraymond/querycache/store"
)

// FetchFunc obtains the value for k from the origin.
type FetchFunc func(ctx context.Context, k key.Key) (any, error)

// Request asks for the value of one query key.
type Request struct {
	Key   key.Key
	Leaf  string // leaf name, telemetry only
	Fetch FetchFunc
}

func (r Request) validate() error {
	if r.Key.IsZero() {
		return ErrZeroKey
	}
	if r.Fetch == nil {
		return ErrNilFetch
	}
	return nil
}

func (r Request) meta(op string) observe.OpMeta {
	return observe.OpMeta{
		Op:      op,
		Entity:  r.Key.Entity(),
		Leaf:    r.Leaf,
		KeyHash: r.Key.Fingerprint(),
	}
}

// DefaultPrefetchLimit bounds concurrent fetches started by Prefetch.
const DefaultPrefetchLimit = 8

// Executor runs queries against a store.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Dedup: at most one fetch per key and invalidation generation is in
//     flight. Callers arriving while it runs share its result; their own
//     Fetch functions are not called. A caller arriving after the key was
//     invalidated starts a new fetch instead of joining the older one.
//   - Ordering: a fetch that was overtaken by an invalidation commits its
//     value as stale, and one overtaken by a newer outcome is dropped.
//   - Context: ctx only bounds how long the caller waits. The fetch itself
//     runs on a detached context and always commits to the store.
type Executor struct {
	store         *store.Store
	group         singleflight.Group
	resilience    *resilience.Executor
	inst          *observe.Instrumenter
	prefetchLimit int
}

// Option configures an Executor.
type Option func(*Executor)

// WithResilience routes every fetch through r.
func WithResilience(r *resilience.Executor) Option {
	return func(e *Executor) { e.resilience = r }
}

// WithInstrumenter sets the telemetry wrapper.
func WithInstrumenter(inst *observe.Instrumenter) Option {
	return func(e *Executor) {
		if inst != nil {
			e.inst = inst
		}
	}
}

// WithPrefetchLimit bounds concurrent fetches started by Prefetch.
func WithPrefetchLimit(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.prefetchLimit = n
		}
	}
}

// New creates an Executor over s.
func New(s *store.Store, opts ...Option) (*Executor, error) {
	if s == nil {
		return nil, ErrNilStore
	}
	e := &Executor{
		store:         s,
		inst:          observe.NopInstrumenter(),
		prefetchLimit: DefaultPrefetchLimit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

// Store returns the underlying store.
func (e *Executor) Store() *store.Store { return e.store }

// Fetch returns the cached value of req.Key when it is fresh, the stored
// *FetchError when the last fetch failed and the entry has not been
// invalidated since, and otherwise fetches from the origin.
func (e *Executor) Fetch(ctx context.Context, req Request) (any, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if v, hit, err := e.cached(req.Key); hit {
		e.inst.Hit(ctx, req.meta(observe.OpFetch))
		return v, err
	}
	return e.wait(ctx, req, false)
}

// Refetch always goes to the origin, unless a fetch for the key is already
// in flight, in which case it shares that fetch's result.
func (e *Executor) Refetch(ctx context.Context, req Request) (any, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	return e.wait(ctx, req, true)
}

// Prefetch fetches every request concurrently, at most the prefetch limit
// at a time. It returns the first error encountered; the remaining
// requests still run.
func (e *Executor) Prefetch(ctx context.Context, reqs ...Request) error {
	var g errgroup.Group
	g.SetLimit(e.prefetchLimit)
	for _, req := range reqs {
		g.Go(func() error {
			_, err := e.Fetch(ctx, req)
			return err
		})
	}
	return g.Wait()
}

// cached reports whether the store can answer for k without a fetch.
func (e *Executor) cached(k key.Key) (v any, hit bool, err error) {
	entry, ok := e.store.Read(k)
	if !ok {
		return nil, false, nil
	}
	policy := e.store.Policy()
	now := e.store.Now()
	switch entry.State {
	case store.StateSuccess:
		if entry.Fresh(policy.StaleTime, now) {
			return entry.Value, true, nil
		}
	case store.StateError:
		invalidated := entry.ErrorGeneration != entry.Generation
		aged := policy.StaleTime > 0 && now.Sub(entry.ErrorAt) >= policy.StaleTime
		if !invalidated && !aged {
			return nil, true, entry.Err
		}
	}
	return nil, false, nil
}

func (e *Executor) wait(ctx context.Context, req Request, force bool) (any, error) {
	op := observe.OpFetch
	if force {
		op = observe.OpRefetch
	}
	detached := context.WithoutCancel(ctx)

	ch := e.group.DoChan(e.flightKey(req.Key), func() (any, error) {
		if !force {
			// Another flight may have committed between our read and here.
			if v, hit, err := e.cached(req.Key); hit {
				return v, err
			}
		}
		return e.load(detached, req, op)
	})

	select {
	case res := <-ch:
		if res.Shared {
			e.inst.Shared(ctx, req.meta(op))
		}
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// flightKey scopes dedup to the key's current invalidation generation.
func (e *Executor) flightKey(k key.Key) string {
	var gen uint64
	if entry, ok := e.store.Read(k); ok {
		gen = entry.Generation
	}
	return k.String() + "#" + strconv.FormatUint(gen, 10)
}

func (e *Executor) load(ctx context.Context, req Request, op string) (any, error) {
	var out any
	err := e.inst.Run(ctx, req.meta(op), func(ctx context.Context) error {
		ticket := e.store.MarkLoading(req.Key).Ticket()

		v, err := resilience.Do(ctx, e.resilience, func(ctx context.Context) (any, error) {
			return callFetch(ctx, req)
		})
		if err != nil {
			ferr := &FetchError{Key: req.Key, Err: err}
			e.store.Reject(req.Key, ticket, ferr)
			return ferr
		}
		e.store.Resolve(req.Key, ticket, v)
		out = v
		return nil
	})
	return out, err
}

func callFetch(ctx context.Context, req Request) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = resilience.Permanent(panicError{value: r})
		}
	}()
	return req.Fetch(ctx, req.Key)
}

// IsFetchError reports whether err carries a *FetchError.
func IsFetchError(err error) bool {
	var ferr *FetchError
	return errors.As(err, &ferr)
}
