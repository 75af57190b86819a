package querycache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonwraymond/querycache/health"
	"github.com/jonwraymond/querycache/key"
	"github.com/jonwraymond/querycache/mutation"
	"github.com/jonwraymond/querycache/observe"
	"github.com/jonwraymond/querycache/query"
	"github.com/jonwraymond/querycache/registry"
	"github.com/jonwraymond/querycache/resilience"
	"github.com/jonwraymond/querycache/store"
)

// Client is the typed cache.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Ownership: the registry is read-only after Bind; the store is owned
//     by the client and mutated only through its operations.
//   - Lifecycle: Close stops background GC and shuts down telemetry
//     created by NewFromConfig. It is idempotent.
type Client struct {
	registry  *registry.Registry
	store     *store.Store
	queries   *query.Executor
	mutations *mutation.Coordinator
	logger    observe.Logger
	fetch     *resilience.Executor

	gcInterval time.Duration
	observer   observe.Observer

	mu       sync.Mutex
	stopGC   context.CancelFunc
	gcDone   chan struct{}
	shutdown bool
}

type options struct {
	store         []store.Option
	fetch         *resilience.Executor
	mutate        *resilience.Executor
	inst          *observe.Instrumenter
	prefetchLimit int
	gcInterval    time.Duration
}

// Option configures a Client.
type Option func(*options)

// WithPolicy sets the store's freshness and retention policy.
func WithPolicy(p store.Policy) Option {
	return func(o *options) { o.store = append(o.store, store.WithPolicy(p)) }
}

// WithClock overrides the store clock.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.store = append(o.store, store.WithClock(now)) }
}

// WithFetchResilience routes every query through r.
func WithFetchResilience(r *resilience.Executor) Option {
	return func(o *options) { o.fetch = r }
}

// WithMutationResilience routes every mutation commit through r.
func WithMutationResilience(r *resilience.Executor) Option {
	return func(o *options) { o.mutate = r }
}

// WithInstrumenter sets tracing, metrics and logging.
func WithInstrumenter(inst *observe.Instrumenter) Option {
	return func(o *options) { o.inst = inst }
}

// WithPrefetchLimit bounds concurrent fetches started by Prefetch.
func WithPrefetchLimit(n int) Option {
	return func(o *options) { o.prefetchLimit = n }
}

// WithGCInterval sets how often StartGC sweeps the store.
func WithGCInterval(d time.Duration) Option {
	return func(o *options) { o.gcInterval = d }
}

// New creates a Client over a bound registry.
func New(reg *registry.Registry, opts ...Option) (*Client, error) {
	if reg == nil {
		return nil, ErrNilRegistry
	}
	o := options{inst: observe.NopInstrumenter()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.inst == nil {
		o.inst = observe.NopInstrumenter()
	}

	logger := o.inst.Logger()
	s := store.New(append(o.store, store.WithLogger(logger))...)

	queries, err := query.New(s,
		query.WithResilience(o.fetch),
		query.WithInstrumenter(o.inst),
		query.WithPrefetchLimit(o.prefetchLimit),
	)
	if err != nil {
		return nil, err
	}
	mutations, err := mutation.New(s,
		mutation.WithResilience(o.mutate),
		mutation.WithInstrumenter(o.inst),
	)
	if err != nil {
		return nil, err
	}

	return &Client{
		registry:   reg,
		store:      s,
		queries:    queries,
		mutations:  mutations,
		logger:     logger,
		fetch:      o.fetch,
		gcInterval: o.gcInterval,
	}, nil
}

// NewFromConfig validates cfg, sets up telemetry and resilience policies
// and creates a Client. Close releases the telemetry providers.
func NewFromConfig(ctx context.Context, reg *registry.Registry, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	obs, err := observe.NewObserver(ctx, cfg.Observe)
	if err != nil {
		return nil, err
	}
	inst, err := observe.InstrumenterFromObserver(obs)
	if err != nil {
		return nil, errors.Join(err, obs.Shutdown(ctx))
	}

	c, err := New(reg,
		WithPolicy(cfg.Store),
		WithGCInterval(cfg.GCInterval),
		WithPrefetchLimit(cfg.PrefetchLimit),
		WithFetchResilience(cfg.Fetch.executor()),
		WithMutationResilience(cfg.Mutation.executor()),
		WithInstrumenter(inst),
	)
	if err != nil {
		return nil, errors.Join(err, obs.Shutdown(ctx))
	}
	c.observer = obs
	return c, nil
}

// Registry returns the bound registry.
func (c *Client) Registry() *registry.Registry { return c.registry }

// Store returns the underlying store. Writes made through it are not
// checked against the registry.
func (c *Client) Store() *store.Store { return c.store }

// Health returns an aggregator checking the store's error ratio and,
// when configured, the fetch circuit breaker.
func (c *Client) Health(cfg health.StoreCheckerConfig) *health.Aggregator {
	agg := health.NewAggregator(health.DefaultCheckTimeout)
	agg.Register(health.NewStoreChecker(c.store, cfg))
	if cb := c.fetch.CircuitBreaker(); cb != nil {
		agg.Register(health.NewCircuitChecker("origin", cb))
	}
	return agg
}

// Invalidate marks every entry under filter stale and returns how many
// entries matched.
func (c *Client) Invalidate(filter key.Key) int {
	return c.store.Invalidate(filter)
}

// Subscribe registers fn for every transition of k.
func (c *Client) Subscribe(k key.Key, fn func(store.Entry)) (unsubscribe func()) {
	return c.store.Subscribe(k, fn)
}

// Prefetch warms the cache for every request. Build requests with
// NewRequest.
func (c *Client) Prefetch(ctx context.Context, reqs ...query.Request) error {
	return c.queries.Prefetch(ctx, reqs...)
}

// SetValue writes v under k after checking it against the model
// registered for k. It is the runtime-checked path for callers that only
// hold an untyped key.
func (c *Client) SetValue(k key.Key, v any) error {
	info, ok := c.registry.ModelTypeFor(k)
	if !ok {
		return ErrUnknownKey
	}
	if err := checkValue(info, k, v); err != nil {
		return err
	}
	c.store.Write(k, store.Replace(v))
	return nil
}

// StartGC sweeps the store every GC interval until ctx is done or Close
// is called. It is a no-op when the interval is zero or GC is already
// running.
func (c *Client) StartGC(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gcInterval <= 0 || c.stopGC != nil || c.shutdown {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.stopGC, c.gcDone = cancel, done
	go func() {
		defer close(done)
		c.store.RunGC(ctx, c.gcInterval)
	}()
}

// Close stops GC and shuts down telemetry.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return nil
	}
	c.shutdown = true
	stop, done := c.stopGC, c.gcDone
	c.mu.Unlock()

	if stop != nil {
		stop()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if c.observer != nil {
		return c.observer.Shutdown(ctx)
	}
	return nil
}
