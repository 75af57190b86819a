package querycache

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/jonwraymond/querycache/key"
	"github.com/jonwraymond/querycache/mutation"
	"github.com/jonwraymond/querycache/observe"
	"github.com/jonwraymond/querycache/query"
	"github.com/jonwraymond/querycache/registry"
	"github.com/jonwraymond/querycache/store"
)

// Entry is a typed snapshot of a cached query key.
type Entry[M any] struct {
	Key         registry.QueryKey[M]
	State       store.State
	Value       M
	HasValue    bool
	Err         error
	LastUpdated time.Time
	Stale       bool
}

// Fetcher loads the model for q from the origin.
type Fetcher[M any] func(ctx context.Context, q registry.QueryKey[M]) (M, error)

// Updater computes the next model from the current one. Returning
// write=false leaves the entry untouched.
type Updater[M any] func(prev M, ok bool) (next M, write bool)

// cast converts a stored value to M. A failure means the store was
// written around the facade.
func cast[M any](c *Client, k key.Key, v any) (M, bool) {
	if v == nil {
		var zero M
		return zero, conforms(reflect.TypeFor[M](), nil)
	}
	m, ok := v.(M)
	if !ok {
		c.logger.WithOp(observe.OpMeta{Entity: k.Entity(), KeyHash: k.Fingerprint()}).Error(context.Background(),
			"cached value does not match its key's model",
			observe.Field{Key: "model", Value: reflect.TypeFor[M]().String()},
			observe.Field{Key: "got", Value: fmt.Sprintf("%T", v)},
		)
	}
	return m, ok
}

func typedEntry[M any](c *Client, q registry.QueryKey[M], e store.Entry) Entry[M] {
	out := Entry[M]{
		Key:         q,
		State:       e.State,
		Err:         e.Err,
		LastUpdated: e.LastUpdated,
		Stale:       e.Stale,
	}
	if e.HasValue {
		out.Value, out.HasValue = cast[M](c, q.Key(), e.Value)
	}
	return out
}

// Get returns the cached model for q. Stale values are returned as
// last-known-good.
func Get[M any](c *Client, q registry.QueryKey[M]) (M, bool) {
	e, ok := GetEntry(c, q)
	if !ok || !e.HasValue {
		var zero M
		return zero, false
	}
	return e.Value, true
}

// GetEntry returns the full typed entry for q.
func GetEntry[M any](c *Client, q registry.QueryKey[M]) (Entry[M], bool) {
	e, ok := c.store.Read(q.Key())
	if !ok {
		return Entry[M]{}, false
	}
	return typedEntry(c, q, e), true
}

// Set applies update to the model cached under q. It reports whether a
// write happened.
func Set[M any](c *Client, q registry.QueryKey[M], update Updater[M]) (M, bool) {
	if update == nil {
		var zero M
		return zero, false
	}
	e, wrote := c.store.Write(q.Key(), adapt(update))
	if !wrote {
		var zero M
		return zero, false
	}
	m, _ := e.Value.(M)
	return m, true
}

func adapt[M any](update Updater[M]) store.Updater {
	return func(prev any, ok bool) (any, bool) {
		var typed M
		if ok {
			if m, isM := prev.(M); isM {
				typed = m
			} else if prev != nil {
				ok = false
			}
		}
		next, write := update(typed, ok)
		if !write {
			return nil, false
		}
		return next, true
	}
}

// NewRequest builds a query request for Client.Prefetch.
func NewRequest[M any](q registry.QueryKey[M], fetch Fetcher[M]) query.Request {
	req := query.Request{Key: q.Key(), Leaf: q.Leaf().Name}
	if fetch != nil {
		req.Fetch = func(ctx context.Context, _ key.Key) (any, error) {
			return fetch(ctx, q)
		}
	}
	return req
}

// Query returns the cached model for q if it is fresh and fetches it
// otherwise. Concurrent queries for the same key share one fetch.
func Query[M any](ctx context.Context, c *Client, q registry.QueryKey[M], fetch Fetcher[M]) (M, error) {
	v, err := c.queries.Fetch(ctx, NewRequest(q, fetch))
	return result[M](c, q.Key(), v, err)
}

// Refetch fetches q from the origin regardless of the cached state.
func Refetch[M any](ctx context.Context, c *Client, q registry.QueryKey[M], fetch Fetcher[M]) (M, error) {
	v, err := c.queries.Refetch(ctx, NewRequest(q, fetch))
	return result[M](c, q.Key(), v, err)
}

func result[M any](c *Client, k key.Key, v any, err error) (M, error) {
	if err != nil {
		var zero M
		return zero, err
	}
	m, ok := cast[M](c, k, v)
	if !ok {
		info, _ := c.registry.ModelTypeFor(k)
		return m, &KeyMismatchError{Key: k, Leaf: info, Got: reflect.TypeOf(v)}
	}
	return m, nil
}

// Mutate commits a write to the origin and, on success, applies the
// effects derived from its result. On failure it returns a
// *mutation.MutationError and the cache is unchanged.
func Mutate[R any](ctx context.Context, c *Client, name string, commit func(ctx context.Context) (R, error), effects func(result R) []mutation.Effect) (R, error) {
	var zero R
	if commit == nil {
		return zero, &mutation.MutationError{Name: name, Err: mutation.ErrNilCommit}
	}
	v, _, err := c.mutations.Commit(ctx, name,
		func(ctx context.Context) (any, error) { return commit(ctx) },
		func(v any) []mutation.Effect {
			if effects == nil {
				return nil
			}
			r, _ := v.(R)
			return effects(r)
		})
	if err != nil {
		return zero, err
	}
	r, _ := v.(R)
	return r, nil
}

// SetEffect is a mutation effect that writes to q.
func SetEffect[M any](q registry.QueryKey[M], update Updater[M]) mutation.Effect {
	if update == nil {
		return mutation.WriteEffect(q.Key(), nil)
	}
	return mutation.WriteEffect(q.Key(), adapt(update))
}

// ReplaceEffect is a mutation effect that stores v under q.
func ReplaceEffect[M any](q registry.QueryKey[M], v M) mutation.Effect {
	return mutation.WriteEffect(q.Key(), store.Replace(v))
}

// InvalidateEffect is a mutation effect that marks filter stale.
func InvalidateEffect(filter key.Key) mutation.Effect {
	return mutation.InvalidateEffect(filter)
}

// Subscribe registers fn for every transition of q.
func Subscribe[M any](c *Client, q registry.QueryKey[M], fn func(Entry[M])) (unsubscribe func()) {
	return c.store.Subscribe(q.Key(), func(e store.Entry) {
		fn(typedEntry(c, q, e))
	})
}
