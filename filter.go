package querycache

import (
	"errors"

	"github.com/jonwraymond/querycache/key"
	"github.com/jonwraymond/querycache/registry"
	"github.com/jonwraymond/querycache/store"
)

// Tagged is one entry reached through a filter key, tagged with the leaf
// that produced its key. Its value is one of the models reachable from
// the filter; As narrows it.
type Tagged struct {
	Leaf  registry.LeafInfo
	Entry store.Entry
}

// Key returns the entry's own query key.
func (t Tagged) Key() key.Key { return t.Entry.Key }

// GetByFilter returns every registered entry under filter, oldest first.
func (c *Client) GetByFilter(filter key.Key) []Tagged {
	entries := c.store.ReadMany(filter)
	out := make([]Tagged, 0, len(entries))
	for _, e := range entries {
		info, ok := c.registry.ModelTypeFor(e.Key)
		if !ok {
			continue
		}
		out = append(out, Tagged{Leaf: info, Entry: e})
	}
	return out
}

// Reachable lists the leaves, and so the models, that filter can reach.
func (c *Client) Reachable(filter key.Key) []registry.LeafInfo {
	return c.registry.Reachable(filter)
}

// SetByFilter calls update for every registered entry under filter and
// writes the values it returns. update runs outside the store lock and
// may read the cache. Every returned value is checked against its
// entry's model first; if any check fails nothing is written and the
// *KeyMismatchError is returned. The writes are applied in one batch,
// skipping entries removed in the meantime. It returns the number of
// writes.
func (c *Client) SetByFilter(filter key.Key, update func(t Tagged) (next any, write bool)) (int, error) {
	if update == nil {
		return 0, ErrNilUpdate
	}

	type pending struct {
		key   key.Key
		value any
	}
	var (
		writes []pending
		errs   []error
	)
	for _, tg := range c.GetByFilter(filter) {
		next, write := update(tg)
		if !write {
			continue
		}
		if err := checkValue(tg.Leaf, tg.Key(), next); err != nil {
			errs = append(errs, err)
			continue
		}
		writes = append(writes, pending{key: tg.Key(), value: next})
	}
	if len(errs) > 0 {
		return 0, errors.Join(errs...)
	}

	n := 0
	c.store.Batch(func(tx *store.Tx) {
		for _, w := range writes {
			if _, ok := tx.Read(w.key); !ok {
				continue
			}
			if _, wrote := tx.Write(w.key, store.Replace(w.value)); wrote {
				n++
			}
		}
	})
	return n, nil
}

// As narrows t to leaf's model. It reports false when t was produced by
// a different leaf or holds no value.
func As[M any](leaf *registry.Leaf[M], t Tagged) (registry.QueryKey[M], M, bool) {
	var zero M
	q, ok := leaf.Narrow(t.Entry.Key)
	if !ok || !t.Entry.HasValue {
		return q, zero, false
	}
	if t.Entry.Value == nil {
		return q, zero, true
	}
	m, ok := t.Entry.Value.(M)
	return q, m, ok
}
