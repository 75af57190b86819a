package mutation

import (
	"github.com/jonwraymond/querycache/key"
	"github.com/jonwraymond/querycache/store"
)

type effectKind int

const (
	kindWrite effectKind = iota + 1
	kindInvalidate
)

// Effect is one cache change declared by a mutation.
type Effect struct {
	kind   effectKind
	key    key.Key
	update store.Updater
}

// WriteEffect writes to the query key k through update.
func WriteEffect(k key.Key, update store.Updater) Effect {
	return Effect{kind: kindWrite, key: k, update: update}
}

// InvalidateEffect marks every entry matched by filter stale.
func InvalidateEffect(filter key.Key) Effect {
	return Effect{kind: kindInvalidate, key: filter}
}

// Key returns the key or filter the effect targets.
func (e Effect) Key() key.Key { return e.key }

// IsWrite reports whether the effect is a direct write.
func (e Effect) IsWrite() bool { return e.kind == kindWrite }

// IsInvalidate reports whether the effect is an invalidation.
func (e Effect) IsInvalidate() bool { return e.kind == kindInvalidate }

// Applied summarizes what a committed mutation changed.
type Applied struct {
	Written     int // writes that changed an entry
	Invalidated int // entries matched by invalidations
}

func apply(tx *store.Tx, effects []Effect) Applied {
	var out Applied
	for _, e := range effects {
		if e.kind != kindWrite {
			continue
		}
		if _, wrote := tx.Write(e.key, e.update); wrote {
			out.Written++
		}
	}
	for _, e := range effects {
		if e.kind == kindInvalidate {
			out.Invalidated += tx.Invalidate(e.key)
		}
	}
	return out
}
