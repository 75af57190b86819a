package store

import (
	"context"

	"github.com/jonwraymond/querycache/key"
	"github.com/jonwraymond/querycache/observe"
)

// Tx is exclusive access to the store inside Batch. It must not be
// retained after Batch returns.
type Tx struct {
	s       *Store
	touched map[string]*entry
	order   []string
	pending []notification
	done    bool
}

type notification struct {
	snap      Entry
	observers []func(Entry)
}

func (tx *Tx) check() {
	if tx.done {
		panic("store: Tx used after Batch returned")
	}
}

func (tx *Tx) record(e *entry) {
	id := e.key.String()
	if _, ok := tx.touched[id]; !ok {
		tx.order = append(tx.order, id)
	}
	tx.touched[id] = e
}

func (tx *Tx) touch(e *entry) {
	tx.record(e)
	e.touched = tx.s.clock()
}

func (tx *Tx) getOrCreate(k key.Key) *entry {
	id := k.String()
	if e, ok := tx.s.entries[id]; ok {
		return e
	}
	tx.s.seq++
	e := &entry{key: k, seq: tx.s.seq, state: StateIdle}
	tx.s.entries[id] = e
	return e
}

// Read returns a snapshot of the entry for k.
func (tx *Tx) Read(k key.Key) (Entry, bool) {
	tx.check()
	e, ok := tx.s.entries[k.String()]
	if !ok || k.IsZero() {
		return Entry{}, false
	}
	return tx.s.snapshotLocked(e), true
}

// ReadMany returns every entry matched by filter, oldest first.
func (tx *Tx) ReadMany(filter key.Key) []Entry {
	tx.check()
	return tx.s.readManyLocked(filter)
}

// Write calls update with the current value of k. When update returns
// write=true the entry is created if absent, its value replaced, its
// state set to success, its error and stale flag cleared and LastUpdated
// bumped. When update returns write=false nothing changes and the entry
// is not created. The boolean result reports whether a write happened.
func (tx *Tx) Write(k key.Key, update Updater) (Entry, bool) {
	tx.check()
	if k.IsZero() || update == nil {
		return Entry{}, false
	}

	e, exists := tx.s.entries[k.String()]
	var (
		prev    any
		hasPrev bool
	)
	if exists && e.hasValue {
		prev, hasPrev = e.value, true
	}

	next, write := update(prev, hasPrev)
	if !write {
		if !exists {
			return Entry{}, false
		}
		return tx.s.snapshotLocked(e), false
	}

	if !exists {
		e = tx.getOrCreate(k)
	}
	tx.settle(e, next, e.gen)
	return tx.s.snapshotLocked(e), true
}

func (tx *Tx) settle(e *entry, v any, gen uint64) {
	e.value = v
	e.hasValue = true
	e.state = StateSuccess
	e.err = nil
	e.stale = gen < e.gen
	e.settledGen = gen
	e.version++
	e.lastUpdated = tx.s.clock()
	tx.touch(e)
}

// Resolve records v as the result of a fetch that started from ticket t.
// If k was invalidated since, v is stored but stays stale. When a value
// or error recorded after t is at least as recent as t's generation, v is
// dropped and Resolve reports false.
func (tx *Tx) Resolve(k key.Key, t Ticket, v any) (Entry, bool) {
	tx.check()
	if k.IsZero() {
		return Entry{}, false
	}
	e := tx.getOrCreate(k)
	if e.superseded(t) {
		return tx.s.snapshotLocked(e), false
	}
	tx.settle(e, v, t.Generation)
	return tx.s.snapshotLocked(e), true
}

// Reject records err as the outcome of a fetch that started from ticket
// t. The value and stale flag are kept. Superseded outcomes are dropped
// as in Resolve.
func (tx *Tx) Reject(k key.Key, t Ticket, err error) (Entry, bool) {
	tx.check()
	if k.IsZero() {
		return Entry{}, false
	}
	e := tx.getOrCreate(k)
	if e.superseded(t) {
		return tx.s.snapshotLocked(e), false
	}
	tx.fail(e, err, t.Generation)
	return tx.s.snapshotLocked(e), true
}

func (tx *Tx) fail(e *entry, err error, gen uint64) {
	e.state = StateError
	e.err = err
	e.errorGen = gen
	e.settledGen = gen
	e.version++
	e.errorAt = tx.s.clock()
	tx.touch(e)
}

// MarkLoading moves k to the loading state, creating the entry if absent.
func (tx *Tx) MarkLoading(k key.Key) Entry {
	tx.check()
	if k.IsZero() {
		return Entry{}
	}
	e := tx.getOrCreate(k)
	e.state = StateLoading
	tx.touch(e)
	return tx.s.snapshotLocked(e)
}

// MarkError moves k to the error state, creating the entry if absent.
// The value and stale flag are kept.
func (tx *Tx) MarkError(k key.Key, err error) Entry {
	tx.check()
	if k.IsZero() {
		return Entry{}
	}
	e := tx.getOrCreate(k)
	tx.fail(e, err, e.gen)
	return tx.s.snapshotLocked(e)
}

// Invalidate marks every entry matched by filter stale, bumps its
// generation and returns how many matched. Values are kept.
func (tx *Tx) Invalidate(filter key.Key) int {
	tx.check()
	n := 0
	for _, e := range tx.s.entries {
		if !key.Matches(filter, e.key) {
			continue
		}
		n++
		e.stale = true
		e.gen++
		tx.record(e)
	}
	tx.s.logger.WithOp(observe.OpMeta{
		Op:      observe.OpInvalidate,
		Entity:  filter.Entity(),
		KeyHash: filter.Fingerprint(),
	}).Debug(context.Background(), "invalidated entries", observe.Field{Key: "count", Value: n})
	return n
}

func (tx *Tx) collectLocked() {
	for _, id := range tx.order {
		e := tx.touched[id]
		obs := tx.s.observers[id]
		if len(obs) == 0 {
			continue
		}
		fns := make([]func(Entry), 0, len(obs))
		for _, fn := range obs {
			fns = append(fns, fn)
		}
		tx.pending = append(tx.pending, notification{snap: tx.s.snapshotLocked(e), observers: fns})
	}
}

func (tx *Tx) deliver() {
	for _, n := range tx.pending {
		for _, fn := range n.observers {
			fn(n.snap)
		}
	}
}
