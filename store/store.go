package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/jonwraymond/querycache/key"
	"github.com/jonwraymond/querycache/observe"
)

// Store is the in-memory cache state.
//
// Contract:
//   - Concurrency: safe for concurrent use; each operation is atomic.
//   - Isolation: Write, MarkLoading and MarkError never touch another key's
//     entry. Invalidate only sets stale flags.
//   - Callbacks: Updaters run under the store lock and must not call back
//     into the store. Observers run after the lock is released.
type Store struct {
	mu           sync.RWMutex
	entries      map[string]*entry
	seq          uint64
	observers    map[string]map[uint64]func(Entry)
	nextObserver uint64

	policy Policy
	clock  func() time.Time
	logger observe.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithPolicy sets the freshness and retention policy.
func WithPolicy(p Policy) Option {
	return func(s *Store) { s.policy = p }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.clock = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l observe.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		entries:   make(map[string]*entry),
		observers: make(map[string]map[uint64]func(Entry)),
		policy:    DefaultPolicy(),
		clock:     time.Now,
		logger:    observe.NopLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Policy returns the store policy.
func (s *Store) Policy() Policy { return s.policy }

// Now returns the store clock's current time.
func (s *Store) Now() time.Time { return s.clock() }

func (s *Store) snapshotLocked(e *entry) Entry {
	return e.snapshot(len(s.observers[e.key.String()]))
}

// Read returns a snapshot of the entry for k.
func (s *Store) Read(k key.Key) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[k.String()]
	if !ok || k.IsZero() {
		return Entry{}, false
	}
	return s.snapshotLocked(e), true
}

// ReadMany returns every entry matched by filter, oldest first. Each
// entry carries its own leaf key.
func (s *Store) ReadMany(filter key.Key) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readManyLocked(filter)
}

func (s *Store) readManyLocked(filter key.Key) []Entry {
	var matched []*entry
	for _, e := range s.entries {
		if key.Matches(filter, e.key) {
			matched = append(matched, e)
		}
	}
	slices.SortFunc(matched, func(a, b *entry) int { return compareSeq(a.seq, b.seq) })

	out := make([]Entry, len(matched))
	for i, e := range matched {
		out[i] = s.snapshotLocked(e)
	}
	return out
}

func compareSeq(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Snapshot returns every entry, oldest first.
func (s *Store) Snapshot() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		all = append(all, e)
	}
	slices.SortFunc(all, func(a, b *entry) int { return compareSeq(a.seq, b.seq) })

	out := make([]Entry, len(all))
	for i, e := range all {
		out[i] = s.snapshotLocked(e)
	}
	return out
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Write applies update to the value of k. See Tx.Write.
func (s *Store) Write(k key.Key, update Updater) (Entry, bool) {
	var (
		out   Entry
		wrote bool
	)
	s.Batch(func(tx *Tx) { out, wrote = tx.Write(k, update) })
	return out, wrote
}

// MarkLoading moves k to the loading state, creating the entry if absent.
func (s *Store) MarkLoading(k key.Key) Entry {
	var out Entry
	s.Batch(func(tx *Tx) { out = tx.MarkLoading(k) })
	return out
}

// MarkError records err on k, creating the entry if absent. Any existing
// value and the stale flag are kept.
func (s *Store) MarkError(k key.Key, err error) Entry {
	var out Entry
	s.Batch(func(tx *Tx) { out = tx.MarkError(k, err) })
	return out
}

// Resolve records the result of a fetch started from ticket t. See
// Tx.Resolve.
func (s *Store) Resolve(k key.Key, t Ticket, v any) (Entry, bool) {
	var (
		out Entry
		ok  bool
	)
	s.Batch(func(tx *Tx) { out, ok = tx.Resolve(k, t, v) })
	return out, ok
}

// Reject records the failure of a fetch started from ticket t. See
// Tx.Reject.
func (s *Store) Reject(k key.Key, t Ticket, err error) (Entry, bool) {
	var (
		out Entry
		ok  bool
	)
	s.Batch(func(tx *Tx) { out, ok = tx.Reject(k, t, err) })
	return out, ok
}

// Invalidate marks every entry matched by filter stale and returns how
// many were marked.
func (s *Store) Invalidate(filter key.Key) int {
	var n int
	s.Batch(func(tx *Tx) { n = tx.Invalidate(filter) })
	return n
}

// Remove deletes the entry for k. Observers stay registered and see the
// entry again if it is recreated.
func (s *Store) Remove(k key.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := k.String()
	if _, ok := s.entries[id]; !ok {
		return false
	}
	delete(s.entries, id)
	return true
}

// Batch runs fn with exclusive access to the store. Observers of every
// touched entry are notified once fn returns.
func (s *Store) Batch(fn func(tx *Tx)) {
	tx := &Tx{s: s, touched: make(map[string]*entry)}
	func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		fn(tx)
		tx.done = true
		tx.collectLocked()
	}()
	tx.deliver()
}

// Subscribe registers fn to receive a snapshot of k after every
// transition. The returned function unsubscribes; it is idempotent.
func (s *Store) Subscribe(k key.Key, fn func(Entry)) (unsubscribe func()) {
	s.mu.Lock()
	id := k.String()
	s.nextObserver++
	token := s.nextObserver
	if s.observers[id] == nil {
		s.observers[id] = make(map[uint64]func(Entry))
	}
	s.observers[id][token] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.observers[id], token)
			if len(s.observers[id]) == 0 {
				delete(s.observers, id)
			}
		})
	}
}

// Observers returns the number of observers registered for k.
func (s *Store) Observers(k key.Key) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.observers[k.String()])
}

// GC evicts entries that have no observers, are not loading, and were
// last touched at least Policy.Retention before now. It returns the
// evicted keys.
func (s *Store) GC(now time.Time) []key.Key {
	s.mu.Lock()
	var evicted []key.Key
	for id, e := range s.entries {
		if e.state == StateLoading || len(s.observers[id]) > 0 {
			continue
		}
		if s.policy.expired(e.touched, now) {
			delete(s.entries, id)
			evicted = append(evicted, e.key)
		}
	}
	s.mu.Unlock()

	if len(evicted) > 0 {
		s.logger.WithOp(observe.OpMeta{Op: observe.OpGC}).Debug(context.Background(),
			"evicted unobserved entries", observe.Field{Key: "count", Value: len(evicted)})
	}
	return evicted
}

// RunGC calls GC every interval until ctx is done.
func (s *Store) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 || s.policy.Retention <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.GC(s.clock())
		}
	}
}
