package store

import (
	"time"

	"github.com/jonwraymond/querycache/key"
)

// State is the lifecycle state of an entry.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateSuccess
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Entry is a snapshot of one cached key. Value is shared with the store,
// not copied: treat it as read-only and replace it through Write.
type Entry struct {
	Key         key.Key
	State       State
	Value       any
	HasValue    bool
	Err         error
	LastUpdated time.Time // last successful write; zero if never written
	ErrorAt     time.Time // last MarkError; zero if never failed
	Stale       bool
	Observers   int

	// Generation counts the invalidations that matched the entry.
	Generation uint64
	// ErrorGeneration is the generation the stored error was recorded
	// against. An error older than Generation was invalidated.
	ErrorGeneration uint64
	// Version counts the values and errors recorded on the entry.
	Version uint64
}

// Ticket identifies the entry state a fetch started from. Pass it to
// Resolve or Reject when the fetch settles.
type Ticket struct {
	Generation uint64
	Version    uint64
}

// Ticket returns the entry's current ticket.
func (e Entry) Ticket() Ticket {
	return Ticket{Generation: e.Generation, Version: e.Version}
}

// Fresh reports whether the entry can be served without a fetch: it holds
// a value, has not been invalidated, and is younger than staleTime
// (zero staleTime never ages out).
func (e Entry) Fresh(staleTime time.Duration, now time.Time) bool {
	if !e.HasValue || e.Stale {
		return false
	}
	if staleTime > 0 && now.Sub(e.LastUpdated) >= staleTime {
		return false
	}
	return true
}

// Updater computes the next value from the previous one. Returning
// write=false leaves the entry untouched.
type Updater func(prev any, ok bool) (next any, write bool)

// Replace returns an Updater that always writes v.
func Replace(v any) Updater {
	return func(any, bool) (any, bool) { return v, true }
}

type entry struct {
	key         key.Key
	seq         uint64
	state       State
	value       any
	hasValue    bool
	err         error
	lastUpdated time.Time
	errorAt     time.Time
	stale       bool
	touched     time.Time // last transition of any kind

	gen        uint64 // bumped by every matching invalidation
	errorGen   uint64
	version    uint64 // bumped by every recorded value or error
	settledGen uint64 // generation of the last value or error recorded
}

// superseded reports whether an outcome for t would overwrite a newer one.
func (e *entry) superseded(t Ticket) bool {
	return e.version != t.Version && e.settledGen >= t.Generation
}

func (e *entry) snapshot(observers int) Entry {
	return Entry{
		Key:         e.key,
		State:       e.state,
		Value:       e.value,
		HasValue:    e.hasValue,
		Err:         e.err,
		LastUpdated: e.lastUpdated,
		ErrorAt:     e.errorAt,
		Stale:       e.stale,
		Observers:   observers,

		Generation:      e.gen,
		ErrorGeneration: e.errorGen,
		Version:         e.version,
	}
}
