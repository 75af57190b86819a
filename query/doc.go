// Package query orchestrates fetch-or-reuse for a single key.
//
// An Executor checks the store for a usable entry and otherwise calls the
// transport, deduplicating concurrent requests for the same key with a
// singleflight group. Results are always committed to the store, even when
// every waiting caller has given up.
//
// Per key the entry moves idle → loading → success|error, and back to
// loading on a refetch. A failed fetch keeps the previous value and is
// not retried until the key is invalidated or Refetch is called.
package query
