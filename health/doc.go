// Package health reports whether a cache and its origin are usable.
//
// Checkers inspect one component each: StoreChecker looks at the share of
// entries whose last fetch failed, CircuitChecker at the origin circuit
// breaker. An Aggregator runs them together and reports the worst
// status; the HTTP handlers expose the result for liveness and readiness
// probes.
package health
