// Package observe provides observability primitives for cache operations.
//
// It is a pure instrumentation library: no caching, no transport, no I/O
// beyond exporter setup. The query executor and mutation coordinator wrap
// their transport boundaries with an Instrumenter; the store logs through
// Logger.
package observe
