// Package store is the mutable key→entry map behind the cache.
//
// Entries are addressed by structural key equality, owned exclusively by
// the Store, and handed out only as value snapshots. Every operation is
// atomic with respect to every other; Batch groups several writes and
// invalidations so observers never see a half-applied mutation.
//
// Invalidate is the only operation that touches more than one entry, and
// it only flips the stale flag: values survive as last-known-good until a
// refetch replaces them.
package store
