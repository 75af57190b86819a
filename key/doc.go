// Package key implements the structured, hierarchical cache keys.
//
// A Key is an immutable ordered sequence of segments. Every segment is
// produced by one Extend call and holds the fields declared by a Level, in
// declaration order. Two keys built from the same field sets are
// structurally equal regardless of the order values were supplied in.
//
// A key F matches a key Q when F's segments are a prefix of Q's segments.
// The root key of an entity ({type: entity}) therefore matches every key
// derived from it.
package key
