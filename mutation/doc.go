// Package mutation runs write intents against the origin and applies
// their cache effects.
//
// Effects run only after the origin confirms the write, and all of them
// are applied in one store batch: direct writes first, then
// invalidations. A failed commit leaves the store exactly as it was.
package mutation
