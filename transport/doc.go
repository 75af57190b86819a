// Package transport is an HTTP origin for queries and mutations.
//
// HTTP sends and receives JSON models, maps non-2xx responses to
// *StatusError and optionally authenticates each request with a short
// lived HS256 bearer token minted by a TokenSigner. Client errors other
// than 408 and 429 are marked permanent so resilience policies do not
// retry them.
package transport
