// Package flows contains the orchestrators behind every Engine operation that
// talks to the Frontend API.
//
// Each flow function (RunSignUpCreate, RunSignInAttemptFactor, RunSignOut,
// etc.) accepts a typed dependency struct, performs exactly one round trip
// through the injected Send func and hands the piggybacked Client to Apply.
// Local precondition checks run first so an out-of-order call never reaches
// the network.
//
// # Architecture boundaries
//
// Flow functions coordinate the request pipeline, the client store, metrics
// and audit. They do NOT own any of these resources; ownership stays with the
// Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls (caches live on the Engine).
//   - Import goClerk (to avoid import cycles).
//   - Retry a failed round trip.
//   - Apply a Client from a request that failed.
package flows
