// Package pipeline sends Frontend API requests through ordered outgoing and
// incoming middleware.
//
// Outgoing middleware decorates the *http.Request before transmission
// (identity headers). Incoming middleware sees every response, whatever its
// status, after the body has been read and before it is decoded: it persists
// rotated device tokens and turns non-2xx responses into typed errors.
//
// # What this package must NOT do
//
//   - Retry requests. Callers decide whether to retry.
//   - Touch client state. Applying a decoded response is the caller's job.
//   - Import goClerk (the root package re-exports the error types).
package pipeline
