// Package goClerk is a client SDK core for the Clerk Frontend API. It keeps
// one device identity and one Client snapshot per [Engine] and drives the
// sign-up, sign-in and session flows against them.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build]. Each flow step is a single round
// trip; the Client returned by the backend replaces the stored snapshot and
// the last response to arrive wins.
//
// # Architecture boundaries
//
// goClerk is the public surface. It exposes [Engine], [Builder], [Config], the
// flow handles and value types (Snapshot, MetricsSnapshot, AuditEvent). Wire
// types live in the resource package and storage backends in keychain.
// Request plumbing, flow orchestration, the client store and audit dispatch
// live under internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Log or audit device tokens, session tokens, passwords or verification codes.
//   - Retry requests or advance a flow on its own.
//   - Perform I/O during construction; Build only allocates.
//   - Import any sub-package that re-imports goClerk (no import cycles).
package goClerk
