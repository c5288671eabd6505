// Package resource defines the Frontend API resource models exchanged with the
// identity backend: Client, Session, User, SignUp, SignIn, Environment and the
// response envelopes that carry them.
//
// Every value here is a snapshot decoded from a backend response. The SDK
// never computes these fields locally; it only stores the most recent copy.
//
// # What this package must NOT do
//
//   - Perform I/O or hold process state.
//   - Import goClerk or any internal package.
package resource
