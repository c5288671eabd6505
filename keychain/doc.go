// Package keychain provides secure string storage backends for the device
// identity of a goClerk Engine.
//
// A [Keychain] stores small secrets (the device token and device id) under a
// namespace made of a service name and an access group. Processes that share
// both values share one device identity; processes with different access
// groups are isolated.
//
// Backends:
//
//   - [NewOS]: the operating system credential store (macOS Keychain,
//     Secret Service on Linux, Windows Credential Manager).
//   - [NewRedis]: a Redis keyspace, for server-side or multi-process setups.
//   - [NewMemory]: process-local, for tests and throwaway tools.
//
// # What this package must NOT do
//
//   - Log secret values.
//   - Retry or swallow errors; callers decide how to degrade.
package keychain
