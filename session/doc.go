// Package session provides durable single-session persistence and compact binary
// session encoding for the authentication client.
//
// # Binary encoding
//
// Sessions are stored in Redis as a compact binary format (schema versions v1–v2).
// The encoder is append-only: new versions add fields but never reinterpret old
// ones. A blob that fails to decode is treated as absent and the key is cleared —
// a session is either fully present or fully absent, never partial.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [Session] model. It does
// NOT decide whether a credential is still usable (token package), coordinate
// renewal (refresh package), or talk to the backend (root package).
//
// # What this package must NOT do
//
//   - Import goAuthClient, refresh, or token (no upward imports).
//   - Mutate a stored session in place — writes are whole-blob replace or
//     compare-and-set.
//   - Interpret the credential string in any way.
package session
