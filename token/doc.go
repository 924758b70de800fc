// Package token decides whether a held credential is still safe to use and
// derives credential expiry from server-issued tokens.
//
// Validity is a pure function of the session, the clock, and a safety margin:
// a credential is treated as expired before the server would reject it, so
// renewal happens proactively instead of after a guaranteed failed round trip.
//
// # What this package must NOT do
//
//   - Verify token signatures. The client holds no verification key; the
//     backend enforces the token. The exp claim is only a freshness hint.
//   - Perform I/O or mutate session state.
package token
