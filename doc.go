// Package goAuthClient provides client-side session and bearer-token lifecycle
// management for services that authenticate against a token-issuing backend:
// durable session persistence, proactive expiry checks, and single-flight
// refresh coordination for concurrent request workloads.
//
// The package is designed for concurrent client workloads: Client methods are safe
// to call from multiple goroutines after initialization through [Builder.Build].
// When many in-flight requests discover an expired credential at once, exactly one
// upstream renewal call is made and every caller observes its outcome.
//
// # Architecture boundaries
//
// goAuthClient is the public surface. It exposes [Client], [Builder], [Config], and
// value types (MetricsSnapshot, Event, etc.). Session persistence lives in the
// session package, single-flight coordination in the refresh package, and credential
// validity rules in the token package. None of those packages import this one.
//
// # What this package must NOT do
//
//   - Expose Redis clients, encoding details, or coordinator internals in its
//     public API.
//   - Perform navigation, rendering, or any presentation-layer side effect —
//     session teardown is reported through an explicit handler and event sink.
//   - Retry a request more than once on an authorization failure.
//
// # Concurrency contract
//
// The session store is the only shared mutable resource. Only the refresh
// coordinator and the lifecycle methods (Login, Logout, Initialize) write it; the
// request pipeline and validity checks read it. A logout racing an in-flight
// refresh always wins: the refresh write-back is a compare-and-set that cannot
// resurrect a cleared session.
package goAuthClient
