// Package refresh implements single-flight renewal coordination for an expiring
// bearer credential.
//
// # Single-flight cycles
//
// At most one upstream renewal call is in flight at any time. The first caller
// of [Coordinator.Do] becomes the leader and performs the call; concurrent
// callers enqueue as waiters and suspend. When the cycle completes, every
// participant — leader and waiters alike — observes the same outcome: all
// receive the renewed credential, or all receive the same error. Waiters are
// drained in arrival order and the cycle state is discarded, so a later call
// starts a fresh cycle.
//
// The upstream call is never retried within a cycle. A request that fails again
// afterwards starts a new cycle, which bounds renewal traffic to one external
// call per distinct failure event rather than per concurrent caller.
//
// # Architecture boundaries
//
// This package owns the inFlight/waiters state machine and the write-back of a
// successful renewal through the store's compare-and-set. It does not decide
// when a credential needs renewal (token package) and does not know the wire
// shape of the renewal call (injected [Func]).
//
// # What this package must NOT do
//
//   - Import goAuthClient or token (no upward imports).
//   - Mutate the store on a failed cycle.
//   - Overwrite a session that changed while the cycle ran — logout wins.
package refresh
