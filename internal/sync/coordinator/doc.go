// Package coordinator runs sync cycles in the background.
//
// A coordinator first applies the locally cached configuration so the node
// can serve before the shared store is reachable, then calls Manager.Sync
// immediately and on a ticker. The interval carries ±10% jitter so the
// nodes of a cluster spread their reads over time. After a failed cycle the
// next attempt follows an exponential backoff capped at the interval; a
// successful cycle resets it.
//
// Cycles run one at a time on a single goroutine. Trigger asks for an
// immediate cycle, for example from the HTTP API.
//
// Each cycle gets a random cycle id that appears in its log lines and span,
// and is bounded by the configured statement timeout. Failures are logged
// and counted by kind; they never stop the coordinator.
package coordinator
