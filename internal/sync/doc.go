// Package sync keeps the runtime configuration of one node in line with the
// configuration shared by every node of its cluster.
//
// # Protocol
//
// The shared store holds one row per cluster with a monotonically
// increasing version and the encoded snapshot. A node changes the
// configuration in three steps:
//
//   - Start locks the cluster row and verifies that the stored version
//     equals the locally applied one. A mismatch is a Conflict.
//   - The caller applies its change to the live objects.
//   - Commit captures the live objects, writes them at version+1 with a
//     compare-and-swap and refreshes the local cache.
//
// Sync pulls in the other direction: when the stored version is newer than
// the applied one the snapshot is decoded and reconciled against the live
// objects, then cached.
//
// # Coordinator Package
//
// The sync/coordinator subpackage runs Sync on a jittered interval with
// backoff after failures and persists the resulting status.
//
// # Errors
//
// Every failure is returned as *Error with a Kind (Connection, Schema,
// Conflict, StaleVersion, FatalApply, IO). A failure never advances the
// applied version.
//
// An empty cluster id disables synchronization. Every operation then
// succeeds without touching the shared store.
package sync
