// Package snapshot models a versioned, cluster-scoped set of runtime
// configuration objects.
//
// A Snapshot is immutable once built: reconciliation and commit produce a
// new Snapshot instead of mutating the current one. Object names share a
// single namespace across every object type, so a name identifies exactly
// one object in a snapshot.
//
// The package also owns the JSON document format used by both the shared
// store payload and the local cache file:
//
//	{"version": 3, "cluster_id": "prod", "config": [ ...objects... ]}
//
// and the name-based Diff used by the reconciler.
package snapshot
