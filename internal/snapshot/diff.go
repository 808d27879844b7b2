package snapshot

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// Delta is the name-level difference between two snapshots
type Delta struct {
	// Removed holds names present only in the old snapshot
	Removed mapset.Set[string]
	// Added holds names present only in the new snapshot
	Added mapset.Set[string]
	// Common holds names present in both snapshots
	Common mapset.Set[string]
}

// Names returns the set of object names in the snapshot
func (s *Snapshot) Names() mapset.Set[string] {
	names := mapset.NewThreadUnsafeSetWithSize[string](s.Len())
	if s == nil {
		return names
	}
	for _, obj := range s.Objects {
		names.Add(obj.ID)
	}
	return names
}

// Diff compares two snapshots by object name.
//
// Objects are matched purely by name: an object whose type changed while
// keeping its name lands in Common.
func Diff(oldSnap, newSnap *Snapshot) Delta {
	oldNames := oldSnap.Names()
	newNames := newSnap.Names()

	return Delta{
		Removed: oldNames.Difference(newNames),
		Added:   newNames.Difference(oldNames),
		Common:  oldNames.Intersect(newNames),
	}
}

// Empty reports whether the delta carries no additions and no removals
func (d Delta) Empty() bool {
	return d.Removed.Cardinality() == 0 && d.Added.Cardinality() == 0
}
