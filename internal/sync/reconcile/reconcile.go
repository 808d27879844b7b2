// Package reconcile brings the live object set in line with a newer
// configuration snapshot.
//
// A reconcile pass runs in three ordered phases:
//
//  1. Removal: objects only present in the old snapshot are destroyed in
//     reverse declaration order, forcibly, so dependents lose their
//     references instead of blocking the destroy.
//  2. Creation: objects only present in the new snapshot are created in
//     declaration order with the relationships that could point at objects
//     not created yet stripped.
//  3. Link/update: every object that was not newly created, and every
//     service, is altered to its full definition. This restores the
//     relationships stripped during creation.
//
// The first failure aborts the pass. Already applied steps are not undone;
// a later pass over the same snapshots skips destroys of objects already gone
// and alters objects that already exist, so it converges.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/stacklok/proxysync/internal/objects"
	"github.com/stacklok/proxysync/internal/snapshot"
)

// ErrStaleVersion is returned when the new snapshot is not newer than the old one
var ErrStaleVersion = errors.New("snapshot version is not newer than the current one")

// Phase names a step of the reconcile pass
type Phase string

const (
	// PhaseDestroy removes objects that disappeared
	PhaseDestroy Phase = "destroy"
	// PhaseCreate creates new objects without their forward relationships
	PhaseCreate Phase = "create"
	// PhaseAlter applies full definitions, relationships included
	PhaseAlter Phase = "alter"
)

// ApplyError reports the object operation that aborted a reconcile pass
type ApplyError struct {
	Phase Phase
	Type  snapshot.Type
	Name  string
	Err   error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("failed to %s %s %q: %v", e.Phase, e.Type, e.Name, e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}

// Result summarizes a successful reconcile pass
type Result struct {
	Version int64
	Removed []string
	Added   []string
	Altered []string
}

// typePolicy describes how objects of one type are staged during creation
type typePolicy struct {
	// strip lists relationships removed before creation
	strip []string
	// stripAll removes every relationship before creation
	stripAll bool
	// relink re-applies the full definition right after creation
	relink bool
}

// policies holds the creation staging per type. Types without an entry are
// created with their full definition.
var policies = map[snapshot.Type]typePolicy{
	snapshot.TypeServers:  {stripAll: true},
	snapshot.TypeMonitors: {strip: []string{"services"}},
	snapshot.TypeServices: {stripAll: true, relink: true},
}

// Reconciler applies snapshots through an object handler table
type Reconciler struct {
	table objects.Table
}

// New creates a reconciler dispatching through table
func New(table objects.Table) *Reconciler {
	return &Reconciler{table: table}
}

// Process moves the live object set from oldSnap to newSnap
func (r *Reconciler) Process(ctx context.Context, oldSnap, newSnap *snapshot.Snapshot) (*Result, error) {
	if newSnap.Version <= oldSnap.Version {
		return nil, fmt.Errorf("%w: current %d, new %d", ErrStaleVersion, oldSnap.Version, newSnap.Version)
	}

	delta := snapshot.Diff(oldSnap, newSnap)
	result := &Result{Version: newSnap.Version}

	slog.Debug("Reconciling configuration",
		"cluster", newSnap.ClusterID,
		"from_version", oldSnap.Version,
		"to_version", newSnap.Version,
		"removed", delta.Removed.Cardinality(),
		"added", delta.Added.Cardinality(),
		"common", delta.Common.Cardinality())

	oldObjs, newObjs := ordered(oldSnap), ordered(newSnap)

	for _, obj := range slices.Backward(oldObjs) {
		if !delta.Removed.Contains(obj.ID) {
			continue
		}
		ok, err := r.destroy(ctx, obj)
		if err != nil {
			return nil, err
		}
		if ok {
			result.Removed = append(result.Removed, obj.ID)
		}
	}

	created := make(map[string]bool, delta.Added.Cardinality())
	for _, obj := range newObjs {
		if !delta.Added.Contains(obj.ID) {
			continue
		}
		ok, err := r.create(ctx, obj)
		if err != nil {
			return nil, err
		}
		if ok {
			created[obj.ID] = true
			result.Added = append(result.Added, obj.ID)
		}
	}

	for _, obj := range newObjs {
		if created[obj.ID] && !policies[obj.Type].relink {
			continue
		}
		if err := r.alter(ctx, obj); err != nil {
			return nil, err
		}
		result.Altered = append(result.Altered, obj.ID)
	}

	return result, nil
}

// ordered returns the snapshot objects in declaration order, whatever order
// the payload listed them in
func ordered(s *snapshot.Snapshot) []snapshot.Object {
	objs := slices.Clone(s.Objects)
	snapshot.SortByDeclarationOrder(objs)
	return objs
}

// destroy reports false when the object was already gone, as after an
// earlier pass that failed part way
func (r *Reconciler) destroy(ctx context.Context, obj snapshot.Object) (bool, error) {
	h, err := r.table.Lookup(obj.Type)
	if err != nil {
		return false, &ApplyError{Phase: PhaseDestroy, Type: obj.Type, Name: obj.ID, Err: err}
	}
	if h.Destroy == nil {
		return false, &ApplyError{Phase: PhaseDestroy, Type: obj.Type, Name: obj.ID, Err: objects.ErrUnsupported}
	}
	if err := h.Destroy(ctx, obj.ID, true); err != nil {
		if errors.Is(err, objects.ErrNotFound) {
			slog.Debug("Object already destroyed", "name", obj.ID, "type", obj.Type)
			return false, nil
		}
		return false, &ApplyError{Phase: PhaseDestroy, Type: obj.Type, Name: obj.ID, Err: err}
	}
	slog.Debug("Destroyed object", "name", obj.ID, "type", obj.Type)
	return true, nil
}

// create reports false for types without a create operation and for names
// that already exist. Such objects are configured by the alter phase instead.
func (r *Reconciler) create(ctx context.Context, obj snapshot.Object) (bool, error) {
	h, err := r.table.Lookup(obj.Type)
	if err != nil {
		return false, &ApplyError{Phase: PhaseCreate, Type: obj.Type, Name: obj.ID, Err: err}
	}
	if h.Create == nil {
		return false, nil
	}

	stripped := obj
	switch p := policies[obj.Type]; {
	case p.stripAll:
		stripped = obj.WithoutRelationships()
	case len(p.strip) > 0:
		stripped = obj.WithoutRelationships(p.strip...)
	}

	if err := h.Create(ctx, stripped); err != nil {
		// the alter phase brings an existing object up to date
		if errors.Is(err, objects.ErrExists) {
			slog.Debug("Object already exists", "name", obj.ID, "type", obj.Type)
			return false, nil
		}
		return false, &ApplyError{Phase: PhaseCreate, Type: obj.Type, Name: obj.ID, Err: err}
	}
	slog.Debug("Created object", "name", obj.ID, "type", obj.Type)
	return true, nil
}

func (r *Reconciler) alter(ctx context.Context, obj snapshot.Object) error {
	h, err := r.table.Lookup(obj.Type)
	if err != nil {
		return &ApplyError{Phase: PhaseAlter, Type: obj.Type, Name: obj.ID, Err: err}
	}
	if h.Alter == nil {
		return &ApplyError{Phase: PhaseAlter, Type: obj.Type, Name: obj.ID, Err: objects.ErrUnsupported}
	}
	if err := h.Alter(ctx, obj.ID, obj); err != nil {
		return &ApplyError{Phase: PhaseAlter, Type: obj.Type, Name: obj.ID, Err: err}
	}
	return nil
}
