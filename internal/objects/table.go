// Package objects defines the contract through which configuration objects
// are created, altered, destroyed and listed, and an in-memory runtime that
// implements it.
package objects

import (
	"context"
	"errors"
	"fmt"

	"github.com/stacklok/proxysync/internal/snapshot"
)

var (
	// ErrUnknownType is returned when no handler is registered for a type tag
	ErrUnknownType = errors.New("no handler registered for object type")
	// ErrUnsupported is returned when a handler does not provide an operation
	ErrUnsupported = errors.New("operation not supported for object type")
	// ErrNotFound is returned when a named object does not exist
	ErrNotFound = errors.New("object not found")
	// ErrConflict is returned when an object already exists or changes type
	ErrConflict = errors.New("object conflict")
	// ErrExists is returned when creating a name that is already taken. It
	// matches ErrConflict.
	ErrExists = fmt.Errorf("%w: name already taken", ErrConflict)
	// ErrDanglingReference is returned when an object references a missing object
	ErrDanglingReference = errors.New("reference to missing object")
	// ErrInUse is returned when destroying an object that others still reference
	ErrInUse = errors.New("object is referenced by other objects")
)

// CreateFunc creates a new object
type CreateFunc func(ctx context.Context, obj snapshot.Object) error

// AlterFunc updates an existing object, including its relationships
type AlterFunc func(ctx context.Context, name string, obj snapshot.Object) error

// DestroyFunc removes an object. With force set, references held by other
// objects are removed as well.
type DestroyFunc func(ctx context.Context, name string, force bool) error

// ListFunc returns the live objects of one type
type ListFunc func(ctx context.Context) ([]snapshot.Object, error)

// Handler groups the operations available for one object type.
// A nil operation means the type does not support it.
type Handler struct {
	Create  CreateFunc
	Alter   AlterFunc
	Destroy DestroyFunc
	List    ListFunc
}

// Table maps object type tags to their handlers
type Table map[snapshot.Type]Handler

// Lookup returns the handler registered for the given type
func (t Table) Lookup(typ snapshot.Type) (Handler, error) {
	h, ok := t[typ]
	if !ok {
		return Handler{}, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
	return h, nil
}

// ListAll collects the live objects of every type, in declaration order
func (t Table) ListAll(ctx context.Context) ([]snapshot.Object, error) {
	var all []snapshot.Object
	for _, typ := range snapshot.DeclarationOrder {
		h, ok := t[typ]
		if !ok || h.List == nil {
			continue
		}
		objs, err := h.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", typ, err)
		}
		all = append(all, objs...)
	}
	return all, nil
}
