package objects

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/stacklok/proxysync/internal/snapshot"
)

// DefaultGlobalName is the name of the global settings object
const DefaultGlobalName = "proxysync"

// Runtime is an in-memory object registry that enforces referential
// integrity between objects. It stands in for the live proxy objects.
type Runtime struct {
	mu         sync.RWMutex
	objects    map[string]snapshot.Object
	order      []string
	globalName string
}

// RuntimeOption configures a Runtime
type RuntimeOption func(*Runtime)

// WithGlobalName sets the name of the global settings object
func WithGlobalName(name string) RuntimeOption {
	return func(r *Runtime) {
		r.globalName = name
	}
}

// NewRuntime creates a runtime holding only the global settings object
func NewRuntime(opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		objects:    make(map[string]snapshot.Object),
		globalName: DefaultGlobalName,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.put(snapshot.Object{
		ID:         r.globalName,
		Type:       snapshot.TypeGlobal,
		Attributes: map[string]any{"parameters": map[string]any{}},
	})
	return r
}

// Table returns the handler table backed by this runtime.
// Global settings can only be altered.
func (r *Runtime) Table() Table {
	t := make(Table, len(snapshot.DeclarationOrder))
	for _, typ := range snapshot.DeclarationOrder {
		h := Handler{
			Create:  r.Create,
			Alter:   r.Alter,
			Destroy: r.Destroy,
			List:    r.lister(typ),
		}
		if typ == snapshot.TypeGlobal {
			h.Create = nil
			h.Destroy = nil
		}
		t[typ] = h
	}
	return t
}

// Get returns a copy of the named object
func (r *Runtime) Get(name string) (snapshot.Object, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	obj, ok := r.objects[name]
	if !ok {
		return snapshot.Object{}, false
	}
	return obj.Clone(), true
}

// Create adds a new object. Every reference it holds must resolve.
func (r *Runtime) Create(_ context.Context, obj snapshot.Object) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !obj.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownType, obj.Type)
	}
	if _, ok := r.objects[obj.ID]; ok {
		return fmt.Errorf("%w: %q", ErrExists, obj.ID)
	}
	if err := r.checkRefs(obj); err != nil {
		return err
	}

	r.put(obj.Clone())
	slog.Debug("Created object", "name", obj.ID, "type", obj.Type)
	return nil
}

// Alter replaces the attributes and relationships of an existing object.
// Integrity is enforced at creation: references to objects that no longer
// exist are dropped, the same way a forced destroy drops them. A reference
// to an existing object of another type is still rejected.
func (r *Runtime) Alter(_ context.Context, name string, obj snapshot.Object) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.objects[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if current.Type != obj.Type {
		return fmt.Errorf("%w: %q is a %s, not a %s", ErrConflict, name, current.Type, obj.Type)
	}
	updated := obj.Clone()
	updated.ID = name
	for _, ref := range obj.Refs() {
		if _, ok := r.objects[ref.ID]; !ok {
			slog.Debug("Dropping reference to missing object", "name", name, "ref", ref.ID, "ref_type", ref.Type)
			updated = dropRefsTo(updated, ref.ID)
		}
	}
	if err := r.checkRefs(updated); err != nil {
		return err
	}

	r.objects[name] = updated
	slog.Debug("Altered object", "name", name, "type", obj.Type)
	return nil
}

// Destroy removes an object. Without force, it fails while other objects
// still reference it; with force, those references are dropped first.
func (r *Runtime) Destroy(_ context.Context, name string, force bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	obj, ok := r.objects[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if obj.Type == snapshot.TypeGlobal {
		return fmt.Errorf("%w: destroy %s", ErrUnsupported, obj.Type)
	}

	dependents := r.dependentsOf(name)
	if len(dependents) > 0 && !force {
		return fmt.Errorf("%w: %q used by %v", ErrInUse, name, dependents)
	}
	for _, dep := range dependents {
		r.objects[dep] = dropRefsTo(r.objects[dep], name)
	}

	delete(r.objects, name)
	r.order = slices.DeleteFunc(r.order, func(n string) bool { return n == name })
	slog.Debug("Destroyed object", "name", name, "type", obj.Type, "force", force)
	return nil
}

// Objects returns copies of every object in creation order
func (r *Runtime) Objects() []snapshot.Object {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]snapshot.Object, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.objects[name].Clone())
	}
	return out
}

func (r *Runtime) lister(typ snapshot.Type) ListFunc {
	return func(_ context.Context) ([]snapshot.Object, error) {
		r.mu.RLock()
		defer r.mu.RUnlock()

		var out []snapshot.Object
		for _, name := range r.order {
			if obj := r.objects[name]; obj.Type == typ {
				out = append(out, obj.Clone())
			}
		}
		return out, nil
	}
}

func (r *Runtime) put(obj snapshot.Object) {
	r.objects[obj.ID] = obj
	r.order = append(r.order, obj.ID)
}

// checkRefs must be called with the lock held
func (r *Runtime) checkRefs(obj snapshot.Object) error {
	for _, ref := range obj.Refs() {
		target, ok := r.objects[ref.ID]
		if !ok || (ref.Type != "" && target.Type != ref.Type) {
			return fmt.Errorf("%w: %q references %s %q", ErrDanglingReference, obj.ID, ref.Type, ref.ID)
		}
	}
	return nil
}

// dependentsOf must be called with the lock held
func (r *Runtime) dependentsOf(name string) []string {
	var deps []string
	for _, n := range r.order {
		for _, ref := range r.objects[n].Refs() {
			if ref.ID == name {
				deps = append(deps, n)
				break
			}
		}
	}
	return deps
}

func dropRefsTo(obj snapshot.Object, name string) snapshot.Object {
	out := obj.Clone()
	for relName, rel := range out.Relationships {
		rel.Data = slices.DeleteFunc(rel.Data, func(ref snapshot.Ref) bool { return ref.ID == name })
		out.Relationships[relName] = rel
	}
	return out
}
