package snapshot

import (
	"errors"
	"fmt"
	"slices"
)

// Type is the tag identifying the kind of a configuration object
type Type string

const (
	// TypeServers identifies backend database servers
	TypeServers Type = "servers"
	// TypeMonitors identifies backend health monitors
	TypeMonitors Type = "monitors"
	// TypeServices identifies routing services
	TypeServices Type = "services"
	// TypeListeners identifies client-facing listeners
	TypeListeners Type = "listeners"
	// TypeFilters identifies request filters
	TypeFilters Type = "filters"
	// TypeGlobal identifies the process-wide global settings object
	TypeGlobal Type = "global"
)

// DeclarationOrder lists the object types in dependency-respecting order.
// Objects of an earlier type never reference objects of a later type at
// creation time.
var DeclarationOrder = []Type{
	TypeServers,
	TypeMonitors,
	TypeServices,
	TypeListeners,
	TypeFilters,
	TypeGlobal,
}

// Valid reports whether t is a known object type
func (t Type) Valid() bool {
	return slices.Contains(DeclarationOrder, t)
}

// Rank returns the position of t in DeclarationOrder, or -1 for unknown types
func (t Type) Rank() int {
	return slices.Index(DeclarationOrder, t)
}

func (t Type) String() string {
	return string(t)
}

var (
	// ErrDuplicateName is returned when two objects in a snapshot share a name
	ErrDuplicateName = errors.New("duplicate object name")
	// ErrUnknownType is returned when an object carries an unrecognized type tag
	ErrUnknownType = errors.New("unknown object type")
	// ErrEmptyName is returned for objects without a name
	ErrEmptyName = errors.New("object name is empty")
)

// Ref points at another object by name and type
type Ref struct {
	ID   string `json:"id"`
	Type Type   `json:"type"`
}

// Relationship is a named list of references to other objects
type Relationship struct {
	Data []Ref `json:"data"`
}

// Object is a single configuration object
type Object struct {
	ID            string                  `json:"id"`
	Type          Type                    `json:"type"`
	Attributes    map[string]any          `json:"attributes,omitempty"`
	Relationships map[string]Relationship `json:"relationships,omitempty"`
}

// Clone returns a deep copy of the object
func (o Object) Clone() Object {
	out := Object{
		ID:   o.ID,
		Type: o.Type,
	}
	if o.Attributes != nil {
		out.Attributes = cloneMap(o.Attributes)
	}
	if o.Relationships != nil {
		out.Relationships = make(map[string]Relationship, len(o.Relationships))
		for name, rel := range o.Relationships {
			out.Relationships[name] = Relationship{Data: slices.Clone(rel.Data)}
		}
	}
	return out
}

// WithoutRelationships returns a copy of the object with the named
// relationships removed. With no names, every relationship is removed.
func (o Object) WithoutRelationships(names ...string) Object {
	out := o.Clone()
	if len(names) == 0 {
		out.Relationships = nil
		return out
	}
	for _, name := range names {
		delete(out.Relationships, name)
	}
	if len(out.Relationships) == 0 {
		out.Relationships = nil
	}
	return out
}

// Refs returns every reference held by the object, across all relationships
func (o Object) Refs() []Ref {
	var refs []Ref
	for _, rel := range o.Relationships {
		refs = append(refs, rel.Data...)
	}
	return refs
}

// Snapshot is a versioned set of configuration objects for one cluster
type Snapshot struct {
	Version   int64
	ClusterID string
	Objects   []Object
	// Writer is the software version of the node that captured the snapshot
	Writer string
}

// New builds a validated snapshot. The object slice is copied.
func New(clusterID string, version int64, objects []Object) (*Snapshot, error) {
	s := &Snapshot{
		Version:   version,
		ClusterID: clusterID,
		Objects:   make([]Object, 0, len(objects)),
	}
	for _, obj := range objects {
		s.Objects = append(s.Objects, obj.Clone())
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Empty returns the version 0 snapshot with no objects
func Empty(clusterID string) *Snapshot {
	return &Snapshot{ClusterID: clusterID}
}

// Validate checks that every object has a name and a known type, and that
// names are unique across the snapshot
func (s *Snapshot) Validate() error {
	seen := make(map[string]struct{}, len(s.Objects))
	for _, obj := range s.Objects {
		if obj.ID == "" {
			return fmt.Errorf("%w (type %q)", ErrEmptyName, obj.Type)
		}
		if !obj.Type.Valid() {
			return fmt.Errorf("%w: %q for object %q", ErrUnknownType, obj.Type, obj.ID)
		}
		if _, ok := seen[obj.ID]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateName, obj.ID)
		}
		seen[obj.ID] = struct{}{}
	}
	return nil
}

// Clone returns a deep copy of the snapshot
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{
		Version:   s.Version,
		ClusterID: s.ClusterID,
		Objects:   make([]Object, 0, len(s.Objects)),
		Writer:    s.Writer,
	}
	for _, obj := range s.Objects {
		out.Objects = append(out.Objects, obj.Clone())
	}
	return out
}

// Find looks up an object by name
func (s *Snapshot) Find(name string) (Object, bool) {
	for _, obj := range s.Objects {
		if obj.ID == name {
			return obj, true
		}
	}
	return Object{}, false
}

// Len returns the number of objects in the snapshot
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Objects)
}

// SortByDeclarationOrder orders objects by type rank, keeping the relative
// order of objects of the same type
func SortByDeclarationOrder(objects []Object) {
	slices.SortStableFunc(objects, func(a, b Object) int {
		return a.Type.Rank() - b.Type.Rank()
	})
}

func cloneMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}
