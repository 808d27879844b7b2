package snapshot

import (
	"encoding/json"
	"fmt"
	"maps"
)

// document is the serialized form shared by the store payload and the cache file
type document struct {
	Version   int64    `json:"version"`
	ClusterID string   `json:"cluster_id"`
	Config    []Object `json:"config"`
	Writer    string   `json:"writer,omitempty"`
}

// keptAttributes are the object attributes that are meaningful across nodes.
// Everything else describes node-local runtime state.
var keptAttributes = []string{"parameters", "module", "router"}

// Encode serializes the snapshot into its JSON document form
func Encode(s *Snapshot) ([]byte, error) {
	doc := document{
		Version:   s.Version,
		ClusterID: s.ClusterID,
		Config:    s.Objects,
		Writer:    s.Writer,
	}
	if doc.Config == nil {
		doc.Config = []Object{}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// Decode parses and validates a JSON snapshot document
func Decode(data []byte) (*Snapshot, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	s := &Snapshot{
		Version:   doc.Version,
		ClusterID: doc.ClusterID,
		Objects:   doc.Config,
		Writer:    doc.Writer,
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid snapshot document: %w", err)
	}
	return s, nil
}

// TrimAttributes keeps only the shareable attributes of a runtime object and
// drops null values from them
func TrimAttributes(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(keptAttributes))
	for _, key := range keptAttributes {
		v, ok := attrs[key]
		if !ok || v == nil {
			continue
		}
		out[key] = dropNulls(v)
	}
	return out
}

// Capture turns runtime objects into a snapshot: attributes are trimmed,
// links dropped, and objects ordered by declaration order
func Capture(clusterID string, version int64, objects []Object) (*Snapshot, error) {
	captured := make([]Object, 0, len(objects))
	for _, obj := range objects {
		c := obj.Clone()
		c.Attributes = TrimAttributes(c.Attributes)
		captured = append(captured, c)
	}
	SortByDeclarationOrder(captured)
	return New(clusterID, version, captured)
}

func dropNulls(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := maps.Clone(val)
		for k, item := range out {
			if item == nil {
				delete(out, k)
				continue
			}
			out[k] = dropNulls(item)
		}
		return out
	case []any:
		out := make([]any, 0, len(val))
		for _, item := range val {
			if item == nil {
				continue
			}
			out = append(out, dropNulls(item))
		}
		return out
	default:
		return val
	}
}
