package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func server(name string) Object {
	return Object{
		ID:         name,
		Type:       TypeServers,
		Attributes: map[string]any{"parameters": map[string]any{"address": "10.0.0.1", "port": float64(5432)}},
	}
}

func monitor(name string, servers ...string) Object {
	refs := make([]Ref, 0, len(servers))
	for _, s := range servers {
		refs = append(refs, Ref{ID: s, Type: TypeServers})
	}
	return Object{
		ID:            name,
		Type:          TypeMonitors,
		Attributes:    map[string]any{"module": "pgmon"},
		Relationships: map[string]Relationship{"servers": {Data: refs}},
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		objects []Object
		wantErr error
	}{
		{
			name:    "valid objects",
			objects: []Object{server("s1"), monitor("m1", "s1")},
		},
		{
			name:    "duplicate name across types",
			objects: []Object{server("x"), monitor("x")},
			wantErr: ErrDuplicateName,
		},
		{
			name:    "unknown type",
			objects: []Object{{ID: "q", Type: "queues"}},
			wantErr: ErrUnknownType,
		},
		{
			name:    "empty name",
			objects: []Object{{Type: TypeServers}},
			wantErr: ErrEmptyName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, err := New("c1", 1, tt.objects)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, s)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.objects), s.Len())
		})
	}
}

func TestObject_WithoutRelationships(t *testing.T) {
	t.Parallel()

	m := monitor("m1", "s1")
	m.Relationships["services"] = Relationship{Data: []Ref{{ID: "svc", Type: TypeServices}}}

	stripped := m.WithoutRelationships("services")
	assert.Contains(t, stripped.Relationships, "servers")
	assert.NotContains(t, stripped.Relationships, "services")
	// the source object is left untouched
	assert.Contains(t, m.Relationships, "services")

	all := m.WithoutRelationships()
	assert.Nil(t, all.Relationships)
	assert.Len(t, m.Relationships, 2)
}

func TestObject_CloneIsDeep(t *testing.T) {
	t.Parallel()

	s := server("s1")
	c := s.Clone()
	c.Attributes["parameters"].(map[string]any)["address"] = "changed"

	assert.Equal(t, "10.0.0.1", s.Attributes["parameters"].(map[string]any)["address"])
}

func TestDiff(t *testing.T) {
	t.Parallel()

	oldSnap, err := New("c1", 1, []Object{server("a"), server("b"), server("c")})
	require.NoError(t, err)
	newSnap, err := New("c1", 2, []Object{server("b"), server("c"), server("d")})
	require.NoError(t, err)

	delta := Diff(oldSnap, newSnap)

	assert.ElementsMatch(t, []string{"a"}, delta.Removed.ToSlice())
	assert.ElementsMatch(t, []string{"d"}, delta.Added.ToSlice())
	assert.ElementsMatch(t, []string{"b", "c"}, delta.Common.ToSlice())
	assert.Equal(t, 0, delta.Removed.Intersect(delta.Added).Cardinality())
	assert.False(t, delta.Empty())
}

func TestDiff_TypeChangeMatchedByName(t *testing.T) {
	t.Parallel()

	oldSnap, err := New("c1", 1, []Object{server("x")})
	require.NoError(t, err)
	newSnap, err := New("c1", 2, []Object{monitor("x")})
	require.NoError(t, err)

	delta := Diff(oldSnap, newSnap)
	assert.True(t, delta.Common.Contains("x"))
	assert.True(t, delta.Empty())
}

func TestDiff_FromEmpty(t *testing.T) {
	t.Parallel()

	newSnap, err := New("c1", 4, []Object{server("a"), monitor("m", "a")})
	require.NoError(t, err)

	delta := Diff(Empty("c1"), newSnap)
	assert.Equal(t, 2, delta.Added.Cardinality())
	assert.Equal(t, 0, delta.Removed.Cardinality())
	assert.Equal(t, 0, delta.Common.Cardinality())
}

func TestEncodeDecode(t *testing.T) {
	t.Parallel()

	s, err := New("prod", 7, []Object{server("s1"), monitor("m1", "s1")})
	require.NoError(t, err)
	s.Writer = "v1.2.0"

	data, err := Encode(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"cluster_id":"prod"`)
	assert.Contains(t, string(data), `"config":[`)
	assert.Contains(t, string(data), `"writer":"v1.2.0"`)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, s, decoded)
}

func TestDecode_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{
			name: "malformed json",
			data: `{"version":`,
		},
		{
			name:    "duplicate names",
			data:    `{"version":1,"cluster_id":"c","config":[{"id":"a","type":"servers"},{"id":"a","type":"filters"}]}`,
			wantErr: ErrDuplicateName,
		},
		{
			name:    "unknown type",
			data:    `{"version":1,"cluster_id":"c","config":[{"id":"a","type":"routers"}]}`,
			wantErr: ErrUnknownType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode([]byte(tt.data))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestDecode_IgnoresLinks(t *testing.T) {
	t.Parallel()

	data := `{"version":2,"cluster_id":"c","config":[{"id":"a","type":"servers","links":{"self":"http://x"},"attributes":{}}]}`
	s, err := Decode([]byte(data))
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())
	assert.Equal(t, "a", s.Objects[0].ID)
}

func TestCapture(t *testing.T) {
	t.Parallel()

	runtime := []Object{
		{ID: "g", Type: TypeGlobal, Attributes: map[string]any{"parameters": map[string]any{"threads": float64(4)}}},
		{
			ID:   "svc",
			Type: TypeServices,
			Attributes: map[string]any{
				"router":     "readwritesplit",
				"parameters": map[string]any{"user": "app", "password": nil},
				"statistics": map[string]any{"connections": float64(12)},
				"state":      "Started",
			},
		},
		server("s1"),
	}

	s, err := Capture("c1", 3, runtime)
	require.NoError(t, err)

	require.Equal(t, 3, s.Len())
	assert.Equal(t, TypeServers, s.Objects[0].Type)
	assert.Equal(t, TypeServices, s.Objects[1].Type)
	assert.Equal(t, TypeGlobal, s.Objects[2].Type)

	svc, ok := s.Find("svc")
	require.True(t, ok)
	assert.Equal(t, map[string]any{
		"router":     "readwritesplit",
		"parameters": map[string]any{"user": "app"},
	}, svc.Attributes)
}
