package objects

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/proxysync/internal/snapshot"
)

func serverObj(name string) snapshot.Object {
	return snapshot.Object{
		ID:         name,
		Type:       snapshot.TypeServers,
		Attributes: map[string]any{"parameters": map[string]any{"port": float64(5432)}},
	}
}

func serviceObj(name string, targets ...string) snapshot.Object {
	refs := make([]snapshot.Ref, 0, len(targets))
	for _, tgt := range targets {
		refs = append(refs, snapshot.Ref{ID: tgt, Type: snapshot.TypeServers})
	}
	return snapshot.Object{
		ID:            name,
		Type:          snapshot.TypeServices,
		Attributes:    map[string]any{"router": "readwritesplit"},
		Relationships: map[string]snapshot.Relationship{"servers": {Data: refs}},
	}
}

func TestRuntime_CreateAndList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rt := NewRuntime()

	require.NoError(t, rt.Create(ctx, serverObj("s1")))
	require.NoError(t, rt.Create(ctx, serviceObj("svc", "s1")))

	err := rt.Create(ctx, serverObj("s1"))
	require.ErrorIs(t, err, ErrConflict)

	all, err := rt.Table().ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "s1", all[0].ID)
	assert.Equal(t, "svc", all[1].ID)
	assert.Equal(t, DefaultGlobalName, all[2].ID)
}

func TestRuntime_CreateRejectsDanglingReference(t *testing.T) {
	t.Parallel()

	rt := NewRuntime()
	err := rt.Create(context.Background(), serviceObj("svc", "missing"))
	require.ErrorIs(t, err, ErrDanglingReference)

	_, ok := rt.Get("svc")
	assert.False(t, ok)
}

func TestRuntime_Alter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rt := NewRuntime()
	require.NoError(t, rt.Create(ctx, serverObj("s1")))
	require.NoError(t, rt.Create(ctx, serverObj("s2")))
	require.NoError(t, rt.Create(ctx, serviceObj("svc", "s1")))

	require.NoError(t, rt.Alter(ctx, "svc", serviceObj("svc", "s1", "s2")))
	svc, ok := rt.Get("svc")
	require.True(t, ok)
	assert.Len(t, svc.Refs(), 2)

	err := rt.Alter(ctx, "nope", serverObj("nope"))
	require.ErrorIs(t, err, ErrNotFound)

	err = rt.Alter(ctx, "s1", serviceObj("s1"))
	require.ErrorIs(t, err, ErrConflict)
}

func TestRuntime_AlterDropsReferencesToMissingObjects(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rt := NewRuntime()
	require.NoError(t, rt.Create(ctx, serverObj("s1")))
	require.NoError(t, rt.Create(ctx, serviceObj("svc", "s1")))
	require.NoError(t, rt.Destroy(ctx, "s1", true))

	require.NoError(t, rt.Create(ctx, serverObj("s2")))
	require.NoError(t, rt.Alter(ctx, "svc", serviceObj("svc", "s1", "s2")))
	svc, ok := rt.Get("svc")
	require.True(t, ok)
	assert.Equal(t, []snapshot.Ref{{ID: "s2", Type: snapshot.TypeServers}}, svc.Refs())

	// an existing target of the wrong type is still refused
	require.NoError(t, rt.Create(ctx, serviceObj("other")))
	bad := serviceObj("svc")
	bad.Relationships = map[string]snapshot.Relationship{
		"servers": {Data: []snapshot.Ref{{ID: "other", Type: snapshot.TypeServers}}},
	}
	require.ErrorIs(t, rt.Alter(ctx, "svc", bad), ErrDanglingReference)
}

func TestRuntime_Destroy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rt := NewRuntime()
	require.NoError(t, rt.Create(ctx, serverObj("s1")))
	require.NoError(t, rt.Create(ctx, serviceObj("svc", "s1")))

	err := rt.Destroy(ctx, "s1", false)
	require.ErrorIs(t, err, ErrInUse)

	require.NoError(t, rt.Destroy(ctx, "s1", true))
	_, ok := rt.Get("s1")
	assert.False(t, ok)

	svc, ok := rt.Get("svc")
	require.True(t, ok)
	assert.Empty(t, svc.Refs())

	require.ErrorIs(t, rt.Destroy(ctx, "s1", true), ErrNotFound)
	require.ErrorIs(t, rt.Destroy(ctx, DefaultGlobalName, true), ErrUnsupported)
}

func TestTable_Lookup(t *testing.T) {
	t.Parallel()

	table := NewRuntime(WithGlobalName("node")).Table()

	h, err := table.Lookup(snapshot.TypeGlobal)
	require.NoError(t, err)
	assert.Nil(t, h.Create)
	assert.Nil(t, h.Destroy)
	assert.NotNil(t, h.Alter)

	_, err = table.Lookup("routers")
	require.ErrorIs(t, err, ErrUnknownType)

	globals, err := table[snapshot.TypeGlobal].List(context.Background())
	require.NoError(t, err)
	require.Len(t, globals, 1)
	assert.Equal(t, "node", globals[0].ID)
}
