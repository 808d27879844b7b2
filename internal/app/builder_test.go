package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/proxysync/internal/config"
	"github.com/stacklok/proxysync/internal/db"
	"github.com/stacklok/proxysync/internal/objects"
	"github.com/stacklok/proxysync/internal/snapshot"
	"github.com/stacklok/proxysync/internal/status"
	selectormocks "github.com/stacklok/proxysync/internal/sync/selector/mocks"
	storemocks "github.com/stacklok/proxysync/internal/sync/store/mocks"
)

func createValidTestConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		ClusterID:  "prod",
		DataDir:    t.TempDir(),
		SyncPolicy: &config.SyncPolicyConfig{Interval: "30s"},
		Database: &config.DatabaseConfig{
			User:     "proxysync",
			Database: "proxysync",
			SSLMode:  "disable",
		},
		Members: []config.MemberConfig{
			{Name: "db1", Host: "10.0.0.1"},
			{Name: "db2", Host: "10.0.0.2"},
		},
	}
}

func TestBaseConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg := createValidTestConfig(t)
	built, err := baseConfig(WithConfig(cfg))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultHTTPAddress, built.address)
	assert.Equal(t, cfg.DataDir, built.dataDir)
	assert.Equal(t, defaultRequestTimeout, built.requestTimeout)

	cfg.HTTP = &config.HTTPConfig{Address: "127.0.0.1:9191"}
	built, err = baseConfig(WithConfig(cfg))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9191", built.address)
}

func TestBaseConfig_RequiresConfig(t *testing.T) {
	t.Parallel()

	_, err := baseConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config cannot be nil")
}

func TestBaseConfig_Options(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	built, err := baseConfig(
		WithConfig(createValidTestConfig(t)),
		WithAddress(":9090"),
		WithDataDirectory(dir),
	)
	require.NoError(t, err)
	assert.Equal(t, ":9090", built.address)
	assert.Equal(t, dir, built.dataDir)
}

func TestWithAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{name: "port only", addr: ":8080"},
		{name: "localhost", addr: "localhost:8080"},
		{name: "ipv4", addr: "10.1.2.3:80"},
		{name: "empty", addr: "", wantErr: true},
		{name: "missing port", addr: ":", wantErr: true},
		{name: "no colon", addr: "8080", wantErr: true},
		{name: "bad port", addr: ":http-alt", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := &proxySyncAppConfig{}
			err := WithAddress(tt.addr)(cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.addr, cfg.address)
		})
	}
}

// The tests below build a real manager, which is one per process, so they
// do not run in parallel.

func TestNewProxySyncApp_SyncDisabled(t *testing.T) {
	cfg := createValidTestConfig(t)
	cfg.ClusterID = ""
	cfg.Database = nil
	cfg.Members = nil

	app, err := NewProxySyncApp(context.Background(), WithConfig(cfg), WithAddress("127.0.0.1:0"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.components.SyncManager.Close(context.Background()) })

	handler := app.GetHTTPServer().Handler

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readiness", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/sync", nil))
	assert.Equal(t, http.StatusConflict, rr.Code)

	// local changes are applied without a store
	req := httptest.NewRequest(http.MethodPut, "/v1/objects/servers/db1",
		strings.NewReader(`{"attributes":{"address":"10.0.0.1"}}`))
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusCreated, rr.Code)

	_, ok := app.Components().Objects.Get("db1")
	assert.True(t, ok)
}

func TestNewProxySyncApp_SyncEnabled(t *testing.T) {
	ctrl := gomock.NewController(t)

	gateway := storemocks.NewMockGateway(ctrl)
	sel := selectormocks.NewMockSelector(ctrl)
	primary := db.Endpoint{Name: "db1", Host: "10.0.0.1", Port: 5432}

	sel.EXPECT().Primary(gomock.Any()).Return(primary, nil)
	gateway.EXPECT().Connect(gomock.Any(), primary).Return(nil)
	gateway.EXPECT().ReadNewer(gomock.Any(), "prod", int64(0)).Return(nil, int64(0), false, nil)
	gateway.EXPECT().Close(gomock.Any()).Return(nil).AnyTimes()

	rt := objects.NewRuntime()
	cfg := createValidTestConfig(t)
	app, err := NewProxySyncApp(context.Background(),
		WithConfig(cfg),
		WithAddress("127.0.0.1:0"),
		WithObjects(rt),
		WithStoreGateway(gateway),
		WithSelector(sel),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.components.SyncManager.Close(context.Background()) })

	assert.Same(t, rt, app.Components().Objects)

	res, err := app.Components().SyncManager.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "db1", res.Primary)

	st := app.Components().SyncManager.Status()
	assert.Equal(t, status.SyncPhaseSynced, st.Phase)
	assert.Equal(t, "prod", st.ClusterID)

	rr := httptest.NewRecorder()
	app.GetHTTPServer().Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/config", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	snap, err := snapshot.Decode(rr.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "prod", snap.ClusterID)
}

func TestNewProxySyncApp_MissingDatabase(t *testing.T) {
	cfg := createValidTestConfig(t)
	cfg.Database = nil

	_, err := NewProxySyncApp(context.Background(), WithConfig(cfg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create database dialer")
}
