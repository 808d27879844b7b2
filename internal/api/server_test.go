package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/proxysync/internal/api"
	"github.com/stacklok/proxysync/internal/objects"
	"github.com/stacklok/proxysync/internal/status"
	"github.com/stacklok/proxysync/internal/sync/mocks"
)

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	mockMgr := mocks.NewMockManager(ctrl)
	// No expectations needed - health check doesn't call the manager
	server := api.NewServer(mockMgr, objects.NewRuntime())

	req, err := http.NewRequest("GET", "/health", nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var response map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response["status"])
}

func TestReadinessEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		status         *status.SyncStatus
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "synced",
			status:         &status.SyncStatus{Phase: status.SyncPhaseSynced, ClusterID: "prod"},
			expectedStatus: http.StatusOK,
			expectedBody:   "ready",
		},
		{
			name:           "unsynced",
			status:         &status.SyncStatus{Phase: status.SyncPhaseUnsynced, ClusterID: "prod"},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   "not ready",
		},
		{
			name: "error",
			status: &status.SyncStatus{
				Phase:     status.SyncPhaseError,
				ClusterID: "prod",
				Message:   "no primary available",
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   "not ready",
		},
		{
			name:           "sync disabled",
			status:         &status.SyncStatus{Phase: status.SyncPhaseUnsynced},
			expectedStatus: http.StatusOK,
			expectedBody:   "ready",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			t.Cleanup(ctrl.Finish)

			mockMgr := mocks.NewMockManager(ctrl)
			mockMgr.EXPECT().Status().Return(tt.status)
			server := api.NewServer(mockMgr, objects.NewRuntime())

			req, err := http.NewRequest("GET", "/readiness", nil)
			require.NoError(t, err)

			rr := httptest.NewRecorder()
			server.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)

			var response api.ReadinessResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
			assert.Equal(t, tt.expectedBody, response.Status)
			assert.Equal(t, string(tt.status.Phase), response.Phase)
			assert.Equal(t, tt.status.Message, response.Message)
		})
	}
}

func TestVersionEndpoint(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	server := api.NewServer(mocks.NewMockManager(ctrl), objects.NewRuntime())

	req, err := http.NewRequest("GET", "/version", nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Contains(t, response, "version")
	assert.Contains(t, response, "commit")
	assert.Contains(t, response, "build_date")
	assert.Contains(t, response, "go_version")
	assert.Contains(t, response, "platform")
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	mockMgr := mocks.NewMockManager(ctrl)

	without := api.NewServer(mockMgr, objects.NewRuntime())
	rr := httptest.NewRecorder()
	without.ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("proxysync_config_version 3\n"))
	})
	with := api.NewServer(mockMgr, objects.NewRuntime(), api.WithMetricsHandler(metrics))
	rr = httptest.NewRecorder()
	with.ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "proxysync_config_version")
}

func TestMiddlewaresAndV1Mount(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	mockMgr := mocks.NewMockManager(ctrl)
	mockMgr.EXPECT().Status().Return(&status.SyncStatus{Phase: status.SyncPhaseSynced, Version: 4})

	var seen []string
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = append(seen, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}
	server := api.NewServer(mockMgr, objects.NewRuntime(), api.WithMiddlewares(mw, api.LoggingMiddleware))

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest("GET", "/v1/sync/status", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"/v1/sync/status"}, seen)

	var got status.SyncStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, int64(4), got.Version)
}
