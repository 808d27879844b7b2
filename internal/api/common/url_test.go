package common

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAndValidateURLParam(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		target  string
		want    string
		wantErr string
	}{
		{name: "plain", target: "/objects/db1", want: "db1"},
		{name: "dots dashes underscores", target: "/objects/rw.listener-v1_5432", want: "rw.listener-v1_5432"},
		{name: "escaped slash", target: "/objects/db1%2Fprimary", want: "db1/primary"},
		{name: "escaped space", target: "/objects/db%201", wantErr: "name cannot contain whitespace"},
		{name: "escaped tab", target: "/objects/db%091", wantErr: "name cannot contain whitespace"},
		{name: "only whitespace", target: "/objects/%20%20", wantErr: "name cannot be empty"},
		{name: "bad escape", target: "/objects/db%zz", wantErr: "invalid URL encoding in name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got string
			var err error
			r := chi.NewRouter()
			r.Get("/objects/{name}", func(_ http.ResponseWriter, req *http.Request) {
				got, err = GetAndValidateURLParam(req, "name")
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.URL = targetURL(tt.target)
			r.ServeHTTP(httptest.NewRecorder(), req)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// targetURL parses target, keeping malformed escapes verbatim in Path
func targetURL(target string) *url.URL {
	if u, err := url.Parse(target); err == nil {
		return u
	}
	return &url.URL{Path: target}
}

func TestGetAndValidateURLParam_Missing(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/objects", nil)
	_, err := GetAndValidateURLParam(req, "type")
	require.Error(t, err)
	assert.Equal(t, "type cannot be empty", err.Error())
}
