package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func newTestTracerProvider(t *testing.T) (*tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return exporter, tp
}

// objectRouter mounts a handler on the object route so span names carry the
// chi pattern
func objectRouter(tp *sdktrace.TracerProvider, status int) http.Handler {
	r := chi.NewRouter()
	r.Use(TracingMiddleware(tp))
	r.Put("/v1/objects/{type}/{name}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	})
	return r
}

func TestTracingMiddleware_NilProvider(t *testing.T) {
	t.Parallel()

	called := false
	h := TracingMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusAccepted)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/sync", nil))
	assert.True(t, called)
	assert.Equal(t, http.StatusAccepted, rr.Code)
}

func TestTracingMiddleware_RouteSpan(t *testing.T) {
	t.Parallel()

	exporter, tp := newTestTracerProvider(t)
	req := httptest.NewRequest(http.MethodPut, "/v1/objects/servers/db1", nil)
	req.Header.Set("User-Agent", "proxysync-cli/1.0")
	objectRouter(tp, http.StatusCreated).ServeHTTP(httptest.NewRecorder(), req)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "PUT /v1/objects/{type}/{name}", span.Name)
	assert.Equal(t, codes.Ok, span.Status.Code)

	attrs := map[string]any{}
	for _, kv := range span.Attributes {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, http.MethodPut, attrs[string(semconv.HTTPRequestMethodKey)])
	assert.Equal(t, "/v1/objects/servers/db1", attrs[string(semconv.URLPathKey)])
	assert.Equal(t, "/v1/objects/{type}/{name}", attrs[string(semconv.HTTPRouteKey)])
	assert.Equal(t, "proxysync-cli/1.0", attrs[string(semconv.UserAgentOriginalKey)])
	assert.Equal(t, int64(http.StatusCreated), attrs[string(semconv.HTTPResponseStatusCodeKey)])
}

func TestTracingMiddleware_StatusCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   codes.Code
	}{
		{status: http.StatusOK, want: codes.Ok},
		{status: http.StatusConflict, want: codes.Error},
		{status: http.StatusUnprocessableEntity, want: codes.Error},
		{status: http.StatusServiceUnavailable, want: codes.Error},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			t.Parallel()
			exporter, tp := newTestTracerProvider(t)
			objectRouter(tp, tt.status).ServeHTTP(httptest.NewRecorder(),
				httptest.NewRequest(http.MethodPut, "/v1/objects/services/rw", nil))

			spans := exporter.GetSpans()
			require.Len(t, spans, 1)
			assert.Equal(t, tt.want, spans[0].Status.Code)
		})
	}
}

func TestTracingMiddleware_UnroutedPath(t *testing.T) {
	t.Parallel()

	exporter, tp := newTestTracerProvider(t)
	h := TracingMiddleware(tp)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/config", nil))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET unknown_route", spans[0].Name)
}

func TestTracingMiddleware_TraceContextExtraction(t *testing.T) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	exporter, tp := newTestTracerProvider(t)
	req := httptest.NewRequest(http.MethodPut, "/v1/objects/servers/db1", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	objectRouter(tp, http.StatusOK).ServeHTTP(httptest.NewRecorder(), req)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", spans[0].SpanContext.TraceID().String())
	assert.Equal(t, "00f067aa0ba902b7", spans[0].Parent.SpanID().String())
}

func TestTracingMiddleware_SkipsProbeEndpoints(t *testing.T) {
	t.Parallel()

	for _, path := range []string{"/health", "/readiness", "/metrics"} {
		t.Run(path, func(t *testing.T) {
			t.Parallel()
			exporter, tp := newTestTracerProvider(t)

			called := false
			h := TracingMiddleware(tp)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			}))
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))

			assert.True(t, called)
			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Empty(t, exporter.GetSpans())
		})
	}
}

func TestTruncateUserAgent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "curl/8.5.0", truncateUserAgent("curl/8.5.0"))
	exact := strings.Repeat("a", MaxUserAgentLength)
	assert.Equal(t, exact, truncateUserAgent(exact))
	assert.Equal(t, exact, truncateUserAgent(exact+strings.Repeat("b", 100)))
}
