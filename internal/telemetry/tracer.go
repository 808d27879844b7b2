package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	pxotel "github.com/stacklok/proxysync/internal/otel"
)

// cycleSpanPrefixes name the root spans started by the sync manager and the
// coordinator. They are sampled at the cycle ratio.
var cycleSpanPrefixes = []string{"sync.", "coordinator."}

// TracerProviderOption configures NewTracerProvider
type TracerProviderOption func(*tracerProviderConfig)

type tracerProviderConfig struct {
	serviceName    string
	serviceVersion string
	clusterID      string
	node           string
	tracingConfig  *TracingConfig
	endpoint       string
	insecure       bool
}

// WithTracerServiceName sets service.name on the trace resource
func WithTracerServiceName(name string) TracerProviderOption {
	return func(cfg *tracerProviderConfig) {
		cfg.serviceName = name
	}
}

// WithTracerServiceVersion sets service.version on the trace resource
func WithTracerServiceVersion(version string) TracerProviderOption {
	return func(cfg *tracerProviderConfig) {
		cfg.serviceVersion = version
	}
}

// WithTracerNode tags every span with the cluster and the node exporting it
func WithTracerNode(clusterID, node string) TracerProviderOption {
	return func(cfg *tracerProviderConfig) {
		cfg.clusterID = clusterID
		cfg.node = node
	}
}

// WithTracingConfig sets the tracing section of the configuration
func WithTracingConfig(tc *TracingConfig) TracerProviderOption {
	return func(cfg *tracerProviderConfig) {
		cfg.tracingConfig = tc
	}
}

// WithTracerEndpoint sets the OTLP/HTTP collector endpoint
func WithTracerEndpoint(endpoint string) TracerProviderOption {
	return func(cfg *tracerProviderConfig) {
		cfg.endpoint = endpoint
	}
}

// WithTracerInsecure exports spans over plain HTTP
func WithTracerInsecure(insecure bool) TracerProviderOption {
	return func(cfg *tracerProviderConfig) {
		cfg.insecure = insecure
	}
}

// NewTracerProvider returns an SDK provider exporting over OTLP/HTTP, or a
// no-op provider when tracing is off. The SDK provider is installed as the
// global one and must be shut down by the caller.
func NewTracerProvider(ctx context.Context, opts ...TracerProviderOption) (trace.TracerProvider, error) {
	cfg := &tracerProviderConfig{
		serviceName:    DefaultServiceName,
		serviceVersion: "unknown",
		endpoint:       DefaultEndpoint,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.tracingConfig == nil || !cfg.tracingConfig.Enabled {
		slog.Debug("Tracing disabled")
		return noop.NewTracerProvider(), nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(cfg.resourceAttributes()...),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace resource: %w", err)
	}

	opt := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.endpoint)}
	if cfg.insecure {
		opt = append(opt, otlptracehttp.WithInsecure())
		slog.Warn("Exporting traces over plain HTTP")
	}
	exporter, err := otlptracehttp.New(ctx, opt...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(newSampler(cfg.tracingConfig)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	slog.Info("Tracing initialized",
		"endpoint", cfg.endpoint,
		"cluster", cfg.clusterID,
		"node", cfg.node,
		"sampling_ratio", cfg.tracingConfig.GetSampling(),
		"cycle_sampling_ratio", cfg.tracingConfig.GetCycleSampling())
	return tp, nil
}

func (cfg *tracerProviderConfig) resourceAttributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.serviceName),
		semconv.ServiceVersion(cfg.serviceVersion),
	}
	if cfg.clusterID != "" {
		attrs = append(attrs, pxotel.AttrClusterID.String(cfg.clusterID))
	}
	if cfg.node != "" {
		attrs = append(attrs, pxotel.AttrNode.String(cfg.node))
	}
	return attrs
}

// cycleSampler samples sync cycle roots and request roots at separate ratios
type cycleSampler struct {
	cycles   sdktrace.Sampler
	requests sdktrace.Sampler
}

func newSampler(tc *TracingConfig) sdktrace.Sampler {
	return sdktrace.ParentBased(cycleSampler{
		cycles:   sdktrace.TraceIDRatioBased(tc.GetCycleSampling()),
		requests: sdktrace.TraceIDRatioBased(tc.GetSampling()),
	})
}

func (s cycleSampler) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	if isCycleSpan(p.Name) {
		return s.cycles.ShouldSample(p)
	}
	return s.requests.ShouldSample(p)
}

func (s cycleSampler) Description() string {
	return fmt.Sprintf("CycleSampler{cycles:%s,requests:%s}", s.cycles.Description(), s.requests.Description())
}

func isCycleSpan(name string) bool {
	for _, prefix := range cycleSpanPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
