// Package telemetry provides OpenTelemetry instrumentation for the sync daemon.
// It supports configurable tracing with an OTLP exporter and metrics pushed
// over OTLP or served to Prometheus.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// ConfigMetricsMeterName is the name used for the configuration metrics meter
	ConfigMetricsMeterName = "github.com/stacklok/proxysync/config"

	// SyncMetricsMeterName is the name used for the sync metrics meter
	SyncMetricsMeterName = "github.com/stacklok/proxysync/sync"
)

// ConfigMetrics holds the OpenTelemetry instruments for the applied configuration
type ConfigMetrics struct {
	version     metric.Int64Gauge
	objectCount metric.Int64Gauge
}

// NewConfigMetrics creates a new ConfigMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewConfigMetrics(provider metric.MeterProvider) (*ConfigMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(ConfigMetricsMeterName)

	version, err := meter.Int64Gauge(
		"proxysync_config_version",
		metric.WithDescription("Configuration version applied on this node"),
		metric.WithUnit("{version}"),
	)
	if err != nil {
		return nil, err
	}

	objectCount, err := meter.Int64Gauge(
		"proxysync_config_objects",
		metric.WithDescription("Number of objects in the applied configuration"),
		metric.WithUnit("{object}"),
	)
	if err != nil {
		return nil, err
	}

	return &ConfigMetrics{
		version:     version,
		objectCount: objectCount,
	}, nil
}

// RecordApplied records the applied version and object count of a cluster
func (m *ConfigMetrics) RecordApplied(ctx context.Context, clusterID string, version int64, objects int) {
	if m == nil || m.version == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("cluster", clusterID))
	m.version.Record(ctx, version, attrs)
	m.objectCount.Record(ctx, int64(objects), attrs)
}

// SyncMetrics holds the OpenTelemetry instruments for sync cycle metrics
type SyncMetrics struct {
	cycleDuration metric.Float64Histogram
	failures      metric.Int64Counter
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	cycleDuration, err := meter.Float64Histogram(
		"proxysync_sync_duration_seconds",
		metric.WithDescription("Duration of sync cycles in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter(
		"proxysync_sync_failures_total",
		metric.WithDescription("Number of failed sync operations by error kind"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		cycleDuration: cycleDuration,
		failures:      failures,
	}, nil
}

// RecordSyncDuration records the duration of a sync cycle for a cluster
func (m *SyncMetrics) RecordSyncDuration(ctx context.Context, clusterID string, duration time.Duration, success bool) {
	if m == nil || m.cycleDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("cluster", clusterID),
		attribute.Bool("success", success),
	}

	m.cycleDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordFailure counts a failed sync operation of the given kind
func (m *SyncMetrics) RecordFailure(ctx context.Context, clusterID, kind string) {
	if m == nil || m.failures == nil {
		return
	}

	m.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cluster", clusterID),
		attribute.String("kind", kind),
	))
}
