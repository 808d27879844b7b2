package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Getters(t *testing.T) {
	t.Parallel()

	empty := &Config{}
	assert.Equal(t, DefaultServiceName, empty.GetServiceName())
	assert.Equal(t, "unknown", empty.GetServiceVersion())
	assert.Equal(t, DefaultEndpoint, empty.GetEndpoint())
	assert.False(t, empty.GetInsecure())

	set := &Config{
		ServiceName:    "proxysync-edge",
		ServiceVersion: "1.4.0",
		Endpoint:       "otel-collector.monitoring:4318",
		Insecure:       true,
	}
	assert.Equal(t, "proxysync-edge", set.GetServiceName())
	assert.Equal(t, "1.4.0", set.GetServiceVersion())
	assert.Equal(t, "otel-collector.monitoring:4318", set.GetEndpoint())
	assert.True(t, set.GetInsecure())
}

func TestTracingConfig_GetSampling(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultSampling, (&TracingConfig{Enabled: true}).GetSampling())
	assert.Equal(t, 0.5, (&TracingConfig{Enabled: true, Sampling: 0.5}).GetSampling())
	assert.Equal(t, 1.0, (&TracingConfig{Enabled: true, Sampling: 1}).GetSampling())

	assert.Equal(t, DefaultCycleSampling, (&TracingConfig{Enabled: true, Sampling: 0.5}).GetCycleSampling())
	assert.Equal(t, 0.2, (&TracingConfig{Enabled: true, CycleSampling: 0.2}).GetCycleSampling())
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  *Config
		wantErr string
	}{
		{name: "nil", config: nil},
		{name: "disabled ignores bad sampling", config: &Config{
			Tracing: &TracingConfig{Enabled: true, Sampling: 7},
		}},
		{name: "enabled without signals", config: &Config{Enabled: true}},
		{name: "full", config: &Config{
			Enabled:  true,
			Endpoint: "localhost:4318",
			Insecure: true,
			Tracing:  &TracingConfig{Enabled: true, Sampling: 0.25},
			Metrics:  &MetricsConfig{Enabled: true, Prometheus: true},
		}},
		{name: "disabled tracing ignores bad sampling", config: &Config{
			Enabled: true,
			Tracing: &TracingConfig{Sampling: -1},
		}},
		{name: "sampling above one", config: &Config{
			Enabled: true,
			Tracing: &TracingConfig{Enabled: true, Sampling: 1.1},
		}, wantErr: "tracing: sampling must be between 0.0 and 1.0"},
		{name: "negative sampling", config: &Config{
			Enabled: true,
			Tracing: &TracingConfig{Enabled: true, Sampling: -0.1},
		}, wantErr: "tracing: sampling must be between 0.0 and 1.0"},
		{name: "cycle sampling above one", config: &Config{
			Enabled: true,
			Tracing: &TracingConfig{Enabled: true, Sampling: 0.5, CycleSampling: 2},
		}, wantErr: "tracing: cycleSampling must be between 0.0 and 1.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.config.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestMetricsConfig_Validate(t *testing.T) {
	t.Parallel()

	var nilCfg *MetricsConfig
	require.NoError(t, nilCfg.Validate())
	require.NoError(t, (&MetricsConfig{}).Validate())
	require.NoError(t, (&MetricsConfig{Enabled: true, Prometheus: true}).Validate())
}
