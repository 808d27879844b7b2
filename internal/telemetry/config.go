package telemetry

import (
	"errors"
	"fmt"
)

const (
	// DefaultServiceName identifies proxysync in exported telemetry
	DefaultServiceName = "proxysync"

	// DefaultEndpoint is the OTLP/HTTP collector address
	DefaultEndpoint = "localhost:4318"

	// DefaultSampling is the ratio applied to API request traces
	DefaultSampling = 0.05

	// DefaultCycleSampling is the ratio applied to sync cycle and change
	// traces. Cycles run every few seconds at most, so all of them are kept.
	DefaultCycleSampling = 1.0
)

// Config is the telemetry section of the proxysync configuration file
type Config struct {
	// Enabled turns on the tracer and meter providers. When false both are no-ops.
	Enabled bool `yaml:"enabled"`

	// ServiceName defaults to "proxysync"
	ServiceName string `yaml:"serviceName,omitempty"`

	// ServiceVersion defaults to the release the binary was built from
	ServiceVersion string `yaml:"serviceVersion,omitempty"`

	// Endpoint is the OTLP/HTTP collector as "host:port"
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure exports over plain HTTP
	Insecure bool `yaml:"insecure,omitempty"`

	Tracing *TracingConfig `yaml:"tracing,omitempty"`
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
}

// TracingConfig controls span export
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Sampling is the ratio of API request traces kept, 0 meaning the default
	Sampling float64 `yaml:"sampling,omitempty"`

	// CycleSampling is the ratio of sync cycle, commit and change traces
	// kept, 0 meaning the default
	CycleSampling float64 `yaml:"cycleSampling,omitempty"`
}

// MetricsConfig controls metric export
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// Prometheus serves metrics on /metrics instead of pushing them over OTLP
	Prometheus bool `yaml:"prometheus,omitempty"`
}

// GetServiceName returns the service name or DefaultServiceName
func (c *Config) GetServiceName() string {
	if c.ServiceName == "" {
		return DefaultServiceName
	}
	return c.ServiceName
}

// GetServiceVersion returns the service version or "unknown"
func (c *Config) GetServiceVersion() string {
	if c.ServiceVersion == "" {
		return "unknown"
	}
	return c.ServiceVersion
}

// GetEndpoint returns the collector endpoint or DefaultEndpoint
func (c *Config) GetEndpoint() string {
	if c.Endpoint == "" {
		return DefaultEndpoint
	}
	return c.Endpoint
}

// GetInsecure reports whether export uses plain HTTP
func (c *Config) GetInsecure() bool {
	return c.Insecure
}

// GetSampling returns the request sampling ratio. An explicit 0 cannot be
// told apart from an unset value, so it also yields DefaultSampling.
func (c *TracingConfig) GetSampling() float64 {
	if c.Sampling == 0 {
		return DefaultSampling
	}
	return c.Sampling
}

// GetCycleSampling returns the sync cycle sampling ratio
func (c *TracingConfig) GetCycleSampling() float64 {
	if c.CycleSampling == 0 {
		return DefaultCycleSampling
	}
	return c.CycleSampling
}

// Validate checks the enabled signals. Nil or disabled telemetry is valid.
func (c *Config) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}

	var errs []error
	if err := c.Tracing.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tracing: %w", err))
	}
	if err := c.Metrics.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("metrics: %w", err))
	}
	return errors.Join(errs...)
}

// Validate checks both sampling ratios lie within [0, 1]
func (c *TracingConfig) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}
	if err := validRatio(c.Sampling); err != nil {
		return fmt.Errorf("sampling %w", err)
	}
	if err := validRatio(c.CycleSampling); err != nil {
		return fmt.Errorf("cycleSampling %w", err)
	}
	return nil
}

// Validate accepts every metrics configuration
func (c *MetricsConfig) Validate() error {
	return nil
}

func validRatio(r float64) error {
	if r < 0 || r > 1 {
		return fmt.Errorf("must be between 0.0 and 1.0, got %f", r)
	}
	return nil
}
