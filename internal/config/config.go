// Package config provides configuration loading and management for the proxysync daemon.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stacklok/proxysync/internal/telemetry"
)

const (
	// DefaultSyncInterval is the pull interval used when none is configured
	DefaultSyncInterval = time.Minute

	// DefaultConnectTimeout bounds dialing a member
	DefaultConnectTimeout = 5 * time.Second

	// DefaultStatementTimeout bounds a whole sync cycle against the store
	DefaultStatementTimeout = 30 * time.Second

	// DefaultHTTPAddress is the listen address of the status API
	DefaultHTTPAddress = ":8080"

	// DefaultPort is the member port used when none is configured
	DefaultPort = 5432

	// PasswordEnvVar is the environment variable holding the database password
	PasswordEnvVar = "PROXYSYNC_DATABASE_PASSWORD"

	// EnvPrefix prefixes every environment variable read through viper
	EnvPrefix = "PROXYSYNC"

	// maxClusterIDLength matches the width of the cluster column
	maxClusterIDLength = 256
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// ClusterID names the cluster whose configuration this node shares.
	// An empty value disables synchronization.
	ClusterID string `yaml:"clusterId,omitempty"`

	// DataDir holds the local configuration cache
	DataDir string `yaml:"dataDir"`

	// SyncPolicy controls how often the node pulls from the shared store
	SyncPolicy *SyncPolicyConfig `yaml:"syncPolicy,omitempty"`

	// Database holds the credentials used against every member
	Database *DatabaseConfig `yaml:"database,omitempty"`

	// Members are the backend database servers of the cluster. The
	// write-capable primary among them hosts the shared store.
	Members []MemberConfig `yaml:"members,omitempty"`

	// HTTP configures the status API
	HTTP *HTTPConfig `yaml:"http,omitempty"`

	// Telemetry configures tracing and metrics
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// SyncPolicyConfig defines synchronization timing
type SyncPolicyConfig struct {
	// Interval is the time between pull cycles (e.g., "30s", "5m")
	Interval string `yaml:"interval"`

	// StatementTimeout bounds the store round trips of one cycle
	StatementTimeout string `yaml:"statementTimeout,omitempty"`
}

// MemberConfig describes one backend database server
type MemberConfig struct {
	Name string `yaml:"name"`
	Host string `yaml:"host"`
	Port int    `yaml:"port,omitempty"`
}

// Address returns host:port of the member
func (m MemberConfig) Address() string {
	port := m.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(m.Host, strconv.Itoa(port))
}

// HTTPConfig configures the status API listener
type HTTPConfig struct {
	Address string `yaml:"address,omitempty"`
}

// DatabaseConfig defines database connection settings shared by all members
type DatabaseConfig struct {
	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password
	// This is the recommended approach for production deployments
	// The file should contain only the password with optional trailing whitespace
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// ConnectTimeout bounds dialing a member (e.g., "5s")
	ConnectTimeout string `yaml:"connectTimeout,omitempty"`

	// DynamicAuth configures short-lived credentials instead of a password
	DynamicAuth *DynamicAuthConfig `yaml:"dynamicAuth,omitempty"`
}

// DynamicAuthConfig selects a dynamic authentication method
type DynamicAuthConfig struct {
	AWSRDSIAM *DynamicAuthAWSRDSIAM `yaml:"awsRdsIam,omitempty"`
}

// DynamicAuthAWSRDSIAM configures AWS RDS IAM authentication
type DynamicAuthAWSRDSIAM struct {
	// Region is the AWS region, or "detect" to read it from instance metadata
	Region string `yaml:"region"`
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from PROXYSYNC_DATABASE_PASSWORD environment variable
//
// The password from file will have leading/trailing whitespace trimmed.
func (d *DatabaseConfig) GetPassword() (string, error) {
	if d.PasswordFile != "" {
		cleanPath := filepath.Clean(d.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}

		return strings.TrimSpace(string(data)), nil
	}

	if envPassword := os.Getenv(PasswordEnvVar); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or %s environment variable", PasswordEnvVar,
	)
}

// GetSSLMode returns the SSL mode, defaulting to "require"
func (d *DatabaseConfig) GetSSLMode() string {
	if d.SSLMode == "" {
		return "require"
	}
	return d.SSLMode
}

// GetConnectTimeout returns the dial timeout
func (d *DatabaseConfig) GetConnectTimeout() time.Duration {
	return parseDurationOr(d.ConnectTimeout, DefaultConnectTimeout)
}

// BuildConnectionString builds a PostgreSQL URL for the given address
// (host:port). An empty password is omitted so pgpass and dynamic auth
// can supply it.
func (d *DatabaseConfig) BuildConnectionString(address, password string) string {
	u := &url.URL{
		Scheme: "postgres",
		Host:   address,
		Path:   "/" + d.Database,
	}
	if password != "" {
		u.User = url.UserPassword(d.User, password)
	} else {
		u.User = url.User(d.User)
	}

	q := url.Values{}
	q.Set("sslmode", d.GetSSLMode())
	q.Set("connect_timeout", strconv.Itoa(int(d.GetConnectTimeout().Seconds())))
	u.RawQuery = q.Encode()

	return u.String()
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse parses and validates YAML configuration content
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// SyncEnabled reports whether a cluster is configured
func (c *Config) SyncEnabled() bool {
	return c.ClusterID != ""
}

// GetSyncInterval returns the pull interval, defaulting to one minute
func (c *Config) GetSyncInterval() time.Duration {
	if c.SyncPolicy == nil {
		return DefaultSyncInterval
	}
	return parseDurationOr(c.SyncPolicy.Interval, DefaultSyncInterval)
}

// GetStatementTimeout returns the per-cycle store deadline
func (c *Config) GetStatementTimeout() time.Duration {
	if c.SyncPolicy == nil {
		return DefaultStatementTimeout
	}
	return parseDurationOr(c.SyncPolicy.StatementTimeout, DefaultStatementTimeout)
}

// GetHTTPAddress returns the status API listen address
func (c *Config) GetHTTPAddress() string {
	if c.HTTP == nil || c.HTTP.Address == "" {
		return DefaultHTTPAddress
	}
	return c.HTTP.Address
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if len(c.ClusterID) > maxClusterIDLength {
		return fmt.Errorf("clusterId must be at most %d characters", maxClusterIDLength)
	}

	if c.DataDir == "" {
		return fmt.Errorf("dataDir is required")
	}

	if err := validateSyncPolicy(c.SyncPolicy); err != nil {
		return err
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	// Nothing else is needed when synchronization is disabled
	if !c.SyncEnabled() {
		return nil
	}

	if c.Database == nil {
		return fmt.Errorf("database is required when clusterId is set")
	}
	if err := c.Database.validate(); err != nil {
		return err
	}

	if len(c.Members) == 0 {
		return fmt.Errorf("at least one member must be configured when clusterId is set")
	}

	names := make(map[string]bool, len(c.Members))
	for i, m := range c.Members {
		prefix := fmt.Sprintf("members[%d]", i)
		if m.Name == "" {
			return fmt.Errorf("%s: name is required", prefix)
		}
		if names[m.Name] {
			return fmt.Errorf("%s: duplicate member name %q", prefix, m.Name)
		}
		names[m.Name] = true
		if m.Host == "" {
			return fmt.Errorf("%s: host is required", prefix)
		}
		if m.Port < 0 || m.Port > 65535 {
			return fmt.Errorf("%s: port must be between 0 and 65535", prefix)
		}
	}

	return nil
}

func (d *DatabaseConfig) validate() error {
	if d.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if d.Database == "" {
		return fmt.Errorf("database.database is required")
	}
	if d.ConnectTimeout != "" {
		if _, err := time.ParseDuration(d.ConnectTimeout); err != nil {
			return fmt.Errorf("database.connectTimeout must be a valid duration: %w", err)
		}
	}
	if d.DynamicAuth != nil && d.DynamicAuth.AWSRDSIAM == nil {
		return fmt.Errorf("database.dynamicAuth: no supported auth method (e.g., awsRdsIam) is specified")
	}
	return nil
}

// validateSyncPolicy validates the sync policy configuration
func validateSyncPolicy(policy *SyncPolicyConfig) error {
	if policy == nil {
		return nil
	}

	if policy.Interval != "" {
		d, err := time.ParseDuration(policy.Interval)
		if err != nil {
			return fmt.Errorf("syncPolicy.interval must be a valid duration (e.g., '30s', '5m'): %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("syncPolicy.interval must be positive")
		}
	}

	if policy.StatementTimeout != "" {
		if _, err := time.ParseDuration(policy.StatementTimeout); err != nil {
			return fmt.Errorf("syncPolicy.statementTimeout must be a valid duration: %w", err)
		}
	}

	return nil
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
