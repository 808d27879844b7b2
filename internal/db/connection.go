// Package db contains code for connecting to the cluster's database members.
package db

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/stacklok/proxysync/internal/config"
	"github.com/stacklok/proxysync/internal/db/auth"
)

// Endpoint identifies one database member
type Endpoint struct {
	Name string
	Host string
	Port int
}

// Address returns host:port of the endpoint
func (e Endpoint) Address() string {
	port := e.Port
	if port == 0 {
		port = config.DefaultPort
	}
	return net.JoinHostPort(e.Host, strconv.Itoa(port))
}

func (e Endpoint) String() string {
	if e.Name == "" {
		return e.Address()
	}
	return fmt.Sprintf("%s (%s)", e.Name, e.Address())
}

// EndpointFromMember converts a configured member into an endpoint
func EndpointFromMember(m config.MemberConfig) Endpoint {
	return Endpoint{Name: m.Name, Host: m.Host, Port: m.Port}
}

// Dialer opens a single connection to a database member
type Dialer interface {
	Dial(ctx context.Context, endpoint Endpoint) (*pgx.Conn, error)
}

// ConfigDialer dials members using the shared database configuration
type ConfigDialer struct {
	cfg    *config.DatabaseConfig
	tokens auth.TokenSource
}

// NewDialer creates a dialer. When dynamic auth is configured a fresh token
// is generated for every dial.
func NewDialer(ctx context.Context, cfg *config.DatabaseConfig) (*ConfigDialer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration is required")
	}

	tokens, err := auth.NewTokenSource(ctx, cfg, cfg.User)
	if err != nil {
		return nil, fmt.Errorf("failed to configure dynamic auth: %w", err)
	}

	return &ConfigDialer{cfg: cfg, tokens: tokens}, nil
}

// ConnString builds the postgres:// URL for an endpoint, credentials included
func (d *ConfigDialer) ConnString(ctx context.Context, endpoint Endpoint) (string, error) {
	password, err := d.password(ctx, endpoint)
	if err != nil {
		return "", err
	}
	return d.cfg.BuildConnectionString(endpoint.Address(), password), nil
}

// ConnConfig builds the pgx configuration for an endpoint
func (d *ConfigDialer) ConnConfig(ctx context.Context, endpoint Endpoint) (*pgx.ConnConfig, error) {
	connString, err := d.ConnString(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	connCfg, err := pgx.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config for %s: %w", endpoint, err)
	}
	connCfg.ConnectTimeout = d.cfg.GetConnectTimeout()

	return connCfg, nil
}

// Dial connects to the endpoint and verifies the connection
func (d *ConfigDialer) Dial(ctx context.Context, endpoint Endpoint) (*pgx.Conn, error) {
	connCfg, err := d.ConnConfig(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	conn, err := pgx.ConnectConfig(ctx, connCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}

	slog.Debug("Database connection established",
		"member", endpoint.Name,
		"address", endpoint.Address(),
		"user", d.cfg.User,
		"database", d.cfg.Database)

	return conn, nil
}

// password resolves the credential for an endpoint. With neither a
// password nor dynamic auth configured, pgpass is left to supply it.
func (d *ConfigDialer) password(ctx context.Context, endpoint Endpoint) (string, error) {
	if d.tokens != nil {
		token, err := d.tokens.Token(ctx, endpoint.Address())
		if err != nil {
			return "", fmt.Errorf("failed to resolve auth token for %s: %w", endpoint, err)
		}
		return token, nil
	}

	password, err := d.cfg.GetPassword()
	if err != nil {
		if d.cfg.PasswordFile != "" {
			return "", fmt.Errorf("failed to get database password: %w", err)
		}
		return "", nil
	}
	return password, nil
}
