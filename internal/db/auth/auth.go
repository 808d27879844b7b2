// Package auth provides functionality for dynamic database authentication.
package auth

import (
	"context"
	"fmt"

	"github.com/stacklok/proxysync/internal/config"
	"github.com/stacklok/proxysync/internal/db/auth/aws"
)

// TokenSource produces short-lived passwords for a database address (host:port)
type TokenSource interface {
	Token(ctx context.Context, address string) (string, error)
}

// NewTokenSource creates a dynamic token source for the given user.
// Returns nil if dynamic authentication is not configured.
func NewTokenSource(
	ctx context.Context,
	cfg *config.DatabaseConfig,
	user string,
) (TokenSource, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration is required")
	}

	if cfg.DynamicAuth == nil {
		return nil, nil
	}

	if cfg.DynamicAuth.AWSRDSIAM != nil {
		return aws.NewTokenSource(ctx, cfg, user)
	}

	return nil, fmt.Errorf("dynamic auth is configured but no supported auth method (e.g., awsRdsIam) is specified")
}
