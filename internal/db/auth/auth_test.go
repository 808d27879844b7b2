package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/proxysync/internal/config"
)

func TestNewTokenSource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		cfg        *config.DatabaseConfig
		wantSource bool
		wantErr    bool
		errMsg     string
	}{
		{
			name:    "nil config returns error",
			wantErr: true,
			errMsg:  "database configuration is required",
		},
		{
			name: "no dynamic auth returns nil source",
			cfg:  &config.DatabaseConfig{User: "appuser", Database: "testdb"},
		},
		{
			name: "unknown dynamic auth type returns error",
			cfg: &config.DatabaseConfig{
				User:        "appuser",
				Database:    "testdb",
				DynamicAuth: &config.DynamicAuthConfig{},
			},
			wantErr: true,
			errMsg:  "dynamic auth is configured but no supported auth method",
		},
		{
			name: "aws rds iam with static region",
			cfg: &config.DatabaseConfig{
				User:     "appuser",
				Database: "testdb",
				DynamicAuth: &config.DynamicAuthConfig{
					AWSRDSIAM: &config.DynamicAuthAWSRDSIAM{Region: "us-east-1"},
				},
			},
			wantSource: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src, err := NewTokenSource(context.Background(), tt.cfg, "appuser")
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			if tt.wantSource {
				assert.NotNil(t, src)
			} else {
				assert.Nil(t, src)
			}
		})
	}
}
