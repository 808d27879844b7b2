package aws

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/proxysync/internal/config"
)

func TestResolveAWSRegion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		cfg        *config.DatabaseConfig
		wantRegion string
		wantErr    bool
		errMsg     string
	}{
		{
			name: "static region configured returns region string",
			cfg: &config.DatabaseConfig{
				User:     "appuser",
				Database: "testdb",
				DynamicAuth: &config.DynamicAuthConfig{
					AWSRDSIAM: &config.DynamicAuthAWSRDSIAM{
						Region: "us-east-1",
					},
				},
			},
			wantRegion: "us-east-1",
		},
		{
			name: "empty region returns error",
			cfg: &config.DatabaseConfig{
				User:     "appuser",
				Database: "testdb",
				DynamicAuth: &config.DynamicAuthConfig{
					AWSRDSIAM: &config.DynamicAuthAWSRDSIAM{},
				},
			},
			wantErr: true,
			errMsg:  "AWS RDS IAM region is not configured",
		},
		{
			name:    "missing dynamic auth returns error",
			cfg:     &config.DatabaseConfig{User: "appuser"},
			wantErr: true,
			errMsg:  "AWS RDS IAM region is not configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			region, err := getRegion(context.Background(), tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantRegion, region)
		})
	}
}

func TestNewTokenSource(t *testing.T) {
	t.Parallel()

	cfg := &config.DatabaseConfig{
		User: "appuser",
		DynamicAuth: &config.DynamicAuthConfig{
			AWSRDSIAM: &config.DynamicAuthAWSRDSIAM{Region: "eu-west-1"},
		},
	}

	src, err := NewTokenSource(context.Background(), cfg, "appuser")
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", src.Region())
}
