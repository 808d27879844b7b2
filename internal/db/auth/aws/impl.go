// Package aws implements dynamic authentication for AWS RDS IAM.
package aws

import (
	"context"
	"fmt"
	"net/http"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/feature/rds/auth"

	"github.com/stacklok/proxysync/internal/config"
)

const (
	awsRegionDetect = "detect"
)

// getRegion resolves the AWS region from the configuration, detecting
// it from IMDS if the region is set to "detect".
func getRegion(ctx context.Context, cfg *config.DatabaseConfig) (string, error) {
	if cfg.DynamicAuth == nil || cfg.DynamicAuth.AWSRDSIAM == nil || cfg.DynamicAuth.AWSRDSIAM.Region == "" {
		return "", fmt.Errorf("AWS RDS IAM region is not configured")
	}

	if cfg.DynamicAuth.AWSRDSIAM.Region == awsRegionDetect {
		imdsClient := imds.New(imds.Options{
			HTTPClient: &http.Client{
				Timeout: 2 * time.Second,
			},
		})

		regionOut, err := imdsClient.GetRegion(ctx, &imds.GetRegionInput{})
		if err != nil {
			return "", fmt.Errorf("failed to get region from IMDS: %w", err)
		}

		return regionOut.Region, nil
	}

	return cfg.DynamicAuth.AWSRDSIAM.Region, nil
}

// TokenSource builds RDS IAM tokens for any member of the cluster.
// The region is resolved once; credentials are loaded per token.
type TokenSource struct {
	region string
	user   string
}

// NewTokenSource resolves the region and returns a token source for the given user
func NewTokenSource(ctx context.Context, cfg *config.DatabaseConfig, user string) (*TokenSource, error) {
	region, err := getRegion(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &TokenSource{region: region, user: user}, nil
}

// Token generates an authentication token for the database at address
// (host:port). The token can be used as a password in a PostgreSQL
// connection string.
func (s *TokenSource) Token(ctx context.Context, address string) (string, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(s.region))
	if err != nil {
		return "", fmt.Errorf("failed to load AWS config: %w", err)
	}

	token, err := auth.BuildAuthToken(ctx, address, s.region, s.user, awsCfg.Credentials)
	if err != nil {
		return "", fmt.Errorf("failed to build authentication token: %w", err)
	}

	return token, nil
}

// Region returns the resolved region
func (s *TokenSource) Region() string {
	return s.region
}
