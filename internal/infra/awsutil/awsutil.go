// Package awsutil loads the shared AWS configuration used by the DynamoDB, S3
// and EventBridge adapters.
package awsutil

import (
	"context"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/smithy-go"
	"github.com/juju/errors"
)

const defaultRegion = "us-east-1"

// Config holds explicit construction parameters. Empty credentials fall back
// to the default credentials chain.
type Config struct {
	Region          string
	Endpoint        string // optional; custom endpoint (localstack, MinIO)
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// Load resolves an aws.Config for cfg.
func Load(ctx context.Context, cfg Config) (aws.Config, error) {
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, errors.Annotate(err, "load aws config")
	}
	return awsCfg, nil
}

// BaseEndpoint returns the endpoint override for client options, or nil.
func (c Config) BaseEndpoint() *string {
	if c.Endpoint == "" {
		return nil
	}
	return aws.String(c.Endpoint)
}

// ErrorCode extracts the service error code from err, or "" when err did not
// come from an AWS API response.
func ErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// Describe annotates err with its service error code when one is present.
func Describe(err error) error {
	if err == nil {
		return nil
	}
	if code := ErrorCode(err); code != "" {
		return errors.Annotatef(err, "aws error %s", code)
	}
	return err
}
