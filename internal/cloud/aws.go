// Package cloud holds the aws plumbing shared by the target registry,
// database locator and network topology adapters.
package cloud

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/smithy-go"
)

// LoadConfig resolves credentials and region the default sdk way. A non-empty
// region overrides whatever the environment says.
func LoadConfig(ctx context.Context, region string) (aws.Config, error) {
	opts := make([]func(*config.LoadOptions) error, 0, 1)
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load aws config: %w", err)
	}
	return cfg, nil
}

// ErrorCode returns the api error code carried by err, if any.
func ErrorCode(err error) (string, bool) {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode(), true
	}
	return "", false
}
