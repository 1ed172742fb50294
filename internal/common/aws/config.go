// Package aws builds the SDK clients for the mail, text and object storage integrations.
package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
)

// LoadConfig resolves credentials from the default chain. A non-empty endpoint routes every
// service to it, which is how local stacks such as LocalStack or MinIO are reached.
func LoadConfig(ctx context.Context, region, endpoint string) (awssdk.Config, error) {
	if region == "" {
		return awssdk.Config{}, fmt.Errorf("aws region is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if endpoint != "" {
		resolver := awssdk.EndpointResolverWithOptionsFunc(
			func(service, region string, _ ...interface{}) (awssdk.Endpoint, error) {
				return awssdk.Endpoint{URL: endpoint, SigningRegion: region, HostnameImmutable: true}, nil
			})
		opts = append(opts, config.WithEndpointResolverWithOptions(resolver))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return awssdk.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}
