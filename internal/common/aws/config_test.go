package aws

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	tests := []struct {
		name         string
		region       string
		endpoint     string
		wantErr      bool
		wantResolver bool
	}{
		{name: "missing region", region: "", wantErr: true},
		{name: "default endpoints", region: "us-east-1"},
		{name: "local endpoint", region: "us-east-1", endpoint: "http://localhost:4566", wantResolver: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(context.Background(), tt.region, tt.endpoint)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.region, cfg.Region)

			if !tt.wantResolver {
				assert.Nil(t, cfg.EndpointResolverWithOptions)
				return
			}
			require.NotNil(t, cfg.EndpointResolverWithOptions)
			ep, err := cfg.EndpointResolverWithOptions.ResolveEndpoint("s3", tt.region)
			require.NoError(t, err)
			assert.Equal(t, tt.endpoint, ep.URL)
			assert.True(t, ep.HostnameImmutable)
		})
	}
}

func TestMessagingClients(t *testing.T) {
	cfg, err := LoadConfig(context.Background(), "us-west-2", "")
	require.NoError(t, err)

	assert.NotNil(t, NewSESClient(cfg))
	assert.NotNil(t, NewSNSClient(cfg))
	assert.NotNil(t, NewS3Client(cfg, true))
}
