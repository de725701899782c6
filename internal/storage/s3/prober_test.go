package s3

import (
	"context"
	stderr "errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objectfs/objclient/internal/circuit"
	"github.com/objectfs/objclient/pkg/errors"
	"github.com/objectfs/objclient/pkg/retry"
)

func TestHeaderRegionProber(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		assert.Empty(t, r.Header.Get("Authorization"))
		if r.URL.Path == "/known-bucket" {
			w.Header().Set(headerBucketRegion, "sa-east-1")
			w.WriteHeader(http.StatusMovedPermanently)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	endpoint, err := url.Parse(server.URL)
	require.NoError(t, err)
	p := &HeaderRegionProber{Executor: NewHTTPExecutor(NewDefaultConfig())}

	region, err := p.ProbeRegion(context.Background(), endpoint, "known-bucket")
	require.NoError(t, err)
	assert.Equal(t, "sa-east-1", region)

	_, err = p.ProbeRegion(context.Background(), endpoint, "missing-bucket")
	assert.True(t, errors.HasCode(err, errors.ErrCodeRegionProbe))
}

type failingProber struct{ calls int }

func (f *failingProber) ProbeRegion(context.Context, *url.URL, string) (string, error) {
	f.calls++
	return "", stderr.New("connection refused")
}

func TestGuardedProber_OpensPerEndpoint(t *testing.T) {
	inner := &failingProber{}
	g := NewGuardedProber(inner, circuit.Config{FailureThreshold: 2, Cooldown: time.Hour}, time.Second, nil)
	global := &url.URL{Scheme: "https", Host: "s3.amazonaws.com"}
	other := &url.URL{Scheme: "https", Host: "minio.local:9000"}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := g.ProbeRegion(ctx, global, "b")
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeRegionProbe))
	}
	_, err := g.ProbeRegion(ctx, global, "b")
	assert.ErrorIs(t, err, circuit.ErrOpen)
	assert.True(t, errors.HasCode(err, errors.ErrCodeRegionProbe))
	assert.Equal(t, 2, inner.calls)

	_, err = g.ProbeRegion(ctx, other, "b")
	require.Error(t, err)
	assert.Equal(t, 3, inner.calls, "other endpoints are probed independently")
	assert.Equal(t, circuit.StateOpen, g.Breakers()["s3.amazonaws.com"])
	assert.Equal(t, circuit.StateClosed, g.Breakers()["minio.local:9000"])
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		code   errors.ErrorCode
	}{
		{name: "defaults"},
		{name: "no endpoint", mutate: func(c *Config) { c.Endpoint = "" }, code: errors.ErrCodeConfigValidation},
		{name: "half credentials", mutate: func(c *Config) { c.SecretAccessKey = "s" }, code: errors.ErrCodeCredentialsMissing},
		{name: "unknown signer", mutate: func(c *Config) { c.Signer = "v3" }, code: errors.ErrCodeInvalidConfig},
		{name: "unknown default signer", mutate: func(c *Config) { c.DefaultSigner = "sigv9" }, code: errors.ErrCodeInvalidConfig},
		{name: "zero cache", mutate: func(c *Config) { c.RegionCacheSize = 0 }, code: errors.ErrCodeConfigValidation},
		{name: "unknown prober", mutate: func(c *Config) { c.RegionProber = "dns" }, code: errors.ErrCodeConfigValidation},
		{name: "negative retries", mutate: func(c *Config) { c.CompletionRetry.MaxErrorRetry = -1 }, code: errors.ErrCodeConfigValidation},
		{name: "unknown retry source", mutate: func(c *Config) { c.CompletionRetry.Source = "exotic" }, code: errors.ErrCodeConfigValidation},
		{name: "aws retry source", mutate: func(c *Config) { c.CompletionRetry.Source = retry.SourceAWS }},
		{name: "negative pool", mutate: func(c *Config) { c.PoolSize = -1 }, code: errors.ErrCodeConfigValidation},
		{name: "legacy signer", mutate: func(c *Config) { c.Signer = "v2" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := cfg.Validate()
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.Equal(t, "s3.amazonaws.com", cfg.Endpoint)
	assert.Equal(t, 300, cfg.RegionCacheSize)
	assert.Equal(t, ProberHeader, cfg.RegionProber)
	assert.Equal(t, 3, cfg.CompletionRetry.MaxErrorRetry)
}
