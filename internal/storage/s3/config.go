package s3

import (
	"time"

	"github.com/objectfs/objclient/internal/cache"
	"github.com/objectfs/objclient/internal/circuit"
	"github.com/objectfs/objclient/internal/progress"
	"github.com/objectfs/objclient/internal/signing"
	"github.com/objectfs/objclient/pkg/errors"
	"github.com/objectfs/objclient/pkg/retry"
)

// Region probe strategies.
const (
	ProberHeader = "header"
	ProberAWS    = "aws"
	ProberNone   = "none"
)

// Config represents client configuration
type Config struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
	UseAccelerate   bool   `yaml:"use_accelerate"`
	DisableSSL      bool   `yaml:"disable_ssl"`

	// Signing
	Signer        string `yaml:"signer"`        // "", "v2"/"legacy", "v4"/"region-scoped"
	SignerRegion  string `yaml:"signer_region"` // region used with the signer override
	DefaultSigner string `yaml:"default_signer"`

	// Integrity
	DisableIntegrity  bool  `yaml:"disable_integrity"`
	ProgressWatermark int64 `yaml:"progress_watermark"`

	// Region discovery
	RegionCacheSize int            `yaml:"region_cache_size"`
	RegionProber    string         `yaml:"region_prober"` // "header", "aws", "none"
	ProbeTimeout    time.Duration  `yaml:"probe_timeout"`
	ProbeBreaker    circuit.Config `yaml:"probe_breaker"`

	// Multipart completion retry
	CompletionRetry retry.Config `yaml:"completion_retry"`

	// Transport
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	PoolSize       int           `yaml:"pool_size"`
}

// NewDefaultConfig returns a configuration with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Endpoint:          "s3.amazonaws.com",
		ProgressWatermark: progress.DefaultWatermark,
		RegionCacheSize:   cache.DefaultRegionCacheCapacity,
		RegionProber:      ProberHeader,
		ProbeTimeout:      10 * time.Second,
		ProbeBreaker:      circuit.DefaultConfig(),
		CompletionRetry:   retry.DefaultConfig(),
		ConnectTimeout:    10 * time.Second,
		RequestTimeout:    30 * time.Second,
		PoolSize:          8,
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.NewError(errors.ErrCodeConfigValidation, "endpoint is required").
			WithComponent("s3")
	}
	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return errors.NewError(errors.ErrCodeCredentialsMissing, "access key id and secret access key must be set together").
			WithComponent("s3")
	}
	if _, err := signing.ParseKind(c.Signer); err != nil {
		return err
	}
	if _, err := signing.ParseKind(c.DefaultSigner); err != nil {
		return err
	}
	if c.RegionCacheSize <= 0 {
		return errors.NewError(errors.ErrCodeConfigValidation, "region_cache_size must be positive").
			WithComponent("s3")
	}
	switch c.RegionProber {
	case ProberHeader, ProberAWS, ProberNone:
	default:
		return errors.Newf(errors.ErrCodeConfigValidation, "unknown region_prober %q", c.RegionProber).
			WithComponent("s3")
	}
	if c.CompletionRetry.MaxErrorRetry < 0 {
		return errors.NewError(errors.ErrCodeConfigValidation, "completion_retry.max_error_retry cannot be negative").
			WithComponent("s3")
	}
	if _, err := retry.CompletionPolicy(c.CompletionRetry); err != nil {
		return err
	}
	if c.PoolSize < 0 {
		return errors.Newf(errors.ErrCodeConfigValidation, "pool_size cannot be negative: %d", c.PoolSize).
			WithComponent("s3")
	}
	return nil
}
