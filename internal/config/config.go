package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/objectfs/objclient/internal/storage/s3"
	"github.com/objectfs/objclient/pkg/errors"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "OBJCLIENT_"

// Configuration represents the complete application configuration
type Configuration struct {
	Global  GlobalConfig  `yaml:"global"`
	Client  s3.Config     `yaml:"client"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// GlobalConfig represents global application settings
type GlobalConfig struct {
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
	// ShowProgress renders a progress bar for transfers in the CLI.
	ShowProgress bool `yaml:"show_progress"`
}

// LoggingConfig represents logging settings
type LoggingConfig struct {
	Format     string `yaml:"format"` // "text" or "json"
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// MetricsConfig represents metrics settings
type MetricsConfig struct {
	Enabled   bool              `yaml:"enabled"`
	Address   string            `yaml:"address"`
	Namespace string            `yaml:"namespace"`
	Labels    map[string]string `yaml:"labels"`
}

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel:     "INFO",
			ShowProgress: true,
		},
		Client: *s3.NewDefaultConfig(),
		Logging: LoggingConfig{
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Compress:   true,
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Address:   ":9090",
			Namespace: "objclient",
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.NewError(errors.ErrCodeConfigLoad, "failed to read config file").
			WithComponent("config").
			WithContext("file", filename).
			WithCause(err)
	}

	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return errors.NewError(errors.ErrCodeConfigLoad, "failed to parse config file").
			WithComponent("config").
			WithContext("file", filename).
			WithCause(err)
	}

	return nil
}

// LoadFromEnv loads configuration from environment variables. Malformed
// numeric, boolean or duration values are reported, not ignored.
func (c *Configuration) LoadFromEnv() error {
	env := envReader{}

	env.str("LOG_LEVEL", &c.Global.LogLevel)
	env.str("LOG_FILE", &c.Global.LogFile)
	env.str("LOG_FORMAT", &c.Logging.Format)

	// Client
	env.str("REGION", &c.Client.Region)
	env.str("ENDPOINT", &c.Client.Endpoint)
	env.str("SIGNER", &c.Client.Signer)
	env.str("SIGNER_REGION", &c.Client.SignerRegion)
	env.str("REGION_PROBER", &c.Client.RegionProber)
	env.boolean("FORCE_PATH_STYLE", &c.Client.ForcePathStyle)
	env.boolean("USE_ACCELERATE", &c.Client.UseAccelerate)
	env.boolean("DISABLE_SSL", &c.Client.DisableSSL)
	env.boolean("DISABLE_INTEGRITY", &c.Client.DisableIntegrity)
	env.integer("REGION_CACHE_SIZE", &c.Client.RegionCacheSize)
	env.integer("COMPLETION_MAX_RETRY", &c.Client.CompletionRetry.MaxErrorRetry)
	env.str("COMPLETION_RETRY_SOURCE", &c.Client.CompletionRetry.Source)
	env.duration("REQUEST_TIMEOUT", &c.Client.RequestTimeout)
	env.duration("PROBE_TIMEOUT", &c.Client.ProbeTimeout)

	// Credentials use the standard AWS names.
	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
		c.Client.AccessKeyID = v
	}
	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
		c.Client.SecretAccessKey = v
	}
	if v := os.Getenv("AWS_SESSION_TOKEN"); v != "" {
		c.Client.SessionToken = v
	}

	// Metrics
	env.boolean("METRICS_ENABLED", &c.Metrics.Enabled)
	env.str("METRICS_ADDRESS", &c.Metrics.Address)

	return env.err()
}

type envReader struct {
	errs []string
}

func (e *envReader) lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
}

func (e *envReader) str(name string, dst *string) {
	if v, ok := e.lookup(name); ok {
		*dst = v
	}
}

func (e *envReader) boolean(name string, dst *bool) {
	if v, ok := e.lookup(name); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Sprintf("%s%s=%q is not a boolean", EnvPrefix, name, v))
			return
		}
		*dst = b
	}
}

func (e *envReader) integer(name string, dst *int) {
	if v, ok := e.lookup(name); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Sprintf("%s%s=%q is not an integer", EnvPrefix, name, v))
			return
		}
		*dst = n
	}
}

func (e *envReader) duration(name string, dst *time.Duration) {
	if v, ok := e.lookup(name); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Sprintf("%s%s=%q is not a duration", EnvPrefix, name, v))
			return
		}
		*dst = d
	}
}

func (e *envReader) err() error {
	if len(e.errs) == 0 {
		return nil
	}
	return errors.NewError(errors.ErrCodeConfigLoad, strings.Join(e.errs, "; ")).
		WithComponent("config")
}

// SaveToFile saves the configuration to a YAML file. Credentials are not written.
func (c *Configuration) SaveToFile(filename string) error {
	out := *c
	out.Client.AccessKeyID = ""
	out.Client.SecretAccessKey = ""
	out.Client.SessionToken = ""

	data, err := yaml.Marshal(&out)
	if err != nil {
		return errors.NewError(errors.ErrCodeConfigSave, "failed to marshal config").
			WithComponent("config").
			WithCause(err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return errors.NewError(errors.ErrCodeConfigSave, "failed to create config directory").
			WithComponent("config").
			WithCause(err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return errors.NewError(errors.ErrCodeConfigSave, "failed to write config file").
			WithComponent("config").
			WithContext("file", filename).
			WithCause(err)
	}

	return nil
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if strings.EqualFold(c.Global.LogLevel, level) {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return errors.Newf(errors.ErrCodeConfigValidation, "invalid log_level: %s (must be one of: %s)",
			c.Global.LogLevel, strings.Join(validLogLevels, ", ")).
			WithComponent("config")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return errors.Newf(errors.ErrCodeConfigValidation, "invalid logging.format: %s", c.Logging.Format).
			WithComponent("config")
	}

	if c.Metrics.Enabled && c.Metrics.Address == "" {
		return errors.NewError(errors.ErrCodeConfigValidation, "metrics.address is required when metrics are enabled").
			WithComponent("config")
	}

	return c.Client.Validate()
}
