package main

import (
	stderr "errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/objectfs/objclient/internal/config"
	"github.com/objectfs/objclient/internal/metrics"
	"github.com/objectfs/objclient/internal/storage/s3"
	"github.com/objectfs/objclient/pkg/utils"
)

// app holds the state shared by all commands of one invocation.
type app struct {
	v   *viper.Viper
	cfg *config.Configuration

	logger    *slog.Logger
	logCloser io.Closer
	collector *metrics.Collector
	client    *s3.Client

	// extra client options, used by tests to inject an executor
	clientOpts []s3.Option
}

// flagKeys maps command line flags onto configuration keys.
var flagKeys = map[string]string{
	"region":        "client.region",
	"endpoint":      "client.endpoint",
	"path-style":    "client.force_path_style",
	"accelerate":    "client.use_accelerate",
	"no-ssl":        "client.disable_ssl",
	"signer":        "client.signer",
	"signer-region": "client.signer_region",
	"prober":        "client.region_prober",
	"log-level":     "global.log_level",
	"log-format":    "logging.format",
	"log-file":      "global.log_file",
	"no-progress":   "global.no_progress",
	"metrics":       "metrics.enabled",
	"metrics-addr":  "metrics.address",
}

func newRootCmd(opts ...s3.Option) *cobra.Command {
	a := &app{v: viper.New(), clientOpts: opts}

	root := &cobra.Command{
		Use:           "objcli",
		Short:         "Object storage client",
		Long:          `objcli moves objects to and from S3-compatible storage, choosing addressing and signing per bucket.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.teardown(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default is $HOME/.objclient/objclient.yaml)")
	flags.String("region", "", "client region")
	flags.String("endpoint", "", "service endpoint host or URL")
	flags.Bool("path-style", false, "always use path-style addressing")
	flags.Bool("accelerate", false, "use the transfer acceleration endpoint")
	flags.Bool("no-ssl", false, "use plain HTTP for endpoints without a scheme")
	flags.String("signer", "", `force a signing scheme ("v2" or "v4")`)
	flags.String("signer-region", "", "region used with --signer v4")
	flags.String("prober", "", "bucket region prober (header, aws or none)")
	flags.String("log-level", "", "log level (DEBUG, INFO, WARN, ERROR)")
	flags.String("log-format", "", "log format (text or json)")
	flags.String("log-file", "", "write logs to a rotated file")
	flags.Bool("no-progress", false, "do not render progress bars")
	flags.Bool("metrics", false, "serve Prometheus metrics while running")
	flags.String("metrics-addr", "", "metrics listen address")

	_ = a.v.BindPFlag("config", flags.Lookup("config"))
	_ = a.v.BindEnv("config", config.EnvPrefix+"CONFIG")
	for flag, key := range flagKeys {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(
		newPutCmd(a),
		newGetCmd(a),
		newPresignCmd(a),
		newCompleteCmd(a),
		newRegionCmd(a),
		newDeleteBucketCmd(a),
		newConfigCmd(a),
	)
	return root
}

// setup loads configuration (defaults, file, environment, flags), then
// builds the logger, metrics collector and client.
func (a *app) setup(cmd *cobra.Command) error {
	cfg := config.NewDefault()

	path, err := a.configFile()
	if err != nil {
		return err
	}
	if path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			return err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return err
	}
	a.applyFlags(cmd.Flags(), cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	logger, closer, err := utils.NewLogger(utils.LoggerOptions{
		Level:  cfg.Global.LogLevel,
		Format: cfg.Logging.Format,
		File:   cfg.Global.LogFile,
		Rotation: utils.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
		},
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	a.logger, a.logCloser = logger, closer
	if path != "" {
		logger.Debug("loaded configuration from file", "file", path)
	}

	if cmd.Name() == "save" {
		return nil
	}

	opts := []s3.Option{s3.WithLogger(logger)}
	if cfg.Metrics.Enabled {
		a.collector, err = metrics.NewCollector(&metrics.Config{
			Address:   cfg.Metrics.Address,
			Namespace: cfg.Metrics.Namespace,
			Labels:    cfg.Metrics.Labels,
		}, logger)
		if err != nil {
			return err
		}
		opts = append(opts, s3.WithMetrics(a.collector))
	}
	opts = append(opts, a.clientOpts...)

	a.client, err = s3.NewClient(&cfg.Client, opts...)
	if err != nil {
		return err
	}
	if a.collector != nil {
		if err := a.collector.RegisterRegionCache(a.client.RegionCache()); err != nil {
			return err
		}
		if err := a.collector.Start(cmd.Context()); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) teardown(cmd *cobra.Command) error {
	var err error
	if a.collector != nil {
		err = a.collector.Stop(cmd.Context())
	}
	if a.logCloser != nil {
		if cerr := a.logCloser.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// configFile returns the configuration file to load, or "" when none is
// given and none is found in the default locations.
func (a *app) configFile() (string, error) {
	if path := a.v.GetString("config"); path != "" {
		return path, nil
	}
	a.v.SetConfigName("objclient")
	a.v.SetConfigType("yaml")
	a.v.AddConfigPath("$HOME/.objclient")
	a.v.AddConfigPath(".")
	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if stderr.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("read config: %w", err)
	}
	return a.v.ConfigFileUsed(), nil
}

// applyFlags copies explicitly set flags over cfg.
func (a *app) applyFlags(flags *pflag.FlagSet, cfg *config.Configuration) {
	set := func(flag string) bool {
		f := flags.Lookup(flag)
		return f != nil && f.Changed
	}
	str := func(flag string, dst *string) {
		if set(flag) {
			*dst = a.v.GetString(flagKeys[flag])
		}
	}
	boolean := func(flag string, dst *bool) {
		if set(flag) {
			*dst = a.v.GetBool(flagKeys[flag])
		}
	}

	str("region", &cfg.Client.Region)
	str("endpoint", &cfg.Client.Endpoint)
	boolean("path-style", &cfg.Client.ForcePathStyle)
	boolean("accelerate", &cfg.Client.UseAccelerate)
	boolean("no-ssl", &cfg.Client.DisableSSL)
	str("signer", &cfg.Client.Signer)
	str("signer-region", &cfg.Client.SignerRegion)
	str("prober", &cfg.Client.RegionProber)
	str("log-level", &cfg.Global.LogLevel)
	str("log-format", &cfg.Logging.Format)
	str("log-file", &cfg.Global.LogFile)
	boolean("metrics", &cfg.Metrics.Enabled)
	str("metrics-addr", &cfg.Metrics.Address)
	if set("no-progress") && a.v.GetBool(flagKeys["no-progress"]) {
		cfg.Global.ShowProgress = false
	}
}
