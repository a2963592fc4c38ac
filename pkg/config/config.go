// Package config provides configuration loading and validation for redblack.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidShards      = errors.New("tree shards must be positive")
	ErrInvalidMaxNodes    = errors.New("tree max nodes must not be negative")
	ErrInvalidOperations  = errors.New("bench operations must be positive")
	ErrInvalidKeySpace    = errors.New("bench key space must be positive")
	ErrInvalidDeleteRatio = errors.New("bench delete ratio must be within [0, 1]")
	ErrInvalidCheckEvery  = errors.New("bench check interval must not be negative")
	ErrInvalidLogLevel    = errors.New("unknown log level")
	ErrInvalidLogFormat   = errors.New("unknown log format")
)

// maxKeySpace keeps the bench key range inside int32.
const maxKeySpace = 1 << 32

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

// Config holds all configuration for redblack.
type Config struct {
	Tree    TreeConfig    `mapstructure:"tree"`
	Bench   BenchConfig   `mapstructure:"bench"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// TreeConfig sizes the tree arenas.
type TreeConfig struct {
	// MaxNodes caps live nodes over all shards. Zero means the handle limit.
	MaxNodes int `mapstructure:"max_nodes"`
	// HibernationThreshold is the arena size below which hibernation is skipped.
	HibernationThreshold int `mapstructure:"hibernation_threshold"`
	Shards               int `mapstructure:"shards"`
}

// BenchConfig drives the randomized workload.
type BenchConfig struct {
	Operations  int     `mapstructure:"operations"`
	KeySpace    int     `mapstructure:"key_space"`
	DeleteRatio float64 `mapstructure:"delete_ratio"`
	Seed        uint64  `mapstructure:"seed"`
	// CheckEvery validates the whole tree every that many operations. Zero validates only at the end.
	CheckEvery  int `mapstructure:"check_every"`
	SampleEvery int `mapstructure:"sample_every"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig holds the metrics exporters configuration.
type MetricsConfig struct {
	Listen       string `mapstructure:"listen"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string `mapstructure:"otlp_headers"`
	Enabled      bool   `mapstructure:"enabled"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("redblack")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/redblack")
	}

	viperCfg.SetEnvPrefix("REDBLACK")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("tree.max_nodes", DefaultTreeMaxNodes)
	viperCfg.SetDefault("tree.hibernation_threshold", DefaultTreeHibernationThreshold)
	viperCfg.SetDefault("tree.shards", DefaultTreeShards)

	viperCfg.SetDefault("bench.operations", DefaultBenchOperations)
	viperCfg.SetDefault("bench.key_space", DefaultBenchKeySpace)
	viperCfg.SetDefault("bench.delete_ratio", DefaultBenchDeleteRatio)
	viperCfg.SetDefault("bench.seed", DefaultBenchSeed)
	viperCfg.SetDefault("bench.check_every", DefaultBenchCheckEvery)
	viperCfg.SetDefault("bench.sample_every", DefaultBenchSampleEvery)

	viperCfg.SetDefault("logging.level", DefaultLoggingLevel)
	viperCfg.SetDefault("logging.format", DefaultLoggingFormat)

	viperCfg.SetDefault("metrics.enabled", DefaultMetricsEnabled)
	viperCfg.SetDefault("metrics.listen", DefaultMetricsListen)
	viperCfg.SetDefault("metrics.otlp_endpoint", DefaultMetricsOTLPEndpoint)
	viperCfg.SetDefault("metrics.otlp_insecure", DefaultMetricsOTLPInsecure)
	viperCfg.SetDefault("metrics.otlp_headers", "")
}

// Validate checks the configuration, for callers which override fields after loading.
func (config *Config) Validate() error {
	return validateConfig(config)
}

// validateConfig validates the configuration.
func validateConfig(config *Config) error {
	if config.Tree.Shards <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidShards, config.Tree.Shards)
	}

	if config.Tree.MaxNodes < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxNodes, config.Tree.MaxNodes)
	}

	if config.Bench.Operations <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidOperations, config.Bench.Operations)
	}

	if config.Bench.KeySpace <= 0 || config.Bench.KeySpace > maxKeySpace {
		return fmt.Errorf("%w: %d", ErrInvalidKeySpace, config.Bench.KeySpace)
	}

	if config.Bench.DeleteRatio < 0 || config.Bench.DeleteRatio > 1 {
		return fmt.Errorf("%w: %g", ErrInvalidDeleteRatio, config.Bench.DeleteRatio)
	}

	if config.Bench.CheckEvery < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCheckEvery, config.Bench.CheckEvery)
	}

	if !slices.Contains(logLevels, strings.ToLower(config.Logging.Level)) {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, config.Logging.Level)
	}

	if !slices.Contains(logFormats, strings.ToLower(config.Logging.Format)) {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, config.Logging.Format)
	}

	return nil
}
