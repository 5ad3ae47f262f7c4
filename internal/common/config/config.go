package config

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/domfilter/internal/common/configtypes"
	"github.com/edgecomet/domfilter/internal/common/yamlutil"
	"github.com/edgecomet/domfilter/pkg/types"
)

// Defaults applied to zero-valued fields after loading
const (
	DefaultServerListen   = ":10080"
	DefaultServerTimeout  = 30 * time.Second
	DefaultRequestBody    = 12 * 1024 * 1024
	DefaultFetchTimeout   = 20 * time.Second
	DefaultUserAgent      = "domfilter/1.0"
	DefaultMaxRedirects   = 5
	DefaultMaxAttempts    = 2
	DefaultRetryDelay     = 500 * time.Millisecond
	DefaultMaxBodySize    = 10 * 1024 * 1024
	DefaultCacheTTL       = time.Hour
	DefaultCacheKeyPrefix = "domfilter"
	DefaultMetricsPath    = "/metrics"
	DefaultMetricsNS      = "domfilter"
)

// Default returns the configuration used when no file is given
func Default() *configtypes.Config {
	cfg := &configtypes.Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every unset field
func ApplyDefaults(cfg *configtypes.Config) {
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = DefaultServerListen
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = types.Duration(DefaultServerTimeout)
	}
	if cfg.Server.MaxRequestBodySize == 0 {
		cfg.Server.MaxRequestBodySize = DefaultRequestBody
	}

	if cfg.Fetch.Timeout == 0 {
		cfg.Fetch.Timeout = types.Duration(DefaultFetchTimeout)
	}
	if cfg.Fetch.UserAgent == "" {
		cfg.Fetch.UserAgent = DefaultUserAgent
	}
	if cfg.Fetch.MaxRedirects == 0 {
		cfg.Fetch.MaxRedirects = DefaultMaxRedirects
	}
	if cfg.Fetch.MaxAttempts == 0 {
		cfg.Fetch.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Fetch.RetryDelay == 0 {
		cfg.Fetch.RetryDelay = types.Duration(DefaultRetryDelay)
	}
	if cfg.Fetch.MaxBodySize == 0 {
		cfg.Fetch.MaxBodySize = DefaultMaxBodySize
	}

	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = types.Duration(DefaultCacheTTL)
	}
	if cfg.Cache.Compression == "" {
		cfg.Cache.Compression = types.CompressionSnappy
	}
	if cfg.Cache.KeyPrefix == "" {
		cfg.Cache.KeyPrefix = DefaultCacheKeyPrefix
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNS
	}

	// If both outputs are disabled, enable console
	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = configtypes.LogLevelInfo
	}
	if cfg.Log.Console.Format == "" {
		cfg.Log.Console.Format = configtypes.LogFormatConsole
	}
	if cfg.Log.Console.Output == "" {
		cfg.Log.Console.Output = configtypes.LogOutputStdout
	}
	if cfg.Log.File.Format == "" {
		cfg.Log.File.Format = configtypes.LogFormatText
	}
}

// Load reads, defaults and validates a YAML configuration file.
// serve selects whether listener settings are validated.
func Load(path string, serve bool, logger *zap.Logger) (*configtypes.Config, error) {
	logger.Info("Loading configuration", zap.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg configtypes.Config
	if err := yamlutil.UnmarshalStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := cfg.Validate(serve); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	logger.Info("Configuration loaded",
		zap.Bool("cache_enabled", cfg.Cache.Enabled),
		zap.Bool("metrics_enabled", cfg.Metrics.Enabled),
		zap.Bool("ssrf_protection", cfg.Fetch.SSRFEnabled()))

	return &cfg, nil
}
