package configtypes

import (
	"fmt"
	"time"

	"github.com/edgecomet/domfilter/pkg/pattern"
	"github.com/edgecomet/domfilter/pkg/types"
)

// Validate checks a fully defaulted configuration.
// Server and metrics listeners are checked only when serve is true; the CLI never binds them.
func (c *Config) Validate(serve bool) error {
	if c == nil {
		return nil
	}

	if serve {
		if err := ValidateListenAddress(c.Server.Listen); err != nil {
			return fmt.Errorf("invalid server.listen: %w", err)
		}
		if time.Duration(c.Server.Timeout) <= 0 {
			return fmt.Errorf("server.timeout must be > 0")
		}
		if c.Server.MaxRequestBodySize < 0 {
			return fmt.Errorf("server.max_request_body_size must be >= 0, got %d", c.Server.MaxRequestBodySize)
		}
	}

	if c.Parser.MaxSize < 0 {
		return fmt.Errorf("parser.max_size must be >= 0, got %d", c.Parser.MaxSize)
	}

	if err := c.Fetch.validate(); err != nil {
		return err
	}

	if c.Cache.Enabled {
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr must be specified when cache is enabled")
		}
		if c.Cache.Redis.DB < 0 {
			return fmt.Errorf("cache.redis.db must be >= 0, got %d", c.Cache.Redis.DB)
		}
		if time.Duration(c.Cache.TTL) <= 0 {
			return fmt.Errorf("cache.ttl must be > 0 when cache is enabled")
		}
	}
	if err := types.ValidateCompression(c.Cache.Compression); err != nil {
		return fmt.Errorf("cache.compression: %w", err)
	}

	if serve && c.Metrics.Enabled {
		if err := ValidateListenAddress(c.Metrics.Listen); err != nil {
			return fmt.Errorf("invalid metrics.listen: %w", err)
		}
		_, serverPort, _ := ParseListenAddress(c.Server.Listen)
		_, metricsPort, _ := ParseListenAddress(c.Metrics.Listen)
		if serverPort == metricsPort {
			return fmt.Errorf("metrics.listen port (%d) must differ from server.listen port", metricsPort)
		}
	}

	return c.Log.validate()
}

func (c FetchConfig) validate() error {
	if time.Duration(c.Timeout) <= 0 {
		return fmt.Errorf("fetch.timeout must be > 0")
	}
	if c.MaxRedirects < 0 {
		return fmt.Errorf("fetch.max_redirects must be >= 0, got %d", c.MaxRedirects)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("fetch.max_attempts must be >= 1, got %d", c.MaxAttempts)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("fetch.retry_delay must be >= 0")
	}
	if c.MaxBodySize < 0 {
		return fmt.Errorf("fetch.max_body_size must be >= 0, got %d", c.MaxBodySize)
	}
	if _, err := pattern.CompileList(c.AllowHosts); err != nil {
		return fmt.Errorf("fetch.allow_hosts: %w", err)
	}
	if _, err := pattern.CompileList(c.DenyHosts); err != nil {
		return fmt.Errorf("fetch.deny_hosts: %w", err)
	}
	return nil
}

func (c LogConfig) validate() error {
	validLevels := map[string]bool{
		LogLevelDebug: true,
		LogLevelInfo:  true,
		LogLevelWarn:  true,
		LogLevelError: true,
	}
	if c.Level != "" && !validLevels[c.Level] {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error, got '%s'", c.Level)
	}
	if c.Console.Level != "" && !validLevels[c.Console.Level] {
		return fmt.Errorf("log.console.level must be one of: debug, info, warn, error, got '%s'", c.Console.Level)
	}
	if c.File.Level != "" && !validLevels[c.File.Level] {
		return fmt.Errorf("log.file.level must be one of: debug, info, warn, error, got '%s'", c.File.Level)
	}

	if c.Console.Enabled {
		if c.Console.Format != "" && c.Console.Format != LogFormatJSON && c.Console.Format != LogFormatConsole {
			return fmt.Errorf("log.console.format must be 'json' or 'console', got '%s'", c.Console.Format)
		}
		if c.Console.Output != "" && c.Console.Output != LogOutputStdout && c.Console.Output != LogOutputStderr {
			return fmt.Errorf("log.console.output must be 'stdout' or 'stderr', got '%s'", c.Console.Output)
		}
	}

	if c.File.Enabled {
		if c.File.Path == "" {
			return fmt.Errorf("log.file.path must be specified when file logging is enabled")
		}
		if c.File.Format != "" && c.File.Format != LogFormatJSON && c.File.Format != LogFormatText {
			return fmt.Errorf("log.file.format must be 'json' or 'text', got '%s'", c.File.Format)
		}
		r := c.File.Rotation
		if r.MaxSize < 0 || r.MaxAge < 0 || r.MaxBackups < 0 {
			return fmt.Errorf("log.file.rotation values must be >= 0")
		}
	}

	return nil
}
