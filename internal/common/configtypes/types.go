package configtypes

import (
	"github.com/edgecomet/domfilter/pkg/types"
)

// Log level constants
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Log format constants
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
	LogFormatText    = "text"
)

// Console output streams
const (
	LogOutputStdout = "stdout"
	LogOutputStderr = "stderr"
)

// Config is the root configuration shared by the CLI and the server
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Parser  ParserConfig  `yaml:"parser"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Cache   CacheConfig   `yaml:"cache"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type ServerConfig struct {
	Listen             string         `yaml:"listen"`
	Timeout            types.Duration `yaml:"timeout"`
	AuthKey            string         `yaml:"auth_key"`
	MaxRequestBodySize int            `yaml:"max_request_body_size"`
}

type ParserConfig struct {
	MaxSize       int   `yaml:"max_size"`                 // Bytes; 0 = 10MB
	DetectCharset *bool `yaml:"detect_charset,omitempty"` // Transcode non-UTF-8 input (default: true)
	Sanitize      bool  `yaml:"sanitize"`                 // Run input through a UGC sanitizer before parsing
}

type FetchConfig struct {
	Timeout        types.Duration `yaml:"timeout"`
	UserAgent      string         `yaml:"user_agent"`
	MaxRedirects   int            `yaml:"max_redirects"`
	MaxAttempts    int            `yaml:"max_attempts"` // Attempts per URL; 5xx and network errors are retried
	RetryDelay     types.Duration `yaml:"retry_delay"`
	MaxBodySize    int            `yaml:"max_body_size"`
	SSRFProtection *bool          `yaml:"ssrf_protection,omitempty"` // Block private IPs (default: true)
	AllowHosts     []string       `yaml:"allow_hosts,omitempty"`
	DenyHosts      []string       `yaml:"deny_hosts,omitempty"`
}

// SSRFEnabled reports whether private addresses are blocked
func (c FetchConfig) SSRFEnabled() bool {
	return c.SSRFProtection == nil || *c.SSRFProtection
}

type CacheConfig struct {
	Enabled     bool           `yaml:"enabled"`
	TTL         types.Duration `yaml:"ttl"`
	Compression string         `yaml:"compression,omitempty"` // none, snappy, lz4
	KeyPrefix   string         `yaml:"key_prefix,omitempty"`
	Redis       RedisConfig    `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LogConfig struct {
	Level   string           `yaml:"level"`
	Console ConsoleLogConfig `yaml:"console"`
	File    FileLogConfig    `yaml:"file"`
}

type ConsoleLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Format  string `yaml:"format"`
	Level   string `yaml:"level,omitempty"`
	Output  string `yaml:"output,omitempty"` // stdout (default) or stderr
}

type FileLogConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Path     string         `yaml:"path"`
	Format   string         `yaml:"format"`
	Level    string         `yaml:"level,omitempty"`
	Rotation RotationConfig `yaml:"rotation"`
}

type RotationConfig struct {
	MaxSize    int  `yaml:"max_size"`
	MaxAge     int  `yaml:"max_age"`
	MaxBackups int  `yaml:"max_backups"`
	Compress   bool `yaml:"compress"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Listen    string `yaml:"listen"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}
