package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Errors returned by Load and Validate.
var (
	ErrUnsupportedFormat = errors.New("unsupported config file format")
	ErrInvalid           = errors.New("invalid configuration")
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `toml:"server" yaml:"server"`
	Documents DocumentConfig  `toml:"documents" yaml:"documents"`
	Render    RenderConfig    `toml:"render" yaml:"render"`
	Logging   LogConfig       `toml:"logging" yaml:"logging"`
	RateLimit RateLimitConfig `toml:"rate_limit" yaml:"rate_limit"`
	HTTP      HTTPConfig      `toml:"http" yaml:"http"`
	Broadcast BroadcastConfig `toml:"broadcast" yaml:"broadcast"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string   `envconfig:"PORT" toml:"port" yaml:"port"`
	Host            string   `envconfig:"HOST" toml:"host" yaml:"host"`
	ShutdownTimeout Duration `envconfig:"SHUTDOWN_TIMEOUT" toml:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// DocumentConfig holds document loading configuration.
type DocumentConfig struct {
	Dir         string   `envconfig:"DOCUMENT_DIR" toml:"dir" yaml:"dir"`
	DefaultName string   `envconfig:"DOCUMENT_DEFAULT" toml:"default" yaml:"default"`
	Patterns    []string `envconfig:"DOCUMENT_PATTERNS" toml:"patterns" yaml:"patterns"`
	Cache       bool     `envconfig:"DOCUMENT_CACHE" toml:"cache" yaml:"cache"`
	Preload     bool     `envconfig:"DOCUMENT_PRELOAD" toml:"preload" yaml:"preload"`
}

// RenderConfig holds pipeline configuration.
type RenderConfig struct {
	OpenTag        string   `envconfig:"RENDER_OPEN_TAG" toml:"open_tag" yaml:"open_tag"`
	CloseTag       string   `envconfig:"RENDER_CLOSE_TAG" toml:"close_tag" yaml:"close_tag"`
	Policy         string   `envconfig:"RENDER_POLICY" toml:"policy" yaml:"policy"`
	BlockTimeout   Duration `envconfig:"RENDER_BLOCK_TIMEOUT" toml:"block_timeout" yaml:"block_timeout"`
	RequestTimeout Duration `envconfig:"RENDER_REQUEST_TIMEOUT" toml:"request_timeout" yaml:"request_timeout"`
	Namespace      string   `envconfig:"RENDER_NAMESPACE" toml:"namespace" yaml:"namespace"`
	MaxCallStack   int      `envconfig:"RENDER_MAX_CALL_STACK" toml:"max_call_stack" yaml:"max_call_stack"`
	Sanitize       bool     `envconfig:"RENDER_SANITIZE" toml:"sanitize" yaml:"sanitize"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" toml:"level" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" toml:"development" yaml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" toml:"rps" yaml:"rps"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" toml:"burst" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" toml:"enabled" yaml:"enabled"`
	Global            bool `envconfig:"RATE_LIMIT_GLOBAL" toml:"global" yaml:"global"`
}

// HTTPConfig holds transport middleware configuration.
type HTTPConfig struct {
	Compression bool     `envconfig:"HTTP_COMPRESSION" toml:"compression" yaml:"compression"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" toml:"cors_origins" yaml:"cors_origins"`
}

// BroadcastConfig holds websocket channel configuration.
type BroadcastConfig struct {
	Enabled bool `envconfig:"BROADCAST_ENABLED" toml:"enabled" yaml:"enabled"`
}

// Load builds configuration from defaults, an optional file and the
// environment, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	// No default tags: fields whose variable is unset keep the value
	// they already have.
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load("")
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			Host:            "0.0.0.0",
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Documents: DocumentConfig{
			Dir:         "masm_files",
			DefaultName: "index.masm",
			Patterns:    []string{"*"},
			Cache:       true,
			Preload:     false,
		},
		Render: RenderConfig{
			OpenTag:        "<script>",
			CloseTag:       "</script>",
			Policy:         "residual",
			BlockTimeout:   Duration(5 * time.Second),
			RequestTimeout: Duration(30 * time.Second),
			Namespace:      "JavaFunctions",
			MaxCallStack:   1024,
			Sanitize:       false,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           false,
		},
		HTTP: HTTPConfig{
			Compression: false,
			CORSOrigins: []string{"*"},
		},
		Broadcast: BroadcastConfig{
			Enabled: true,
		},
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port == "" {
		problems = append(problems, "server port is empty")
	}
	if c.Documents.Dir == "" {
		problems = append(problems, "document directory is empty")
	}
	if c.Documents.DefaultName == "" {
		problems = append(problems, "default document name is empty")
	}
	if c.Render.OpenTag == "" || c.Render.CloseTag == "" {
		problems = append(problems, "script delimiters must be non-empty")
	}
	switch c.Render.Policy {
	case "residual", "buffer":
	default:
		problems = append(problems, fmt.Sprintf("unknown render policy %q", c.Render.Policy))
	}
	if c.Render.BlockTimeout < 0 || c.Render.RequestTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		problems = append(problems, "timeouts must not be negative")
	}
	if c.Render.Namespace == "" {
		problems = append(problems, "script namespace is empty")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		problems = append(problems, "rate limit rps and burst must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}
