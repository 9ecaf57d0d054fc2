package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/charlie-sans/netprop/internal/infrastructure/config"
	"github.com/charlie-sans/netprop/internal/infrastructure/logging"
	"github.com/charlie-sans/netprop/internal/server"
)

var version = "dev"

// CLI defines command line flags. Unset flags leave the loaded
// configuration untouched.
type CLI struct {
	Config string `short:"c" type:"path" env:"NETPROP_CONFIG" help:"Path to a TOML or YAML config file."`

	Host       string   `help:"Listen host."`
	Port       string   `short:"p" help:"Listen port."`
	Docs       string   `type:"path" help:"Document directory."`
	DefaultDoc string   `name:"default-doc" help:"Document served for /."`
	Patterns   []string `help:"Allowed document name patterns (doublestar globs)."`
	Preload    bool     `help:"Load every document into the cache at startup."`
	NoCache    bool     `name:"no-cache" help:"Disable the document cache."`

	Policy         string        `help:"Composition policy: residual or buffer."`
	OpenTag        string        `name:"open-tag" help:"Opening script delimiter."`
	CloseTag       string        `name:"close-tag" help:"Closing script delimiter."`
	BlockTimeout   time.Duration `name:"block-timeout" help:"Per-block execution budget."`
	RequestTimeout time.Duration `name:"request-timeout" help:"Per-request render budget."`
	Sanitize       bool          `help:"Sanitize script output with an HTML allow-list."`

	Compress    bool     `help:"Gzip responses."`
	CORSOrigins []string `name:"cors-origin" help:"Allowed CORS origins."`
	NoBroadcast bool     `name:"no-broadcast" help:"Disable the /ws broadcast channel."`

	Dev      bool   `help:"Development mode (console logs, debug level)."`
	LogLevel string `name:"log-level" help:"Log level: debug, info, warn, error."`

	Version kong.VersionFlag `help:"Print version and exit."`
}

// Apply overlays the flags that were set onto cfg.
func (c *CLI) Apply(cfg *config.Config) {
	setString(&cfg.Server.Host, c.Host)
	setString(&cfg.Server.Port, c.Port)
	setString(&cfg.Documents.Dir, c.Docs)
	setString(&cfg.Documents.DefaultName, c.DefaultDoc)
	if len(c.Patterns) > 0 {
		cfg.Documents.Patterns = c.Patterns
	}
	if c.Preload {
		cfg.Documents.Preload = true
	}
	if c.NoCache {
		cfg.Documents.Cache = false
	}

	setString(&cfg.Render.Policy, c.Policy)
	setString(&cfg.Render.OpenTag, c.OpenTag)
	setString(&cfg.Render.CloseTag, c.CloseTag)
	if c.BlockTimeout > 0 {
		cfg.Render.BlockTimeout = config.Duration(c.BlockTimeout)
	}
	if c.RequestTimeout > 0 {
		cfg.Render.RequestTimeout = config.Duration(c.RequestTimeout)
	}
	if c.Sanitize {
		cfg.Render.Sanitize = true
	}

	if c.Compress {
		cfg.HTTP.Compression = true
	}
	if len(c.CORSOrigins) > 0 {
		cfg.HTTP.CORSOrigins = c.CORSOrigins
	}
	if c.NoBroadcast {
		cfg.Broadcast.Enabled = false
	}

	if c.Dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}
	setString(&cfg.Logging.Level, c.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// loadConfig resolves configuration: defaults, file, environment, flags.
func loadConfig(cli *CLI) (*config.Config, error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, err
	}
	cli.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	lc := logging.DefaultConfig()
	if cfg.Logging.Development {
		lc = logging.DevelopmentConfig()
	}
	if cfg.Logging.Level != "" {
		lc.Level = cfg.Logging.Level
	}
	return logging.New(lc)
}

func run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("Failed to create server", zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Error("Server error", zap.Error(err))
		return err
	}
	logger.Info("Server stopped")
	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("server"),
		kong.Description("Render .masm documents with embedded scripts over HTTP"),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)
	ctx.FatalIfErrorf(run(&cli))
}
