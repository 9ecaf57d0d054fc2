package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie-sans/netprop/internal/infrastructure/config"
)

func parse(t *testing.T, args ...string) *CLI {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli, kong.Vars{"version": "test"})
	require.NoError(t, err)
	_, err = parser.Parse(args)
	require.NoError(t, err)
	return &cli
}

func TestFlagsOverrideConfig(t *testing.T) {
	cli := parse(t,
		"--port", "9000",
		"--docs", "site",
		"--default-doc", "home.masm",
		"--policy", "buffer",
		"--block-timeout", "250ms",
		"--no-cache",
		"--no-broadcast",
		"--compress",
		"--dev",
	)

	cfg := config.Default()
	cli.Apply(cfg)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.True(t, filepath.IsAbs(cfg.Documents.Dir))
	assert.Equal(t, "site", filepath.Base(cfg.Documents.Dir))
	assert.Equal(t, "home.masm", cfg.Documents.DefaultName)
	assert.Equal(t, "buffer", cfg.Render.Policy)
	assert.Equal(t, 250*time.Millisecond, cfg.Render.BlockTimeout.Std())
	assert.False(t, cfg.Documents.Cache)
	assert.False(t, cfg.Broadcast.Enabled)
	assert.True(t, cfg.HTTP.Compression)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestUnsetFlagsKeepConfig(t *testing.T) {
	cli := parse(t)

	cfg := config.Default()
	cli.Apply(cfg)

	assert.Equal(t, config.Default(), cfg)
}

func TestLoadConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "netprop.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = \"7000\"\nhost = \"127.0.0.1\"\n"), 0o644))
	t.Setenv("HOST", "10.0.0.1")

	cli := parse(t, "--config", path, "--log-level", "warn")
	cfg, err := loadConfig(cli)
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Server.Port, "file beats defaults")
	assert.Equal(t, "10.0.0.1", cfg.Server.Host, "environment beats file")
	assert.Equal(t, "warn", cfg.Logging.Level, "flags beat environment")
}

func TestLoadConfigRejectsInvalidFlags(t *testing.T) {
	cli := parse(t, "--policy", "interleave")
	_, err := loadConfig(cli)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestNewLogger(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "verbose"
	_, err := newLogger(cfg)
	assert.Error(t, err)

	cfg.Logging.Level = "info"
	logger, err := newLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
