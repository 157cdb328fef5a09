package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"rugroulette/internal/derive"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String(KeyHome, Default().Home, "")
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	v, err := NewViper(newFlags(t, "--home", t.TempDir()))
	require.NoError(t, err)

	cfg, err := Load(v)
	require.NoError(t, err)
	require.Equal(t, "tcp://127.0.0.1:26658", cfg.Addr)
	require.Equal(t, "socket", cfg.Transport)
	require.False(t, cfg.Faucet)

	lvl, err := cfg.Level()
	require.NoError(t, err)
	require.Equal(t, zerolog.InfoLevel, lvl)

	p, err := cfg.Program()
	require.NoError(t, err)
	require.Equal(t, derive.DefaultProgramID, p)
}

func TestLoad_FileEnvAndFlagPrecedence(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(home, "config"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(home, "config", "app.toml"), []byte(
		"transport = \"grpc\"\nlog_level = \"debug\"\nfaucet = true\n"), 0o644))
	t.Setenv("ROULETTE_LOG_FORMAT", "json")

	v, err := NewViper(newFlags(t, "--home", home, "--log_level", "warn"))
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	require.Equal(t, "grpc", cfg.Transport)
	require.Equal(t, "warn", cfg.LogLevel)
	require.Equal(t, LogFormatJSON, cfg.LogFormat)
	require.True(t, cfg.Faucet)
	require.Equal(t, filepath.Join(home, "data"), cfg.DataDir())
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"transport", func(c *Config) { c.Transport = "http" }},
		{"format", func(c *Config) { c.LogFormat = "xml" }},
		{"backend", func(c *Config) { c.DBBackend = "rocksdb" }},
		{"level", func(c *Config) { c.LogLevel = "loud" }},
		{"program", func(c *Config) { c.ProgramID = "not-base58-0OIl" }},
		{"home", func(c *Config) { c.Home = "" }},
	}
	require.NoError(t, Default().Validate())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
