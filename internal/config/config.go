// Package config loads daemon settings from flags, ROULETTE_* environment
// variables and an optional <home>/config/app.toml.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	dbm "github.com/cosmos/cosmos-db"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"rugroulette/internal/derive"
)

const EnvPrefix = "ROULETTE"

const (
	KeyHome      = "home"
	KeyAddr      = "addr"
	KeyTransport = "transport"
	KeyLogLevel  = "log_level"
	KeyLogFormat = "log_format"
	KeyDBBackend = "db_backend"
	KeyFaucet    = "faucet"
	KeyProgramID = "program_id"
)

const (
	LogFormatPlain = "plain"
	LogFormatJSON  = "json"
)

type Config struct {
	Home      string `mapstructure:"home"`
	Addr      string `mapstructure:"addr"`
	Transport string `mapstructure:"transport"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	DBBackend string `mapstructure:"db_backend"`
	Faucet    bool   `mapstructure:"faucet"`
	ProgramID string `mapstructure:"program_id"`
}

func Default() Config {
	return Config{
		Home:      ".roulette",
		Addr:      "tcp://127.0.0.1:26658",
		Transport: "socket",
		LogLevel:  zerolog.InfoLevel.String(),
		LogFormat: LogFormatPlain,
		DBBackend: string(dbm.GoLevelDBBackend),
		Faucet:    false,
		ProgramID: derive.DefaultProgramID.String(),
	}
}

// RegisterFlags adds the daemon flags with their defaults to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	def := Default()
	fs.String(KeyAddr, def.Addr, "ABCI listen address")
	fs.String(KeyTransport, def.Transport, "ABCI transport (socket|grpc)")
	fs.String(KeyLogLevel, def.LogLevel, "log level (trace|debug|info|warn|error)")
	fs.String(KeyLogFormat, def.LogFormat, "log output format (plain|json)")
	fs.String(KeyDBBackend, def.DBBackend, "state database backend (goleveldb|memdb)")
	fs.Bool(KeyFaucet, def.Faucet, "accept unsigned bank/mint txs (devnet only)")
	fs.String(KeyProgramID, def.ProgramID, "program identity that address derivation binds to")
}

// NewViper returns a viper instance with defaults, ROULETTE_* env binding and
// the flags in fs bound.
func NewViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	def := Default()
	v.SetDefault(KeyHome, def.Home)
	v.SetDefault(KeyAddr, def.Addr)
	v.SetDefault(KeyTransport, def.Transport)
	v.SetDefault(KeyLogLevel, def.LogLevel)
	v.SetDefault(KeyLogFormat, def.LogFormat)
	v.SetDefault(KeyDBBackend, def.DBBackend)
	v.SetDefault(KeyFaucet, def.Faucet)
	v.SetDefault(KeyProgramID, def.ProgramID)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}
	return v, nil
}

// Load reads <home>/config/app.toml when it exists and decodes the merged
// settings.
func Load(v *viper.Viper) (Config, error) {
	home := v.GetString(KeyHome)
	v.SetConfigName("app")
	v.SetConfigType("toml")
	v.AddConfigPath(filepath.Join(home, "config"))
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Transport {
	case "socket", "grpc":
	default:
		return fmt.Errorf("invalid %s %q: want socket or grpc", KeyTransport, c.Transport)
	}
	switch c.LogFormat {
	case LogFormatPlain, LogFormatJSON:
	default:
		return fmt.Errorf("invalid %s %q: want plain or json", KeyLogFormat, c.LogFormat)
	}
	switch dbm.BackendType(c.DBBackend) {
	case dbm.GoLevelDBBackend, dbm.MemDBBackend:
	default:
		return fmt.Errorf("invalid %s %q: want goleveldb or memdb", KeyDBBackend, c.DBBackend)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if _, err := c.Program(); err != nil {
		return err
	}
	if c.Home == "" {
		return fmt.Errorf("%s must not be empty", KeyHome)
	}
	return nil
}

func (c Config) Level() (zerolog.Level, error) {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid %s %q: %w", KeyLogLevel, c.LogLevel, err)
	}
	return lvl, nil
}

func (c Config) Program() (derive.Address, error) {
	p, err := derive.ParseAddress(c.ProgramID)
	if err != nil {
		return derive.Address{}, fmt.Errorf("invalid %s: %w", KeyProgramID, err)
	}
	return p, nil
}

func (c Config) Backend() dbm.BackendType {
	return dbm.BackendType(c.DBBackend)
}

// DataDir is where the state database lives.
func (c Config) DataDir() string {
	return filepath.Join(c.Home, "data")
}
