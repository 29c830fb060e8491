// Package config loads database settings from files and the environment with viper.
//
// Keys may be overridden by environment variables with the DQO_ prefix, nested keys
// joined by an underscore: DQO_DSN, DQO_LOG_LEVEL, DQO_EVOLVE_IGNORE_TABLES.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/coregx/dqo/internal/dialects"
	"github.com/coregx/dqo/internal/logger"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "DQO"

// Error messages
var (
	ErrNoDriver = errors.New("config: driver is mandatory")
	ErrNoDSN    = errors.New("config: dsn is mandatory")
)

// Config describes one database.
type Config struct {
	// Driver is the database/sql driver name, or "pgx" for a pgx pool.
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	// AsyncDSN opens a pgx pool for the asynchronous API when set.
	AsyncDSN string `mapstructure:"async_dsn"`
	// Dialect overrides the dialect derived from the driver name.
	Dialect    string `mapstructure:"dialect"`
	ParamStyle string `mapstructure:"param_style"`
	AutoDetect bool   `mapstructure:"auto_detect"`

	MaxOpenConns      int           `mapstructure:"max_open_conns"`
	MaxIdleConns      int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime   time.Duration `mapstructure:"conn_max_lifetime"`
	StmtCacheCapacity int           `mapstructure:"stmt_cache_capacity"`
	HealthInterval    time.Duration `mapstructure:"health_interval"`

	Log     Log    `mapstructure:"log"`
	Tracing bool   `mapstructure:"tracing"`
	Evolve  Evolve `mapstructure:"evolve"`
}

// Log configures the logger.
type Log struct {
	// Adapter is "slog", "logrus" or "none".
	Adapter         string   `mapstructure:"adapter"`
	Level           string   `mapstructure:"level"`
	SensitiveFields []string `mapstructure:"sensitive_fields"`
}

// Evolve configures the schema differ.
type Evolve struct {
	IgnoreTables []string `mapstructure:"ignore_tables"`
}

var defaults = map[string]interface{}{
	"driver":               "",
	"dsn":                  "",
	"async_dsn":            "",
	"dialect":              "",
	"param_style":          "",
	"auto_detect":          false,
	"max_open_conns":       0,
	"max_idle_conns":       0,
	"conn_max_lifetime":    time.Duration(0),
	"stmt_cache_capacity":  0,
	"health_interval":      time.Duration(0),
	"log.adapter":          "none",
	"log.level":            "info",
	"log.sensitive_fields": []string{},
	"tracing":              false,
	"evolve.ignore_tables": []string{},
}

// NewViper returns a viper instance with the defaults and environment binding set up.
func NewViper() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the file at path (yaml, json, toml, ... by extension) and applies
// environment overrides. An empty path reads the environment only.
func Load(path string) (*Config, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the mandatory fields and the dialect settings.
func (c *Config) Validate() error {
	if c.Driver == "" {
		return ErrNoDriver
	}
	if c.DSN == "" {
		return ErrNoDSN
	}
	_, err := c.Backend()
	return err
}

// Backend resolves Dialect (or Driver when Dialect is empty) and ParamStyle. It returns
// nil without error when the driver is unknown and AutoDetect is set.
func (c *Config) Backend() (*dialects.Backend, error) {
	name := c.Dialect
	if name == "" {
		name = c.Driver
	}
	b, ok := dialects.Lookup(name)
	if !ok {
		if c.AutoDetect && c.Dialect == "" {
			return nil, nil
		}
		return nil, fmt.Errorf("config: unknown dialect %q", name)
	}
	if c.ParamStyle != "" {
		style, err := dialects.ParseParamStyle(c.ParamStyle)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		b = b.WithParamStyle(style)
	}
	return b, nil
}

// Logger builds the configured logger writing to w, os.Stderr when w is nil.
func (c *Config) Logger(w io.Writer) logger.Logger {
	if w == nil {
		w = os.Stderr
	}
	return logger.New(c.Log.Adapter, c.Log.Level, w)
}
