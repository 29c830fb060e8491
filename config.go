package dqo

import (
	"context"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"

	"github.com/coregx/dqo/internal/config"
	"github.com/coregx/dqo/internal/core"
	"github.com/coregx/dqo/internal/tracer"
)

// Config describes one database, see LoadConfig.
type Config = config.Config

// LoadConfig reads a configuration file (yaml, json, toml, ...) with DQO_ environment
// overrides. An empty path reads the environment only.
var LoadConfig = config.Load

// Configuration errors.
var (
	ErrNoDriver = config.ErrNoDriver
	ErrNoDSN    = config.ErrNoDSN
)

// OpenConfig opens the database described by cfg. A "pgx" driver opens a pgx pool for
// both APIs; otherwise database/sql is used and AsyncDSN, when set, adds a pgx pool for
// the asynchronous API.
//
// Example:
//
//	cfg, err := dqo.LoadConfig("dqo.yaml")
//	db, err := dqo.OpenConfig(ctx, cfg)
func OpenConfig(ctx context.Context, cfg *Config, extra ...Option) (*Database, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b, err := cfg.Backend()
	if err != nil {
		return nil, err
	}

	opts := []Option{
		WithLogger(cfg.Logger(os.Stderr)),
		WithStmtCacheCapacity(cfg.StmtCacheCapacity),
	}
	if len(cfg.Log.SensitiveFields) > 0 {
		opts = append(opts, WithSensitiveFields(cfg.Log.SensitiveFields...))
	}
	if cfg.Tracing {
		opts = append(opts, WithTracer(tracer.NewOtelTracer(otel.Tracer("github.com/coregx/dqo"))))
	}
	if b != nil {
		opts = append(opts, WithDialect(b))
	} else {
		opts = append(opts, WithAutoDetect())
	}
	if cfg.MaxOpenConns > 0 {
		opts = append(opts, WithMaxOpenConns(cfg.MaxOpenConns))
	}
	if cfg.MaxIdleConns > 0 {
		opts = append(opts, WithMaxIdleConns(cfg.MaxIdleConns))
	}
	if cfg.ConnMaxLifetime > 0 {
		opts = append(opts, WithConnMaxLifetime(cfg.ConnMaxLifetime))
	}
	if cfg.HealthInterval > 0 {
		opts = append(opts, WithHealthCheck(cfg.HealthInterval))
	}
	opts = append(opts, extra...)

	if cfg.Driver == "pgx" {
		return OpenPgx(ctx, cfg.DSN, opts...)
	}
	if cfg.AsyncDSN != "" {
		pool, err := pgxpool.New(ctx, cfg.AsyncDSN)
		if err != nil {
			return nil, core.WrapError(err, "dqo: open pgx pool")
		}
		opts = append(opts, WithPgxPool(pool))
	}
	return Open(cfg.Driver, cfg.DSN, opts...)
}
