package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PoolConfig struct {
	MaxConns          int
	MinConns          int
	HealthCheckPeriod time.Duration
	ConnectTimeout    time.Duration
	ApplicationName   string
	Retry             RetryConfig
}

// NewPool создаёт пул и проверяет его пингом, повторяя попытки по cfg.Retry.
// Соединения pgxpool открываются лениво, поэтому при неудачном пинге пул всё
// равно возвращается вместе с ошибкой: вызывающий либо закрывает его, либо
// работает в деградированном режиме, пока база не поднимется.
func NewPool(ctx context.Context, dsn string, cfg PoolConfig, log *slog.Logger) (*pgxpool.Pool, error) {
	conf, err := parsePoolConfig(dsn, cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("db.NewPool: %w", err)
	}

	err = Connect(ctx, "postgres", cfg.Retry, log, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if err != nil {
		return pool, err
	}
	return pool, nil
}

func parsePoolConfig(dsn string, cfg PoolConfig) (*pgxpool.Config, error) {
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 20
	}
	if cfg.HealthCheckPeriod <= 0 {
		cfg.HealthCheckPeriod = 30 * time.Second
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}

	conf, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("db.NewPool: разбор DSN: %w", err)
	}

	conf.MaxConns = int32(cfg.MaxConns)
	conf.MinConns = int32(cfg.MinConns)
	conf.HealthCheckPeriod = cfg.HealthCheckPeriod
	conf.MaxConnLifetime = 30 * time.Minute
	conf.MaxConnIdleTime = 5 * time.Minute
	if cfg.ApplicationName != "" {
		conf.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}
	conf.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	return conf, nil
}
