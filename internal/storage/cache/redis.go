package cache

import (
	"context"
	"fmt"
	"log/slog"

	"gw-fraud-scoring/internal/config"
	"gw-fraud-scoring/internal/db"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient подключается к Redis с повторами. При неудаче клиент всё равно
// возвращается вместе с ошибкой: кэш не обязателен, вызывающий решает, продолжать ли.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig, retry db.RetryConfig, log *slog.Logger) (*redis.Client, error) {
	client := redis.NewClient(Options(cfg))

	err := db.Connect(ctx, "redis", retry, log, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		return client, fmt.Errorf("cache.NewRedisClient: %w", err)
	}
	return client, nil
}

// Options строит настройки клиента. Дедлайн контекста вызывающего имеет силу
// наравне с таймаутами чтения и записи.
func Options(cfg config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:                  cfg.Addr,
		Password:              cfg.Password,
		DB:                    cfg.DB,
		PoolSize:              cfg.PoolSize,
		DialTimeout:           cfg.DialTimeout,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		ContextTimeoutEnabled: true,
	}
}
