package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetryConfig экспоненциальные повторы при подключении к внешним зависимостям.
type RetryConfig struct {
	Attempts int
	Delay    time.Duration
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.Attempts <= 0 {
		c.Attempts = 5
	}
	if c.Delay <= 0 {
		c.Delay = time.Second
	}
	return c
}

// Connect вызывает fn до cfg.Attempts раз, удваивая паузу после каждой неудачи.
func Connect(ctx context.Context, name string, cfg RetryConfig, log *slog.Logger, fn func(ctx context.Context) error) error {
	cfg = cfg.withDefaults()

	var err error
	for i := 0; i < cfg.Attempts; i++ {
		if err = fn(ctx); err == nil {
			log.Info("подключение установлено", slog.String("dependency", name))
			return nil
		}

		log.Warn("не удалось подключиться",
			slog.String("dependency", name),
			slog.Int("attempt", i+1),
			slog.Int("max_attempts", cfg.Attempts),
			slog.String("error", err.Error()))

		if i == cfg.Attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", name, ctx.Err())
		case <-time.After(cfg.Delay * time.Duration(1<<i)):
		}
	}

	return fmt.Errorf("%s: не удалось подключиться после %d попыток: %w", name, cfg.Attempts, err)
}

// RetryEvery вызывает fn каждые interval, пока она не завершится успешно или не
// будет отменён ctx. Первая попытка выполняется сразу.
func RetryEvery(ctx context.Context, name string, interval time.Duration, log *slog.Logger, fn func(ctx context.Context) error) error {
	if interval <= 0 {
		interval = time.Second
	}
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			log.Info("фоновая задача выполнена", slog.String("task", name), slog.Int("attempt", attempt))
			return nil
		}
		log.Warn("фоновая задача не выполнена, повторим",
			slog.String("task", name),
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", interval),
			slog.String("error", err.Error()))

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", name, ctx.Err())
		case <-time.After(interval):
		}
	}
}
