package service

import (
	"context"
	"log/slog"
	"time"

	"gw-fraud-scoring/internal/models"
)

const (
	HealthOK          = "ok"
	DependencyHealthy = "healthy"
	DependencyDown    = "unhealthy"
)

type HealthChecker interface {
	Check(ctx context.Context) models.HealthResponse
}

// PingFunc проверяет доступность одной зависимости
type PingFunc func(ctx context.Context) error

type HealthService struct {
	version string
	db      PingFunc
	redis   PingFunc
	timeout time.Duration
	log     *slog.Logger
	now     func() time.Time
}

func NewHealthService(version string, db, redis PingFunc, timeout time.Duration, log *slog.Logger) *HealthService {
	return &HealthService{
		version: version,
		db:      db,
		redis:   redis,
		timeout: timeout,
		log:     log,
		now:     time.Now,
	}
}

// Check always reports the service itself as ok; dependencies are checked
// independently of each other.
func (s *HealthService) Check(ctx context.Context) models.HealthResponse {
	return models.HealthResponse{
		Status:    HealthOK,
		Version:   s.version,
		Database:  s.check(ctx, "database", s.db),
		Redis:     s.check(ctx, "redis", s.redis),
		Timestamp: s.now().UTC(),
	}
}

func (s *HealthService) check(ctx context.Context, name string, ping PingFunc) string {
	if ping == nil {
		return DependencyDown
	}
	pctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if err := ping(pctx); err != nil {
		s.log.Warn("зависимость недоступна",
			slog.String("dependency", name),
			slog.String("error", err.Error()))
		return DependencyDown
	}
	return DependencyHealthy
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
