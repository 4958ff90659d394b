// Package idempotency resolves and records idempotency keys across the Redis
// cache and the durable Postgres table.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gw-fraud-scoring/internal/custom_err"
	"gw-fraud-scoring/internal/models"
	"gw-fraud-scoring/internal/storage/cache"
	"gw-fraud-scoring/internal/storage/postgres"
	"gw-fraud-scoring/pkg/metrics"
)

const DefaultTTL = 24 * time.Hour

type Kind int

const (
	Miss Kind = iota
	Hit
	Conflict
)

func (k Kind) String() string {
	switch k {
	case Hit:
		return "hit"
	case Conflict:
		return "conflict"
	default:
		return "miss"
	}
}

type Resolution struct {
	Kind     Kind
	Response *models.TransactionResponse
}

type Config struct {
	TTL          time.Duration
	CacheTimeout time.Duration
	StoreTimeout time.Duration
}

type Store struct {
	cache   cache.IdempotencyCache
	repo    postgres.IdempotencyRepository
	cfg     Config
	log     *slog.Logger
	metrics *metrics.Collector
	now     func() time.Time
}

func NewStore(c cache.IdempotencyCache, repo postgres.IdempotencyRepository, cfg Config, log *slog.Logger, m *metrics.Collector) *Store {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Store{
		cache:   c,
		repo:    repo,
		cfg:     cfg,
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

// Resolve looks the key up in the cache first and in Postgres second.
// Dependency failures degrade to Miss; they are never returned to the caller.
func (s *Store) Resolve(ctx context.Context, key string, req models.TransactionRequest) (Resolution, error) {
	const op = "idempotency.Resolve"

	hash, err := RequestHash(req)
	if err != nil {
		return Resolution{}, fmt.Errorf("%s: %w", op, err)
	}
	now := s.now()
	log := s.log.With(slog.String("op", op), slog.String("idempotency_key", key))

	if rec, ok := s.fromCache(ctx, key, log); ok && !rec.Expired(now) {
		return s.resolveRecord(rec, hash, log), nil
	}

	rec, err := s.fromStore(ctx, key)
	if err != nil {
		if !errors.Is(err, custom_err.ErrNotFound) {
			log.Warn("хранилище ключей идемпотентности недоступно, считаем промахом",
				slog.String("error", err.Error()))
			s.metrics.RecordDegraded("idempotency_store")
		}
		return Resolution{Kind: Miss}, nil
	}

	if rec.Expired(now) {
		s.deleteExpired(ctx, key, now, log)
		return Resolution{Kind: Miss}, nil
	}

	res := s.resolveRecord(rec, hash, log)
	if res.Kind == Hit {
		s.toCache(ctx, rec, log)
	}
	return res, nil
}

// Commit records the response for key. When another request committed the key
// first, the stored winner is returned instead (same payload) or
// ErrIdempotencyConflict (different payload).
func (s *Store) Commit(ctx context.Context, key string, req models.TransactionRequest, resp models.TransactionResponse) (models.TransactionResponse, error) {
	const op = "idempotency.Commit"

	hash, err := RequestHash(req)
	if err != nil {
		return resp, fmt.Errorf("%s: %w", op, err)
	}
	body, err := json.Marshal(resp)
	if err != nil {
		return resp, fmt.Errorf("%s: %w", op, err)
	}
	now := s.now()
	rec := &models.IdempotencyRecord{
		Key:         key,
		RequestHash: hash,
		Response:    body,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.cfg.TTL),
	}
	log := s.log.With(slog.String("op", op), slog.String("idempotency_key", key))

	inserted, err := s.insert(ctx, rec)
	if err != nil {
		log.Error("не удалось сохранить ключ идемпотентности в БД", slog.String("error", err.Error()))
		s.metrics.RecordDegraded("idempotency_store")
		s.toCache(ctx, rec, log)
		return resp, nil
	}
	if inserted {
		s.toCache(ctx, rec, log)
		return resp, nil
	}

	winner, err := s.fromStore(ctx, key)
	if err != nil {
		log.Warn("ключ занят, но прочитать победителя не удалось", slog.String("error", err.Error()))
		return resp, nil
	}

	// просроченная запись блокирует вставку: удаляем её и пробуем ещё раз
	if winner.Expired(now) {
		s.deleteExpired(ctx, key, now, log)
		if inserted, err = s.insert(ctx, rec); err == nil && inserted {
			s.toCache(ctx, rec, log)
		}
		return resp, nil
	}

	res := s.resolveRecord(winner, hash, log)
	switch res.Kind {
	case Conflict:
		return resp, custom_err.ErrIdempotencyConflict
	case Hit:
		s.toCache(ctx, winner, log)
		return *res.Response, nil
	default:
		return resp, nil
	}
}

func (s *Store) resolveRecord(rec *models.IdempotencyRecord, hash string, log *slog.Logger) Resolution {
	if rec.RequestHash != hash {
		s.metrics.RecordConflict()
		return Resolution{Kind: Conflict}
	}
	var resp models.TransactionResponse
	if err := json.Unmarshal(rec.Response, &resp); err != nil {
		log.Error("сохранённый ответ повреждён", slog.String("error", err.Error()))
		return Resolution{Kind: Miss}
	}
	return Resolution{Kind: Hit, Response: &resp}
}

func (s *Store) fromCache(ctx context.Context, key string, log *slog.Logger) (*models.IdempotencyRecord, bool) {
	if s.cache == nil {
		return nil, false
	}
	cctx, cancel := withTimeout(ctx, s.cfg.CacheTimeout)
	defer cancel()

	rec, err := s.cache.Get(cctx, key)
	if err != nil {
		if !errors.Is(err, custom_err.ErrNotFound) {
			log.Warn("кэш идемпотентности недоступен", slog.String("error", err.Error()))
			s.metrics.RecordDegraded("idempotency_cache")
		}
		return nil, false
	}
	return rec, true
}

func (s *Store) toCache(ctx context.Context, rec *models.IdempotencyRecord, log *slog.Logger) {
	if s.cache == nil {
		return
	}
	cctx, cancel := withTimeout(ctx, s.cfg.CacheTimeout)
	defer cancel()

	if err := s.cache.Set(cctx, rec); err != nil {
		log.Warn("не удалось записать ключ в кэш", slog.String("error", err.Error()))
		s.metrics.RecordDegraded("idempotency_cache")
	}
}

func (s *Store) fromStore(ctx context.Context, key string) (*models.IdempotencyRecord, error) {
	sctx, cancel := withTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	return s.repo.Get(sctx, key)
}

func (s *Store) insert(ctx context.Context, rec *models.IdempotencyRecord) (bool, error) {
	sctx, cancel := withTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	return s.repo.Insert(sctx, rec)
}

func (s *Store) deleteExpired(ctx context.Context, key string, now time.Time, log *slog.Logger) {
	sctx, cancel := withTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	if err := s.repo.DeleteExpired(sctx, key, now); err != nil {
		log.Warn("не удалось удалить просроченный ключ", slog.String("error", err.Error()))
	}
	if s.cache != nil {
		cctx, cancelCache := withTimeout(ctx, s.cfg.CacheTimeout)
		defer cancelCache()
		_ = s.cache.Delete(cctx, key)
	}
}

// Purge removes every expired durable record.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	return s.repo.Purge(ctx, s.now())
}

// PurgeEvery runs Purge on a ticker until ctx is done. Errors are logged and
// the next tick retries.
func (s *Store) PurgeEvery(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Purge(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.log.Warn("очистка просроченных ключей не удалась", slog.String("error", err.Error()))
				}
				continue
			}
			if n > 0 {
				s.log.Info("удалены просроченные ключи идемпотентности", slog.Int64("count", n))
			}
		}
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
