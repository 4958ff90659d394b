package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gw-fraud-scoring/internal/custom_err"
	"gw-fraud-scoring/internal/models"

	"github.com/redis/go-redis/v9"
)

const idempotencyPrefix = "idempotency:"

type IdempotencyCache interface {
	Get(ctx context.Context, key string) (*models.IdempotencyRecord, error)
	Set(ctx context.Context, rec *models.IdempotencyRecord) error
	Delete(ctx context.Context, key string) error
}

type RedisIdempotencyCache struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewIdempotencyCache(client redis.Cmdable) *RedisIdempotencyCache {
	return &RedisIdempotencyCache{client: client, now: time.Now}
}

func (c *RedisIdempotencyCache) Get(ctx context.Context, key string) (*models.IdempotencyRecord, error) {
	const op = "cache.GetIdempotency"

	data, err := c.client.Get(ctx, idempotencyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, custom_err.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var rec models.IdempotencyRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}
	return &rec, nil
}

// Set хранит запись до её expires_at; уже истёкшие записи не кэшируются.
func (c *RedisIdempotencyCache) Set(ctx context.Context, rec *models.IdempotencyRecord) error {
	const op = "cache.SetIdempotency"

	ttl := rec.ExpiresAt.Sub(c.now())
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%s: encode: %w", op, err)
	}
	if err := c.client.Set(ctx, idempotencyPrefix+rec.Key, data, ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *RedisIdempotencyCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, idempotencyPrefix+key).Err(); err != nil {
		return fmt.Errorf("cache.DeleteIdempotency: %w", err)
	}
	return nil
}
