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

const profilePrefix = "user_profile:"

type ProfileCache interface {
	Get(ctx context.Context, userID string) (*models.UserProfile, error)
	Set(ctx context.Context, profile *models.UserProfile) error
}

type RedisProfileCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewProfileCache(client redis.Cmdable, ttl time.Duration) *RedisProfileCache {
	return &RedisProfileCache{client: client, ttl: ttl}
}

func (c *RedisProfileCache) Get(ctx context.Context, userID string) (*models.UserProfile, error) {
	const op = "cache.GetProfile"

	data, err := c.client.Get(ctx, profilePrefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, custom_err.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var p models.UserProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}
	return &p, nil
}

func (c *RedisProfileCache) Set(ctx context.Context, p *models.UserProfile) error {
	const op = "cache.SetProfile"

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("%s: encode: %w", op, err)
	}
	if err := c.client.Set(ctx, profilePrefix+p.UserID, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
