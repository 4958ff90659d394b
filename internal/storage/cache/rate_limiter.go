package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrWindow увеличивает счётчик и ставит TTL окна, если его нет.
// Ключ без TTL (например, после сбоя EXPIRE) получает его на следующем запросе.
var incrWindow = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RateLimiter счётчик запросов в фиксированном окне.
type RateLimiter struct {
	client redis.Cmdable
	limit  int
	window time.Duration
}

func NewRateLimiter(client redis.Cmdable, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, window: window}
}

// Allow increments the caller's counter and reports whether it is still within the limit.
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, int64, error) {
	const op = "cache.RateLimit"

	countKey := fmt.Sprintf("rate_limit:%s:%d", key, int(l.window.Seconds()))

	current, err := incrWindow.Run(ctx, l.client, []string{countKey}, l.window.Milliseconds()).Int64()
	if err != nil {
		return true, 0, fmt.Errorf("%s: %w", op, err)
	}
	return current <= int64(l.limit), current, nil
}

func (l *RateLimiter) Limit() int {
	return l.limit
}
