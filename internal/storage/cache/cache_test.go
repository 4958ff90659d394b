package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"gw-fraud-scoring/internal/custom_err"
	"gw-fraud-scoring/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestIdempotencyCache_RoundTrip(t *testing.T) {
	mr, client := setupRedis(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewIdempotencyCache(client)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := c.Get(ctx, "key-1")
	assert.ErrorIs(t, err, custom_err.ErrNotFound)

	rec := &models.IdempotencyRecord{
		Key:         "key-1",
		RequestHash: "h",
		Response:    json.RawMessage(`{"status":"approved"}`),
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Hour),
	}
	require.NoError(t, c.Set(ctx, rec))

	assert.True(t, mr.Exists("idempotency:key-1"))
	assert.Equal(t, time.Hour, mr.TTL("idempotency:key-1"))

	got, err := c.Get(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "h", got.RequestHash)
	assert.JSONEq(t, `{"status":"approved"}`, string(got.Response))

	require.NoError(t, c.Delete(ctx, "key-1"))
	assert.False(t, mr.Exists("idempotency:key-1"))
}

func TestIdempotencyCache_SkipsExpired(t *testing.T) {
	mr, client := setupRedis(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewIdempotencyCache(client)
	c.now = func() time.Time { return now }

	err := c.Set(context.Background(), &models.IdempotencyRecord{Key: "old", ExpiresAt: now.Add(-time.Second)})

	require.NoError(t, err)
	assert.False(t, mr.Exists("idempotency:old"))
}

func TestIdempotencyCache_Unavailable(t *testing.T) {
	mr, client := setupRedis(t)
	mr.Close()

	_, err := NewIdempotencyCache(client).Get(context.Background(), "key-1")

	require.Error(t, err)
	assert.NotErrorIs(t, err, custom_err.ErrNotFound)
}

func TestProfileCache_RoundTrip(t *testing.T) {
	mr, client := setupRedis(t)
	c := NewProfileCache(client, 5*time.Minute)
	ctx := context.Background()
	home := "Paris"

	_, err := c.Get(ctx, "user-1")
	assert.ErrorIs(t, err, custom_err.ErrNotFound)

	require.NoError(t, c.Set(ctx, &models.UserProfile{
		UserID:                   "user-1",
		RiskScore:                0.1,
		HomeLocation:             &home,
		AverageTransactionAmount: 80,
		TransactionCount:         4,
	}))
	assert.Equal(t, 5*time.Minute, mr.TTL("user_profile:user-1"))

	p, err := c.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Paris", *p.HomeLocation)
	assert.Equal(t, int64(4), p.TransactionCount)
}

func TestRateLimiter_Allow(t *testing.T) {
	mr, client := setupRedis(t)
	l := NewRateLimiter(client, 2, time.Minute)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		ok, n, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(i), n)
	}

	ok, n, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(3), n)

	ok, _, err = l.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(time.Minute + time.Second)

	ok, n, err = l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), n)
}

func TestRateLimiter_RestoresMissingTTL(t *testing.T) {
	mr, client := setupRedis(t)
	l := NewRateLimiter(client, 2, time.Minute)
	ctx := context.Background()

	// counter left without a TTL, as after a failed EXPIRE
	key := "rate_limit:10.0.0.9:60"
	require.NoError(t, mr.Set(key, "5"))

	ok, n, err := l.Allow(ctx, "10.0.0.9")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(6), n)
	assert.Equal(t, time.Minute, mr.TTL(key))

	mr.FastForward(time.Minute + time.Second)

	ok, n, err = l.Allow(ctx, "10.0.0.9")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), n)
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	mr, client := setupRedis(t)
	mr.Close()

	ok, _, err := NewRateLimiter(client, 1, time.Minute).Allow(context.Background(), "10.0.0.1")

	assert.Error(t, err)
	assert.True(t, ok)
}

func TestTaskMarker(t *testing.T) {
	mr, client := setupRedis(t)
	m := NewTaskMarker(client, time.Hour)
	ctx := context.Background()

	seen, err := m.Seen(ctx, "task-1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, m.MarkDone(ctx, "task-1"))
	seen, err = m.Seen(ctx, "task-1")
	require.NoError(t, err)
	assert.True(t, seen)
	assert.Equal(t, time.Hour, mr.TTL("task_done:task-1"))

	mr.FastForward(2 * time.Hour)
	seen, err = m.Seen(ctx, "task-1")
	require.NoError(t, err)
	assert.False(t, seen)
}
