package middlew

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gw-fraud-scoring/internal/config"
	"gw-fraud-scoring/internal/storage/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func setupLimiter(t *testing.T, limit int) (*miniredis.Miniredis, *cache.RateLimiter) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, cache.NewRateLimiter(client, limit, time.Minute)
}

func request(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_RejectsOverLimit(t *testing.T) {
	_, limiter := setupLimiter(t, 2)
	h := RateLimit(limiter, 50*time.Millisecond, nil)(okHandler())

	first := request(h, "10.0.0.1:5000")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, request(h, "10.0.0.1:5001").Code)

	third := request(h, "10.0.0.1:5002")
	assert.Equal(t, http.StatusTooManyRequests, third.Code)
	assert.Contains(t, third.Body.String(), "rate_limited")
	assert.Equal(t, "0", third.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, request(h, "10.0.0.2:5000").Code, "other clients keep their own window")
}

func TestRateLimit_FailsOpen(t *testing.T) {
	mr, limiter := setupLimiter(t, 1)
	mr.Close()
	h := RateLimit(limiter, 50*time.Millisecond, nil)(okHandler())

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, request(h, "10.0.0.1:5000").Code)
	}
}

// blackhole accepts connections and never answers.
func blackhole(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		var conns []net.Conn
		defer func() {
			for _, c := range conns {
				_ = c.Close()
			}
		}()
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			conns = append(conns, c)
		}
	}()
	return ln.Addr().String()
}

func TestRateLimit_HungRedisFailsOpenWithinTimeout(t *testing.T) {
	client := redis.NewClient(cache.Options(config.RedisConfig{
		Addr:         blackhole(t),
		DialTimeout:  200 * time.Millisecond,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}))
	t.Cleanup(func() { _ = client.Close() })
	h := RateLimit(cache.NewRateLimiter(client, 10, time.Minute), 50*time.Millisecond, nil)(okHandler())

	start := time.Now()
	rec := request(h, "10.0.0.1:5000")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestWithLogger_CarriesTraceID(t *testing.T) {
	var seen *slog.Logger
	h := middleware.RequestID(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetLogger(r.Context())
		})))

	rec := request(h, "10.0.0.1:5000")

	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
	require.NotNil(t, seen)
	assert.NotSame(t, slog.Default(), seen)
	assert.Same(t, slog.Default(), GetLogger(context.Background()))
}
