package middlew

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"gw-fraud-scoring/pkg/metrics"
	"gw-fraud-scoring/pkg/response"
)

type Limiter interface {
	Allow(ctx context.Context, key string) (bool, int64, error)
	Limit() int
}

// RateLimit ограничивает число запросов с одного IP. Проверка ограничена
// timeout; если Redis недоступен или не успел ответить, запрос пропускается.
func RateLimit(limiter Limiter, timeout time.Duration, m *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := GetLogger(r.Context())
			ip := clientIP(r)

			allowed, current, err := allow(r.Context(), limiter, ip, timeout)
			if err != nil {
				log.Warn("rate limiter недоступен, запрос пропущен",
					slog.String("client_ip", ip),
					slog.String("error", err.Error()))
				m.RecordDegraded("rate_limiter")
				next.ServeHTTP(w, r)
				return
			}

			remaining := int64(limiter.Limit()) - current
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if !allowed {
				log.Warn("превышен лимит запросов", slog.String("client_ip", ip), slog.Int64("count", current))
				m.RecordRateLimited()
				response.WriteJSONError(w, log, http.StatusTooManyRequests, response.CodeRateLimited, "Too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func allow(ctx context.Context, limiter Limiter, ip string, timeout time.Duration) (bool, int64, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return limiter.Allow(ctx, ip)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
