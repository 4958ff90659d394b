package worker

import (
	"context"
	"time"
)

// backoff returns base * 2^attempt for a zero-based attempt number.
func backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return base << uint(attempt)
}

type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retry calls fn up to attempts times, sleeping base*2^n between failures.
// It stops early when ctx is done and returns the last error.
func retry(ctx context.Context, attempts int, base time.Duration, sleep sleepFunc, fn func(attempt int) error) error {
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(attempt); err == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		if sleepErr := sleep(ctx, backoff(base, attempt)); sleepErr != nil {
			return err
		}
	}
	return err
}
