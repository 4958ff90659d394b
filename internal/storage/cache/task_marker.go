package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	taskPrefix         = "task_done:"
	DefaultTaskMarkTTL = 24 * time.Hour
)

// TaskMarker remembers executed task ids so that a redelivered task is not
// applied twice.
type TaskMarker struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewTaskMarker(client redis.Cmdable, ttl time.Duration) *TaskMarker {
	if ttl <= 0 {
		ttl = DefaultTaskMarkTTL
	}
	return &TaskMarker{client: client, ttl: ttl}
}

func (m *TaskMarker) Seen(ctx context.Context, taskID string) (bool, error) {
	n, err := m.client.Exists(ctx, taskPrefix+taskID).Result()
	if err != nil {
		return false, fmt.Errorf("cache.TaskMarker.Seen: %w", err)
	}
	return n > 0, nil
}

func (m *TaskMarker) MarkDone(ctx context.Context, taskID string) error {
	if err := m.client.Set(ctx, taskPrefix+taskID, 1, m.ttl).Err(); err != nil {
		return fmt.Errorf("cache.TaskMarker.MarkDone: %w", err)
	}
	return nil
}
