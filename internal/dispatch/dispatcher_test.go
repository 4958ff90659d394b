package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"gw-fraud-scoring/internal/models"
	"gw-fraud-scoring/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	tasks  []models.Task
	block  chan struct{}
	err    error
	closed bool
}

func (p *recordingPublisher) Publish(ctx context.Context, task models.Task) error {
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks = append(p.tasks, task)
	return p.err
}

func (p *recordingPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tasks)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcher_PublishesSubmittedTasks(t *testing.T) {
	pub := &recordingPublisher{}
	d := New(pub, Config{Workers: 2, Buffer: 10}, discardLogger(), nil)

	ok := d.Submit(models.TaskProfileUpdate, "user-1", models.ProfileUpdatePayload{UserID: "user-1", Amount: 10})
	require.True(t, ok)

	require.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, d.Shutdown(context.Background()))

	task := pub.tasks[0]
	assert.Equal(t, models.TaskProfileUpdate, task.Kind)
	assert.Equal(t, "user-1", task.Key)
	assert.JSONEq(t, `{"user_id":"user-1","transaction_id":"","amount":10,"transaction_type":"","occurred_at":"0001-01-01T00:00:00Z"}`, string(task.Payload))
	assert.True(t, pub.closed)
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	pub := &recordingPublisher{block: make(chan struct{})}
	m := metrics.NewCollector()
	d := New(pub, Config{Workers: 1, Buffer: 1}, discardLogger(), m)

	// first task occupies the worker, second fills the buffer
	require.True(t, d.Submit(models.TaskFraudAlert, "u", models.FraudAlertPayload{}))
	require.Eventually(t, func() bool { return len(d.queue) == 0 }, time.Second, time.Millisecond)
	require.True(t, d.Submit(models.TaskFraudAlert, "u", models.FraudAlertPayload{}))

	start := time.Now()
	assert.False(t, d.Submit(models.TaskFraudAlert, "u", models.FraudAlertPayload{}))
	assert.Less(t, time.Since(start), 50*time.Millisecond, "submit never blocks")
	expected := `
# HELP fraud_dispatch_dropped_total Number of side-effect tasks dropped because the queue was full
# TYPE fraud_dispatch_dropped_total counter
fraud_dispatch_dropped_total{kind="fraud_alert"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "fraud_dispatch_dropped_total"))

	close(pub.block)
	require.NoError(t, d.Shutdown(context.Background()))
	assert.Equal(t, 2, pub.count(), "queued tasks are drained on shutdown")
}

func TestDispatcher_PublishErrorIsLoggedNotReturned(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	d := New(pub, Config{Workers: 1, Buffer: 4}, discardLogger(), nil)

	assert.True(t, d.Submit(models.TaskMerchantWebhook, "u", models.WebhookPayload{}))
	require.NoError(t, d.Shutdown(context.Background()))
	assert.Equal(t, 1, pub.count())
}

func TestDispatcher_RejectsAfterShutdown(t *testing.T) {
	d := New(&recordingPublisher{}, Config{Workers: 1, Buffer: 4}, discardLogger(), nil)
	require.NoError(t, d.Shutdown(context.Background()))

	assert.False(t, d.Submit(models.TaskProfileUpdate, "u", models.ProfileUpdatePayload{}))
}

func TestDispatcher_ShutdownTimeout(t *testing.T) {
	pub := &recordingPublisher{block: make(chan struct{})}
	d := New(pub, Config{Workers: 1, Buffer: 4, PublishTimeout: time.Minute}, discardLogger(), nil)
	require.True(t, d.Submit(models.TaskProfileUpdate, "u", models.ProfileUpdatePayload{}))
	require.Eventually(t, func() bool { return len(d.queue) == 0 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, d.Shutdown(ctx), context.DeadlineExceeded)
	close(pub.block)
}
