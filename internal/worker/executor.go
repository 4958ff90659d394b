// Package worker executes side-effect tasks taken from the broker.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gw-fraud-scoring/internal/models"
	"gw-fraud-scoring/pkg/metrics"
)

const (
	DefaultTaskAttempts = 3
	DefaultTaskBackoff  = 500 * time.Millisecond
)

var (
	ErrUnknownTask = errors.New("unknown task kind")
	// errPermanent marks failures that a redelivery cannot fix.
	errPermanent = errors.New("permanent task failure")
)

type ProfileUpdater interface {
	ApplyTransaction(ctx context.Context, p models.ProfileUpdatePayload) (*models.UserProfile, error)
}

type AlertSender interface {
	Notify(ctx context.Context, p models.FraudAlertPayload) error
}

type WebhookDeliverer interface {
	Deliver(ctx context.Context, p models.WebhookPayload) error
}

// TaskMarker хранит идентификаторы уже выполненных задач
type TaskMarker interface {
	Seen(ctx context.Context, taskID string) (bool, error)
	MarkDone(ctx context.Context, taskID string) error
}

type Executor struct {
	profiles ProfileUpdater
	alerts   AlertSender
	webhooks WebhookDeliverer
	marker   TaskMarker
	log      *slog.Logger
	metrics  *metrics.Collector

	attempts int
	backoff  time.Duration
	sleep    sleepFunc
}

func NewExecutor(profiles ProfileUpdater, alerts AlertSender, webhooks WebhookDeliverer, marker TaskMarker, log *slog.Logger, m *metrics.Collector) *Executor {
	return &Executor{
		profiles: profiles,
		alerts:   alerts,
		webhooks: webhooks,
		marker:   marker,
		log:      log,
		metrics:  m,
		attempts: DefaultTaskAttempts,
		backoff:  DefaultTaskBackoff,
		sleep:    sleepCtx,
	}
}

// Handle runs one task. Tasks already marked as done are skipped, so broker
// redelivery does not apply a profile update twice.
func (e *Executor) Handle(ctx context.Context, task models.Task) error {
	const op = "worker.Executor.Handle"

	log := e.log.With(
		slog.String("task_id", task.ID.String()),
		slog.String("kind", string(task.Kind)))

	if e.seen(ctx, task, log) {
		log.Info("задача уже выполнена, пропускаем")
		return nil
	}

	err := e.run(ctx, task)
	e.metrics.RecordTask(string(task.Kind), err)
	if errors.Is(err, errPermanent) {
		log.Error("задача отброшена", slog.String("op", op), slog.String("error", err.Error()))
		return nil
	}
	if err != nil {
		log.Error("задача не выполнена", slog.String("op", op), slog.String("error", err.Error()))
		return fmt.Errorf("%s: %w", op, err)
	}

	if e.marker != nil {
		if err := e.marker.MarkDone(ctx, task.ID.String()); err != nil {
			log.Warn("не удалось отметить задачу выполненной", slog.String("error", err.Error()))
		}
	}
	log.Debug("задача выполнена")
	return nil
}

func (e *Executor) seen(ctx context.Context, task models.Task, log *slog.Logger) bool {
	if e.marker == nil {
		return false
	}
	done, err := e.marker.Seen(ctx, task.ID.String())
	if err != nil {
		log.Warn("не удалось проверить повторную доставку", slog.String("error", err.Error()))
		return false
	}
	return done
}

func (e *Executor) run(ctx context.Context, task models.Task) error {
	switch task.Kind {
	case models.TaskProfileUpdate:
		var p models.ProfileUpdatePayload
		if err := json.Unmarshal(task.Payload, &p); err != nil {
			return fmt.Errorf("%w: decode payload: %w", errPermanent, err)
		}
		return retry(ctx, e.attempts, e.backoff, e.sleep, func(int) error {
			_, err := e.profiles.ApplyTransaction(ctx, p)
			return err
		})

	case models.TaskFraudAlert:
		var p models.FraudAlertPayload
		if err := json.Unmarshal(task.Payload, &p); err != nil {
			return fmt.Errorf("%w: decode payload: %w", errPermanent, err)
		}
		return retry(ctx, e.attempts, e.backoff, e.sleep, func(int) error {
			return e.alerts.Notify(ctx, p)
		})

	case models.TaskMerchantWebhook:
		var p models.WebhookPayload
		if err := json.Unmarshal(task.Payload, &p); err != nil {
			return fmt.Errorf("%w: decode payload: %w", errPermanent, err)
		}
		// у вебхука собственные повторы и журнал попыток
		return e.webhooks.Deliver(ctx, p)

	default:
		return fmt.Errorf("%w: %w: %q", errPermanent, ErrUnknownTask, task.Kind)
	}
}
