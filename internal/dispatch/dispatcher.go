// Package dispatch hands side-effect tasks to a broker without blocking the
// request that produced them.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"gw-fraud-scoring/internal/models"
	"gw-fraud-scoring/pkg/metrics"
)

const (
	DefaultWorkers        = 5
	DefaultBuffer         = 1000
	DefaultPublishTimeout = 5 * time.Second
)

// Publisher отправляет задачу в брокер
type Publisher interface {
	Publish(ctx context.Context, task models.Task) error
	Close() error
}

type Config struct {
	Workers        int
	Buffer         int
	PublishTimeout time.Duration
}

type Dispatcher struct {
	publisher Publisher
	cfg       Config
	log       *slog.Logger
	metrics   *metrics.Collector

	queue    chan models.Task
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(publisher Publisher, cfg Config, log *slog.Logger, m *metrics.Collector) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultBuffer
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}

	d := &Dispatcher{
		publisher: publisher,
		cfg:       cfg,
		log:       log,
		metrics:   m,
		queue:     make(chan models.Task, cfg.Buffer),
		stopCh:    make(chan struct{}),
	}

	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	return d
}

// Submit never blocks. It returns false when the task was dropped.
func (d *Dispatcher) Submit(kind models.TaskKind, key string, payload any) bool {
	task, err := models.NewTask(kind, key, payload)
	if err != nil {
		d.log.Error("не удалось сериализовать задачу",
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()))
		d.metrics.RecordDispatchDropped(string(kind))
		return false
	}

	select {
	case <-d.stopCh:
		d.log.Warn("диспетчер остановлен, задача отброшена",
			slog.String("kind", string(kind)),
			slog.String("task_id", task.ID.String()))
		d.metrics.RecordDispatchDropped(string(kind))
		return false
	default:
	}

	select {
	case d.queue <- task:
		return true
	default:
		d.log.Error("очередь задач переполнена, задача отброшена",
			slog.String("kind", string(kind)),
			slog.String("task_id", task.ID.String()),
			slog.Int("buffer", d.cfg.Buffer))
		d.metrics.RecordDispatchDropped(string(kind))
		return false
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	d.log.Debug("воркер диспетчера запущен", slog.Int("worker_id", id))

	for {
		select {
		case task := <-d.queue:
			d.publish(id, task)
		case <-d.stopCh:
			// дочищаем то, что успели поставить до остановки
			for {
				select {
				case task := <-d.queue:
					d.publish(id, task)
				default:
					d.log.Debug("воркер диспетчера остановлен", slog.Int("worker_id", id))
					return
				}
			}
		}
	}
}

func (d *Dispatcher) publish(workerID int, task models.Task) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.PublishTimeout)
	defer cancel()

	err := d.publisher.Publish(ctx, task)
	d.metrics.RecordDispatchPublished(string(task.Kind), err)
	if err != nil {
		d.log.Error("не удалось отправить задачу в брокер",
			slog.Int("worker_id", workerID),
			slog.String("kind", string(task.Kind)),
			slog.String("task_id", task.ID.String()),
			slog.String("error", err.Error()))
		return
	}

	d.log.Debug("задача отправлена",
		slog.Int("worker_id", workerID),
		slog.String("kind", string(task.Kind)),
		slog.String("task_id", task.ID.String()))
}

// Shutdown stops accepting tasks, drains the queue and closes the publisher.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.log.Info("остановка диспетчера задач")
	d.stopOnce.Do(func() { close(d.stopCh) })

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.log.Info("все воркеры диспетчера остановлены")
		return d.publisher.Close()
	case <-ctx.Done():
		d.log.Warn("превышено время остановки диспетчера",
			slog.Int("pending", len(d.queue)))
		return ctx.Err()
	}
}

// NoopPublisher используется, когда брокер отключён
type NoopPublisher struct {
	log *slog.Logger
}

func NewNoopPublisher(log *slog.Logger) *NoopPublisher {
	return &NoopPublisher{log: log}
}

func (p *NoopPublisher) Publish(_ context.Context, task models.Task) error {
	p.log.Debug("брокер отключён, задача не отправлена",
		slog.String("kind", string(task.Kind)),
		slog.String("task_id", task.ID.String()))
	return nil
}

func (p *NoopPublisher) Close() error { return nil }
