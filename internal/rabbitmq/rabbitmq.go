// Package rabbitmq is the alternative task transport, selected with
// QUEUE_BACKEND=rabbitmq.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gw-fraud-scoring/internal/config"
	"gw-fraud-scoring/internal/kafka"
	"gw-fraud-scoring/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

var ErrNotConfirmed = errors.New("rabbitmq: publish not confirmed by broker")

func dial(cfg config.RabbitMQConfig) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	return conn, ch, nil
}

type Publisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
	log   *slog.Logger
	mu    sync.Mutex
}

func NewPublisher(cfg config.RabbitMQConfig, log *slog.Logger) (*Publisher, error) {
	conn, ch, err := dial(cfg)
	if err != nil {
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq confirm mode: %w", err)
	}

	log.Info("rabbitmq publisher создан", slog.String("queue", cfg.Queue))
	return &Publisher{conn: conn, ch: ch, queue: cfg.Queue, log: log}, nil
}

func (p *Publisher) Publish(ctx context.Context, task models.Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	p.mu.Lock()
	confirm, err := p.ch.PublishWithDeferredConfirmWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			MessageId:    task.ID.String(),
			Type:         string(task.Kind),
			Timestamp:    time.Now(),
		},
	)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("rabbitmq confirm: %w", err)
	}
	if !acked {
		return ErrNotConfirmed
	}

	p.log.Debug("задача записана в rabbitmq",
		slog.String("task_id", task.ID.String()),
		slog.String("kind", string(task.Kind)))
	return nil
}

func (p *Publisher) Close() error {
	p.log.Info("закрытие rabbitmq publisher")
	return errors.Join(p.ch.Close(), p.conn.Close())
}

type Consumer struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	queue   string
	workers int
	handler kafka.TaskHandler
	log     *slog.Logger
	wg      sync.WaitGroup
}

func NewConsumer(cfg config.RabbitMQConfig, workers int, handler kafka.TaskHandler, log *slog.Logger) (*Consumer, error) {
	conn, ch, err := dial(cfg)
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = 1
	}
	if err := ch.Qos(workers, 0, false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq qos: %w", err)
	}

	log.Info("rabbitmq consumer создан", slog.String("queue", cfg.Queue), slog.Int("workers", workers))
	return &Consumer{
		conn:    conn,
		ch:      ch,
		queue:   cfg.Queue,
		workers: workers,
		handler: handler,
		log:     log,
	}, nil
}

func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq consume: %w", err)
	}

	c.log.Info("запуск rabbitmq consumer")
	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go func(workerID int) {
			defer c.wg.Done()
			c.log.Info("воркер запущен", slog.Int("worker_id", workerID))
			for d := range deliveries {
				handleDelivery(ctx, c.handler, d, c.log)
			}
		}(i)
	}
	return nil
}

func (c *Consumer) Close(ctx context.Context) error {
	c.log.Info("закрытие rabbitmq consumer")

	done := make(chan struct{})
	go func() {
		if err := c.ch.Close(); err != nil {
			c.log.Error("failed to close rabbitmq channel", slog.String("error", err.Error()))
		}
		c.wg.Wait()
		_ = c.conn.Close()
		close(done)
	}()

	select {
	case <-done:
		c.log.Info("rabbitmq consumer закрыт")
		return nil
	case <-ctx.Done():
		c.log.Warn("rabbitmq consumer close timeout")
		return ctx.Err()
	}
}

// handleDelivery acks handled and undecodable tasks. A failed task is
// requeued once and dropped on its second failure.
func handleDelivery(ctx context.Context, handler kafka.TaskHandler, d amqp.Delivery, log *slog.Logger) {
	var task models.Task
	if err := json.Unmarshal(d.Body, &task); err != nil || !task.Kind.IsValid() {
		log.Error("ошибка десериализации задачи",
			slog.String("message_id", d.MessageId),
			slog.String("raw_message", string(d.Body)))
		_ = d.Ack(false)
		return
	}

	if err := handler.Handle(ctx, task); err != nil {
		log.Error("failed to process message",
			slog.String("task_id", task.ID.String()),
			slog.Bool("redelivered", d.Redelivered),
			slog.String("error", err.Error()))
		_ = d.Nack(false, !d.Redelivered)
		return
	}
	_ = d.Ack(false)
}
