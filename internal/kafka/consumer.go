package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gw-fraud-scoring/internal/config"
	"gw-fraud-scoring/internal/models"

	"github.com/IBM/sarama"
)

const rejoinDelay = 2 * time.Second

// TaskHandler выполняет задачу, полученную из брокера
type TaskHandler interface {
	Handle(ctx context.Context, task models.Task) error
}

// Consumer reads tasks with one consumer-group session. Sarama runs each
// claimed partition in its own goroutine, so tasks of one user stay ordered
// while different users are processed in parallel.
type Consumer struct {
	group   sarama.ConsumerGroup
	claims  *claimHandler
	topic   string
	log     *slog.Logger
	stopped chan struct{}
}

func NewConsumer(cfg config.KafkaConfig, handler TaskHandler, log *slog.Logger) (*Consumer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Version = sarama.V3_0_0_0
	saramaCfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategySticky()}
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaCfg.Consumer.Offsets.AutoCommit.Interval = time.Second
	saramaCfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	log.Info("kafka consumer создан",
		slog.String("group_id", cfg.GroupID),
		slog.String("topic", cfg.Topic))

	return &Consumer{
		group:   group,
		claims:  &claimHandler{handler: handler, log: log},
		topic:   cfg.Topic,
		log:     log,
		stopped: make(chan struct{}),
	}, nil
}

// Start joins the group in the background. The session is re-joined after
// every rebalance until ctx is cancelled or the group is closed.
func (c *Consumer) Start(ctx context.Context) error {
	c.log.Info("запуск kafka consumer", slog.String("topic", c.topic))

	go func() {
		defer close(c.stopped)
		for {
			err := c.group.Consume(ctx, []string{c.topic}, c.claims)
			if errors.Is(err, sarama.ErrClosedConsumerGroup) || ctx.Err() != nil {
				return
			}
			if err != nil {
				c.log.Error("ошибка сессии consumer group, переподключение",
					slog.String("error", err.Error()))
				select {
				case <-ctx.Done():
					return
				case <-time.After(rejoinDelay):
				}
			}
		}
	}()

	go func() {
		for err := range c.group.Errors() {
			c.log.Error("ошибка consumer group", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Close leaves the group and waits for in-flight tasks up to ctx's deadline.
func (c *Consumer) Close(ctx context.Context) error {
	c.log.Info("закрытие kafka consumer")

	if err := c.group.Close(); err != nil {
		c.log.Error("failed to close consumer group", slog.String("error", err.Error()))
	}

	select {
	case <-c.stopped:
		c.log.Info("kafka consumer закрыт")
		return nil
	case <-ctx.Done():
		c.log.Warn("kafka consumer close timeout")
		return ctx.Err()
	}
}

type claimHandler struct {
	handler TaskHandler
	log     *slog.Logger
}

func (h *claimHandler) Setup(session sarama.ConsumerGroupSession) error {
	h.log.Info("получены партиции", slog.Any("claims", session.Claims()))
	return nil
}

func (h *claimHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *claimHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			h.consume(session.Context(), message)
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// consume runs one message. The executor already retried the task, so a
// failure here is logged and the offset still moves forward: a stuck
// partition would delay every later task of the same users.
func (h *claimHandler) consume(ctx context.Context, message *sarama.ConsumerMessage) {
	if err := h.processMessage(ctx, message); err != nil {
		h.log.Error("задача не выполнена, сообщение пропущено",
			slog.String("kind", taskKind(message)),
			slog.String("key", string(message.Key)),
			slog.Int("partition", int(message.Partition)),
			slog.Int64("offset", message.Offset),
			slog.String("error", err.Error()))
	}
}

// processMessage returns an error only for tasks worth redelivering.
// Undecodable messages are logged and acknowledged.
func (h *claimHandler) processMessage(ctx context.Context, message *sarama.ConsumerMessage) error {
	h.log.Debug("получено сообщение из kafka",
		slog.String("kind", taskKind(message)),
		slog.Int("partition", int(message.Partition)),
		slog.Int64("offset", message.Offset))

	var task models.Task
	if err := json.Unmarshal(message.Value, &task); err != nil {
		h.log.Error("ошибка десериализации задачи",
			slog.String("error", err.Error()),
			slog.String("raw_message", string(message.Value)))
		return nil
	}
	if !task.Kind.IsValid() {
		h.log.Error("неизвестный тип задачи", slog.String("kind", string(task.Kind)))
		return nil
	}

	return h.handler.Handle(ctx, task)
}

func taskKind(message *sarama.ConsumerMessage) string {
	for _, header := range message.Headers {
		if header != nil && string(header.Key) == headerTaskKind {
			return string(header.Value)
		}
	}
	return ""
}
