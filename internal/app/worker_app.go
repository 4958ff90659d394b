package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gw-fraud-scoring/internal/config"
	"gw-fraud-scoring/internal/db"
	"gw-fraud-scoring/internal/kafka"
	"gw-fraud-scoring/internal/rabbitmq"
	"gw-fraud-scoring/internal/server"
	"gw-fraud-scoring/internal/service"
	"gw-fraud-scoring/internal/storage/cache"
	"gw-fraud-scoring/internal/storage/mongodb"
	"gw-fraud-scoring/internal/storage/postgres"
	"gw-fraud-scoring/internal/worker"
	"gw-fraud-scoring/pkg/logger"
	"gw-fraud-scoring/pkg/metrics"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type taskConsumer interface {
	Start(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkerApp забирает задачи из брокера и выполняет побочные эффекты решений.
type WorkerApp struct {
	log      *slog.Logger
	logFile  *logger.LoggerWithFile
	cfg      *config.Config
	pool     *pgxpool.Pool
	redis    *redis.Client
	alerts   *mongodb.MongoAlertStorage
	consumer taskConsumer
	metrics  *server.Server
}

func NewWorkerApp() (*WorkerApp, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}
	if cfg.Queue.Backend == config.QueueNone {
		return nil, errors.New("QUEUE_BACKEND=none: воркеру нечего потреблять")
	}

	loggerWithFile, err := logger.NewLoggerWithFile(cfg.WorkerLogFile, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации логгера: %w", err)
	}
	log := loggerWithFile.Logger
	log.Info("инициализация воркера", slog.String("queue_backend", cfg.Queue.Backend))

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DB.DSN(), db.PoolConfig{
		MaxConns:        20,
		MinConns:        2,
		ApplicationName: "fraud-worker",
		Retry:           db.RetryConfig{Attempts: 5, Delay: time.Second},
	}, log)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, fmt.Errorf("не удалось подключиться к базе данных: %w", err)
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis, db.RetryConfig{Attempts: 3, Delay: 500 * time.Millisecond}, log)
	if err != nil {
		log.Warn("redis недоступен, дедупликация задач отключена", slog.String("error", err.Error()))
	}

	log.Info("подключение к MongoDB", slog.String("database", cfg.MongoDB.Database))
	mongoCtx, cancel := context.WithTimeout(ctx, cfg.MongoDB.Timeout)
	defer cancel()
	alerts, err := mongodb.NewMongoAlertStorage(mongoCtx, cfg.MongoDB)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка подключения к MongoDB: %w", err)
	}

	collector := metrics.NewCollector()

	profiles := service.NewProfileService(
		cache.NewProfileCache(redisClient, cfg.Pipeline.ProfileCacheTTL),
		postgres.NewProfileRepository(pool),
		service.NewPgxTxManager(pool),
		log,
	)
	executor := worker.NewExecutor(
		profiles,
		worker.NewAlertNotifier(alerts, log),
		worker.NewWebhookSender(cfg.Webhook, postgres.NewWebhookLogRepository(pool), log, collector),
		cache.NewTaskMarker(redisClient, cache.DefaultTaskMarkTTL),
		log,
		collector,
	)

	var consumer taskConsumer
	switch cfg.Queue.Backend {
	case config.QueueRabbitMQ:
		log.Info("инициализация rabbitmq consumer", slog.String("queue", cfg.RabbitMQ.Queue))
		consumer, err = rabbitmq.NewConsumer(cfg.RabbitMQ, cfg.RabbitMQ.Workers, executor, log)
	default:
		log.Info("инициализация kafka consumer", slog.String("topic", cfg.Kafka.Topic))
		consumer, err = kafka.NewConsumer(cfg.Kafka, executor, log)
	}
	if err != nil {
		_ = alerts.Close()
		pool.Close()
		return nil, fmt.Errorf("ошибка создания consumer: %w", err)
	}

	metricsSrv := server.NewServer(server.Config{Port: cfg.WorkerMetricsPort})
	metricsSrv.RegisterMetrics(collector.Handler())

	return &WorkerApp{
		log:      log,
		logFile:  loggerWithFile,
		cfg:      cfg,
		pool:     pool,
		redis:    redisClient,
		alerts:   alerts,
		consumer: consumer,
		metrics:  metricsSrv,
	}, nil
}

func (a *WorkerApp) Run() error {
	a.log.Info("воркер запускается")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.consumer.Start(ctx); err != nil {
		return fmt.Errorf("ошибка запуска consumer: %w", err)
	}

	go func() {
		if err := a.metrics.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("сервер метрик остановился", slog.String("error", err.Error()))
		}
	}()

	a.log.Info("consumer запущен, ожидание задач", slog.String("metrics_port", a.cfg.WorkerMetricsPort))

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-shutdownChan
	a.log.Info("получен сигнал завершения", slog.String("signal", sig.String()))

	cancel()

	ctxClose, cancelClose := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelClose()

	a.log.Info("закрытие consumer")
	if err := a.consumer.Close(ctxClose); err != nil {
		a.log.Error("ошибка при закрытии consumer", slog.String("error", err.Error()))
	}

	if err := a.metrics.Shutdown(ctxClose); err != nil {
		a.log.Error("ошибка при остановке сервера метрик", slog.String("error", err.Error()))
	}

	a.log.Info("закрытие соединения с MongoDB")
	if err := a.alerts.Close(); err != nil {
		a.log.Error("ошибка при закрытии MongoDB", slog.String("error", err.Error()))
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Error("ошибка при закрытии redis", slog.String("error", err.Error()))
		}
	}
	a.pool.Close()

	a.log.Info("воркер остановлен корректно")
	return a.logFile.Close()
}
