package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"gw-fraud-scoring/internal/anomaly"
	"gw-fraud-scoring/internal/api/handlers"
	"gw-fraud-scoring/internal/api/middlew"
	"gw-fraud-scoring/internal/config"
	"gw-fraud-scoring/internal/db"
	"gw-fraud-scoring/internal/dispatch"
	"gw-fraud-scoring/internal/idempotency"
	"gw-fraud-scoring/internal/kafka"
	"gw-fraud-scoring/internal/rabbitmq"
	"gw-fraud-scoring/internal/server"
	"gw-fraud-scoring/internal/service"
	"gw-fraud-scoring/internal/storage/cache"
	"gw-fraud-scoring/internal/storage/postgres"
	"gw-fraud-scoring/pkg/logger"
	"gw-fraud-scoring/pkg/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	healthTimeout          = 2 * time.Second
	shutdownTimeout        = 30 * time.Second
	migrationRetryInterval = 10 * time.Second
)

type App struct {
	log        *slog.Logger
	logFile    *logger.LoggerWithFile
	server     *server.Server
	pool       *pgxpool.Pool
	redis      *redis.Client
	cfg        *config.Config
	metrics    *metrics.Collector
	dispatcher *dispatch.Dispatcher
	ruleCache  *service.RuleCache
	api        chi.Router

	background context.Context
	stopJobs   context.CancelFunc
	jobs       sync.WaitGroup
}

func NewApp() (*App, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации конфига: %w", err)
	}

	loggerWithFile, err := logger.NewLoggerWithFile(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации логгера: %w", err)
	}
	log := loggerWithFile.Logger
	log.Info("инициализация приложения",
		slog.String("port", cfg.HTTPPort),
		slog.String("version", cfg.AppVersion),
		slog.String("queue_backend", cfg.Queue.Backend))

	collector := metrics.NewCollector()

	// без базы сервис продолжает принимать транзакции: решения отдаются,
	// запись в журнал деградирует, миграции догоняются в фоне
	log.Info("выполнение миграций базы данных")
	migrationsPending := false
	if _, err := db.RunMigrations(cfg.DB.MigrationURL(), "migrations", log); err != nil {
		log.Warn("миграции не применены, повторим в фоне", slog.String("error", err.Error()))
		collector.RecordDegraded("postgres")
		migrationsPending = true
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DB.DSN(), db.PoolConfig{
		MaxConns:          50,
		MinConns:          5,
		HealthCheckPeriod: 30 * time.Second,
		ApplicationName:   "fraud-gateway",
		Retry:             db.RetryConfig{Attempts: 5, Delay: time.Second},
	}, log)
	if pool == nil {
		return nil, fmt.Errorf("ошибка конфигурации пула базы данных: %w", err)
	}
	if err != nil {
		log.Warn("база данных недоступна, работаем в деградированном режиме", slog.String("error", err.Error()))
		collector.RecordDegraded("postgres")
	}

	// Redis не обязателен: без него кэши и rate limiter деградируют
	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis, db.RetryConfig{Attempts: 3, Delay: 500 * time.Millisecond}, log)
	if err != nil {
		log.Warn("redis недоступен, работаем без кэша", slog.String("error", err.Error()))
	}

	publisher, err := newPublisher(cfg, log)
	if err != nil {
		pool.Close()
		return nil, err
	}
	dispatcher := dispatch.New(publisher, dispatch.Config{
		Workers:        cfg.Queue.DispatchWorkers,
		Buffer:         cfg.Queue.DispatchBuffer,
		PublishTimeout: cfg.Queue.PublishTimeout,
	}, log, collector)

	srv := server.NewServer(server.Config{
		Port:         cfg.HTTPPort,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	})
	srv.Router.Use(middleware.RequestID)
	srv.Router.Use(middleware.RealIP)
	srv.Router.Use(middlew.WithLogger(log))
	srv.Router.Use(middleware.Recoverer)
	srv.RegisterSwagger()
	srv.RegisterMetrics(collector.Handler())

	limiter := cache.NewRateLimiter(redisClient, cfg.RateLimit.PerMinute, time.Minute)
	api := srv.Router.With(middlew.RateLimit(limiter, cfg.Pipeline.CacheTimeout, collector))
	log.Info("сервер инициализирован", slog.String("port", cfg.HTTPPort))

	background, stopJobs := context.WithCancel(context.Background())

	a := &App{
		log:        log,
		logFile:    loggerWithFile,
		server:     srv,
		pool:       pool,
		redis:      redisClient,
		cfg:        cfg,
		metrics:    collector,
		dispatcher: dispatcher,
		api:        api,
		background: background,
		stopJobs:   stopJobs,
	}
	if migrationsPending {
		a.runJob(func(ctx context.Context) {
			_ = db.RetryEvery(ctx, "migrations", migrationRetryInterval, log, func(context.Context) error {
				_, err := db.RunMigrations(cfg.DB.MigrationURL(), "migrations", log)
				return err
			})
		})
	}
	return a, nil
}

// runJob запускает фоновую задачу, которая останавливается вместе с приложением.
func (a *App) runJob(job func(ctx context.Context)) {
	a.jobs.Add(1)
	go func() {
		defer a.jobs.Done()
		job(a.background)
	}()
}

func newPublisher(cfg *config.Config, log *slog.Logger) (dispatch.Publisher, error) {
	switch cfg.Queue.Backend {
	case config.QueueKafka:
		log.Info("инициализация kafka producer", slog.Any("brokers", cfg.Kafka.Brokers))
		p, err := kafka.NewKafkaProducer(cfg.Kafka, log)
		if err != nil {
			return nil, fmt.Errorf("ошибка инициализации kafka: %w", err)
		}
		return p, nil
	case config.QueueRabbitMQ:
		log.Info("инициализация rabbitmq publisher", slog.String("queue", cfg.RabbitMQ.Queue))
		p, err := rabbitmq.NewPublisher(cfg.RabbitMQ, log)
		if err != nil {
			return nil, fmt.Errorf("ошибка инициализации rabbitmq: %w", err)
		}
		return p, nil
	default:
		log.Warn("очередь задач отключена, побочные эффекты не выполняются")
		return dispatch.NewNoopPublisher(log), nil
	}
}

func (a *App) rules() *service.RuleCache {
	if a.ruleCache == nil {
		a.ruleCache = service.NewRuleCache(postgres.NewRuleRepository(a.pool), a.cfg.Pipeline.RuleCacheTTL, a.log)
	}
	return a.ruleCache
}

func (a *App) BuildTransactionLayer() {
	pc := a.cfg.Pipeline

	store := idempotency.NewStore(
		cache.NewIdempotencyCache(a.redis),
		postgres.NewIdempotencyRepository(a.pool),
		idempotency.Config{TTL: pc.IdempotencyTTL, CacheTimeout: pc.CacheTimeout, StoreTimeout: pc.StoreTimeout},
		a.log,
		a.metrics,
	)

	profiles := service.NewProfileService(
		cache.NewProfileCache(a.redis, pc.ProfileCacheTTL),
		postgres.NewProfileRepository(a.pool),
		service.NewPgxTxManager(a.pool),
		a.log,
	)

	scorer := anomaly.NewScorer(a.cfg.Model.Path, a.log)
	if err := scorer.Warmup(); err != nil {
		a.log.Warn("модель аномалий не загружена, повторим при первом запросе", slog.String("error", err.Error()))
	}

	pipeline := service.NewPipeline(
		postgres.NewTransactionRepository(a.pool),
		store,
		a.rules(),
		profiles,
		scorer,
		a.dispatcher,
		service.PipelineConfig{
			LatencyBudget: pc.LatencyBudget,
			CacheTimeout:  pc.CacheTimeout,
			StoreTimeout:  pc.StoreTimeout,
			WebhookURL:    a.cfg.Webhook.URL,
		},
		a.log,
		a.metrics,
	)

	a.runJob(func(ctx context.Context) { store.PurgeEvery(ctx, pc.PurgeInterval) })

	h := handlers.NewTransactionHandler(pipeline)
	a.api.Post("/api/v1/transactions", h.SubmitTransaction)

	a.log.Info("слой 'transactions' собран и маршруты зарегистрированы")
}

func (a *App) BuildQueryLayer() {
	ledger := service.NewLedgerService(postgres.NewTransactionRepository(a.pool), a.log)
	h := handlers.NewQueryHandler(ledger)

	a.api.Get("/api/v1/balance/{userID}", h.GetBalance)
	a.api.Get("/api/v1/history/{userID}", h.GetHistory)

	a.log.Info("слой 'ledger' собран и маршруты зарегистрированы")
}

func (a *App) BuildRuleLayer() {
	rules := service.NewRuleService(postgres.NewRuleRepository(a.pool), a.rules(), a.log)
	h := handlers.NewRuleHandler(rules)

	a.api.Post("/api/v1/rules", h.CreateRule)
	a.api.Get("/api/v1/rules", h.ListRules)

	a.log.Info("слой 'rules' собран и маршруты зарегистрированы")
}

func (a *App) BuildHealthLayer() {
	var redisPing service.PingFunc
	if a.redis != nil {
		redisPing = func(ctx context.Context) error { return a.redis.Ping(ctx).Err() }
	}
	health := service.NewHealthService(a.cfg.AppVersion, a.pool.Ping, redisPing, healthTimeout, a.log)

	a.server.Router.Get("/health", handlers.NewHealthHandler(health).Health)

	a.log.Info("слой 'health' собран и маршруты зарегистрированы")
}

func (a *App) Run() error {
	a.log.Info("сервер запускается")

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("ошибка запуска сервера: %w", err)
		}
	}()

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case runErr = <-serverErr:
	case sig := <-shutdownChan:
		a.log.Info("получен сигнал завершения", slog.String("signal", sig.String()))
	}

	a.log.Info("приложение останавливается")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.log.Error("ошибка при остановке http сервера", slog.String("error", err.Error()))
	}

	a.stopJobs()
	a.jobs.Wait()

	// сервер уже не принимает запросы, дописываем оставшиеся задачи
	a.log.Info("остановка диспетчера задач")
	if err := a.dispatcher.Shutdown(ctx); err != nil {
		a.log.Error("ошибка при остановке диспетчера", slog.String("error", err.Error()))
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Error("ошибка при закрытии redis", slog.String("error", err.Error()))
		}
	}

	a.log.Info("закрытие соединения с базой данных")
	a.pool.Close()

	a.log.Info("приложение остановлено")
	if err := a.logFile.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("ошибка при закрытии файла логов: %w", err)
	}
	return runErr
}
