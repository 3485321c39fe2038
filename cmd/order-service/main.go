package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eternalabs/order-execution-engine/internal/api/handler"
	"github.com/eternalabs/order-execution-engine/internal/api/router"
	"github.com/eternalabs/order-execution-engine/internal/config"
	"github.com/eternalabs/order-execution-engine/internal/executor"
	"github.com/eternalabs/order-execution-engine/internal/notify"
	"github.com/eternalabs/order-execution-engine/internal/queue"
	"github.com/eternalabs/order-execution-engine/internal/service"
	"github.com/eternalabs/order-execution-engine/internal/storage"
	"github.com/eternalabs/order-execution-engine/internal/worker"
	"github.com/eternalabs/order-execution-engine/shared/logger"
	"github.com/eternalabs/order-execution-engine/shared/postgresql"
	"github.com/eternalabs/order-execution-engine/shared/rabbitmq"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("ORDER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/order-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting order service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("storage_backend", cfg.Storage.Backend),
		slog.String("queue_backend", cfg.Queue.Backend),
		slog.String("executor_backend", cfg.Executor.Backend),
	)

	// Initialize job store
	store, dbClient, err := initStore(cfg, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize job store: %w", err)
	}
	defer func() {
		if dbClient != nil {
			dbClient.Close()
		}
	}()

	// Initialize queue
	jobQueue, rabbitClient, err := initQueue(cfg, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize queue: %w", err)
	}
	defer func() {
		jobQueue.Close()
		if rabbitClient != nil {
			rabbitClient.Close()
		}
	}()

	// Notification bus and execution backend
	bus := notify.NewBus(appLogger.Logger)

	exec, err := executor.New(&cfg.Executor, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize executor: %w", err)
	}

	// Order intake service
	orderService := service.New(&service.Config{
		Logger:      appLogger.Logger,
		Store:       store,
		Queue:       jobQueue,
		Bus:         bus,
		MaxAttempts: cfg.Worker.MaxAttempts,
	})

	// Worker pool shares the bus with the API so status events reach
	// WebSocket subscribers directly
	workerInstance := worker.NewWorker(&worker.Config{
		Logger:      appLogger.Logger,
		Store:       store,
		Queue:       jobQueue,
		Bus:         bus,
		Executor:    exec,
		Concurrency: cfg.Worker.Concurrency,
		JobTimeout:  cfg.Worker.JobTimeout,
		BackoffBase: cfg.Worker.BackoffBase,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerErrChan := make(chan error, 1)
	go func() {
		if err := workerInstance.Start(ctx); err != nil {
			workerErrChan <- err
		}
	}()

	// Initialize router and HTTP server
	r := initRouter(cfg.App.Environment, &handler.Dependencies{
		Logger:  appLogger.Logger,
		Service: orderService,
		Store:   store,
		Bus:     bus,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	appLogger.Info("Order service is running",
		slog.String("address", addr),
	)

	// Wait for interrupt signal or a fatal component error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-workerErrChan:
		appLogger.Error("Worker error", slog.Any("error", err))
		return err
	case err := <-serverErrChan:
		appLogger.Error("Server error", slog.Any("error", err))
		return err
	}

	// Stop taking new requests first, then drain in-flight jobs
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", slog.Any("error", err))
	}

	cancel()

	workerCtx, workerCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer workerCancel()

	done := make(chan struct{})
	go func() {
		workerInstance.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-workerCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	appLogger.Info("Order service shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initStore builds the job store selected by configuration. The returned
// postgresql client is non-nil only for the postgres backend and must be
// closed by the caller.
func initStore(cfg *config.Config, log *slog.Logger) (storage.Store, *postgresql.Client, error) {
	switch cfg.Storage.Backend {
	case config.StorageBackendMemory:
		log.Warn("Using in-memory job store, jobs will not survive restarts")
		return storage.NewMemoryStore(cfg.Storage.LeaseTimeout), nil, nil

	case config.StorageBackendPostgres:
		dbClient, err := postgresql.NewClient(&postgresql.Config{
			Host:            cfg.Storage.Postgres.Host,
			Port:            cfg.Storage.Postgres.Port,
			User:            cfg.Storage.Postgres.User,
			Password:        cfg.Storage.Postgres.Password,
			Database:        cfg.Storage.Postgres.Database,
			SSLMode:         cfg.Storage.Postgres.SSLMode,
			MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Storage.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Storage.Postgres.ConnMaxIdleTime,
		}, log)
		if err != nil {
			return nil, nil, err
		}

		store := storage.NewPostgresStore(dbClient.GetDB(), log, cfg.Storage.LeaseTimeout)
		if err := store.EnsureSchema(context.Background()); err != nil {
			dbClient.Close()
			return nil, nil, err
		}

		log.Info("Database connection established")
		return store, dbClient, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend: %q", cfg.Storage.Backend)
	}
}

// initQueue builds the queue selected by configuration. The returned rabbitmq
// client is non-nil only for the rabbitmq backend and must be closed by the
// caller.
func initQueue(cfg *config.Config, log *slog.Logger) (queue.Queue, *rabbitmq.Client, error) {
	switch cfg.Queue.Backend {
	case config.QueueBackendMemory:
		log.Warn("Using in-memory queue, pending jobs will not survive restarts")
		return queue.NewMemoryQueue(), nil, nil

	case config.QueueBackendRabbitMQ:
		mq := cfg.Queue.RabbitMQ
		rabbitClient, err := rabbitmq.NewClient(&rabbitmq.Config{
			Host:               mq.Host,
			Port:               mq.Port,
			User:               mq.User,
			Password:           mq.Password,
			VHost:              mq.VHost,
			ExchangeName:       mq.Exchange.Name,
			ExchangeType:       mq.Exchange.Type,
			ExchangeDurable:    mq.Exchange.Durable,
			ExchangeAutoDelete: mq.Exchange.AutoDelete,
			QueueName:          mq.Queue.Name,
			QueueDurable:       mq.Queue.Durable,
			QueueAutoDelete:    mq.Queue.AutoDelete,
			QueueExclusive:     mq.Queue.Exclusive,
			RoutingKey:         mq.RoutingKey,
			RetryAttempts:      mq.Connection.RetryAttempts,
			RetryInterval:      mq.Connection.RetryInterval,
			Heartbeat:          mq.Connection.Heartbeat,
			ConnectionTimeout:  mq.Connection.ConnectionTimeout,
			PublishRetries:     mq.Publish.RetryAttempts,
			PublishRetryDelay:  mq.Publish.RetryInterval,
			PublishBackoffMult: mq.Publish.BackoffMultiplier,
		}, log)
		if err != nil {
			return nil, nil, err
		}

		log.Info("RabbitMQ connection established")
		consumerTag := fmt.Sprintf("%s-%d", cfg.App.Name, os.Getpid())
		return queue.NewRabbitQueue(rabbitClient, log, consumerTag, mq.Consumer.PrefetchCount), rabbitClient, nil

	default:
		return nil, nil, fmt.Errorf("unknown queue backend: %q", cfg.Queue.Backend)
	}
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(environment string, deps *handler.Dependencies) *gin.Engine {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	return router.SetupRouter(deps)
}
