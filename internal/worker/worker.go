package worker

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/eternalabs/order-execution-engine/internal/executor"
	"github.com/eternalabs/order-execution-engine/internal/notify"
	"github.com/eternalabs/order-execution-engine/internal/queue"
	"github.com/eternalabs/order-execution-engine/internal/storage"
	"github.com/google/uuid"
)

// Config holds worker configuration
type Config struct {
	Logger      *slog.Logger
	Store       storage.Store
	Queue       queue.Queue
	Bus         *notify.Bus
	Executor    executor.Executor
	Concurrency int
	JobTimeout  time.Duration
	BackoffBase time.Duration
}

// Worker consumes order jobs from the queue and drives each one through
// the processing state machine. A single Worker owns N goroutines; the
// claim in the store keeps concurrent workers from double-executing.
type Worker struct {
	logger      *slog.Logger
	store       storage.Store
	queue       queue.Queue
	bus         *notify.Bus
	executor    executor.Executor
	workerID    string
	concurrency int
	jobTimeout  time.Duration
	backoffBase time.Duration

	jobsChan chan queue.Delivery
	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	jobTimeout := cfg.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = 30 * time.Second
	}

	backoffBase := cfg.BackoffBase
	if backoffBase <= 0 {
		backoffBase = 500 * time.Millisecond
	}

	return &Worker{
		logger:      cfg.Logger,
		store:       cfg.Store,
		queue:       cfg.Queue,
		bus:         cfg.Bus,
		executor:    cfg.Executor,
		workerID:    "worker-" + strings.Split(uuid.New().String(), "-")[0],
		concurrency: concurrency,
		jobTimeout:  jobTimeout,
		backoffBase: backoffBase,
		jobsChan:    make(chan queue.Delivery),
		stopChan:    make(chan struct{}),
	}
}

// Start subscribes to the queue and begins processing jobs. It blocks until
// the context is canceled or the delivery channel closes.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.queue.Consume(ctx)
	if err != nil {
		return err
	}

	w.spawnWorkerPool(ctx)
	w.dispatch(ctx, deliveries)

	return nil
}

// dispatch forwards queue deliveries to the worker pool
func (w *Worker) dispatch(ctx context.Context, deliveries <-chan queue.Delivery) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Dispatcher stopped - context canceled")
			return

		case <-w.stopChan:
			w.logger.Info("Dispatcher stopped - worker shutting down")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("Delivery channel closed")
				return
			}

			select {
			case w.jobsChan <- delivery:
			case <-ctx.Done():
				// Return the message so another consumer can pick it up
				if nackErr := delivery.Nack(true); nackErr != nil {
					w.logger.Error("Failed to nack message on shutdown",
						slog.String("order_id", delivery.OrderID()),
						slog.Any("error", nackErr),
					)
				}
				return
			case <-w.stopChan:
				if nackErr := delivery.Nack(true); nackErr != nil {
					w.logger.Error("Failed to nack message on shutdown",
						slog.String("order_id", delivery.OrderID()),
						slog.Any("error", nackErr),
					)
				}
				return
			}
		}
	}
}

// Stop gracefully stops the worker and waits for in-flight jobs
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...", slog.String("worker_id", w.workerID))
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped", slog.String("worker_id", w.workerID))
}
