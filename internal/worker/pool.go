package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/eternalabs/order-execution-engine/internal/domain"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}

	w.logger.Info("Worker pool spawned",
		slog.Int("worker_count", w.concurrency),
		slog.String("worker_id", w.workerID),
	)
}

// workerLoop is the main processing loop for each worker goroutine
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Info("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Worker goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return

		case <-ctx.Done():
			w.logger.Info("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case delivery, ok := <-w.jobsChan:
			if !ok {
				return
			}

			err := w.processJob(ctx, delivery.OrderID())

			if err != nil {
				requeue := w.shouldRequeue(err)
				w.logger.Error("Job processing failed",
					slog.String("worker_name", workerName),
					slog.String("order_id", delivery.OrderID()),
					slog.Bool("requeue", requeue),
					slog.Any("error", err),
				)

				if nackErr := delivery.Nack(requeue); nackErr != nil {
					w.logger.Error("Failed to nack message",
						slog.String("worker_name", workerName),
						slog.String("order_id", delivery.OrderID()),
						slog.Any("error", nackErr),
					)
				}
				continue
			}

			if ackErr := delivery.Ack(); ackErr != nil {
				w.logger.Error("Failed to ack message",
					slog.String("worker_name", workerName),
					slog.String("order_id", delivery.OrderID()),
					slog.Any("error", ackErr),
				)
			}
		}
	}
}

// shouldRequeue decides the nack requeue flag based on the error type.
// Only transient infrastructure errors come back; a job the store already
// handed to another worker, or one that reached a terminal state, must not
// cycle through the queue again.
func (w *Worker) shouldRequeue(err error) bool {
	if errors.Is(err, domain.ErrJobAlreadyClaimed) {
		return false
	}
	if errors.Is(err, domain.ErrJobNotFound) {
		return false
	}

	var retryableErr *domain.RetryableError
	return errors.As(err, &retryableErr)
}
