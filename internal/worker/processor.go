package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/eternalabs/order-execution-engine/internal/domain"
)

// processJob drives one delivery through the job lifecycle:
// claim (queued → processing), execute with a per-attempt deadline, then
// either confirm, schedule a delayed retry, or fail terminally. Every
// status change after the claim is pushed to subscribers through the bus.
func (w *Worker) processJob(ctx context.Context, orderID string) error {
	job, err := w.store.ClaimJob(ctx, orderID, w.workerID)
	if err != nil {
		if errors.Is(err, domain.ErrJobAlreadyClaimed) {
			w.logger.Warn("Job already claimed, skipping",
				slog.String("order_id", orderID),
			)
			return fmt.Errorf("claim rejected: %w", err)
		}
		// Store error, could be transient
		return domain.NewRetryableError(fmt.Errorf("failed to claim job %s: %w", orderID, err))
	}

	w.logger.Info("Processing order",
		slog.String("order_id", orderID),
		slog.String("worker_id", w.workerID),
		slog.Int("attempt", job.Order.Attempts+1),
		slog.Int("max_attempts", job.MaxAttempts),
	)
	w.bus.Notify(orderID, domain.ProcessingEvent(orderID))

	execCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	result, execErr := w.executor.Execute(execCtx, &job.Order)
	cancel()

	if execErr == nil {
		return w.confirm(ctx, job, result)
	}

	if errors.Is(execErr, context.DeadlineExceeded) {
		execErr = fmt.Errorf("execution timed out after %s", w.jobTimeout)
	}

	attempts := job.Order.Attempts + 1
	if attempts < job.MaxAttempts {
		if retryErr := w.scheduleRetry(ctx, job, attempts, execErr); retryErr == nil {
			return nil
		}
		// Retry could not be scheduled; failing the job is the only way to
		// guarantee a terminal event still reaches subscribers.
	}

	return w.fail(ctx, job, attempts, execErr)
}

// confirm records the successful execution and notifies subscribers
func (w *Worker) confirm(ctx context.Context, job *domain.Job, result *domain.ExecutionResult) error {
	orderID := job.Order.ID

	if err := w.store.MarkConfirmed(ctx, orderID, result); err != nil {
		// Execution happened; losing the row update must not replay the swap
		w.logger.Error("Failed to mark job confirmed",
			slog.String("order_id", orderID),
			slog.Any("error", err),
		)
	}

	w.bus.Notify(orderID, domain.ConfirmedEvent(orderID, result))

	w.logger.Info("Order confirmed",
		slog.String("order_id", orderID),
		slog.String("tx_hash", result.TxHash),
		slog.Float64("amount_out", result.AmountOut),
	)

	return nil
}

// scheduleRetry returns the job to queued state and republishes it with
// exponential backoff
func (w *Worker) scheduleRetry(ctx context.Context, job *domain.Job, attempts int, execErr error) error {
	orderID := job.Order.ID
	delay := w.backoffBase << (attempts - 1)

	if err := w.store.ScheduleRetry(ctx, orderID, attempts, execErr.Error()); err != nil {
		return fmt.Errorf("failed to schedule retry: %w", err)
	}

	if err := w.queue.PublishDelayed(ctx, orderID, delay); err != nil {
		// The row says queued but nothing will deliver it; reclaim it so the
		// fail path can take over.
		if _, claimErr := w.store.ClaimJob(ctx, orderID, w.workerID); claimErr != nil {
			w.logger.Error("Failed to reclaim job after republish error",
				slog.String("order_id", orderID),
				slog.Any("error", claimErr),
			)
		}
		return fmt.Errorf("failed to republish job: %w", err)
	}

	w.logger.Warn("Execution failed, retry scheduled",
		slog.String("order_id", orderID),
		slog.Int("attempt", attempts),
		slog.Int("max_attempts", job.MaxAttempts),
		slog.Duration("delay", delay),
		slog.Any("error", execErr),
	)

	return nil
}

// fail records the terminal failure and notifies subscribers
func (w *Worker) fail(ctx context.Context, job *domain.Job, attempts int, execErr error) error {
	orderID := job.Order.ID

	if err := w.store.MarkFailed(ctx, orderID, attempts, execErr.Error()); err != nil {
		w.logger.Error("Failed to mark job failed",
			slog.String("order_id", orderID),
			slog.Any("error", err),
		)
	}

	w.bus.Notify(orderID, domain.FailedEvent(orderID, execErr.Error()))

	w.logger.Error("Order failed permanently",
		slog.String("order_id", orderID),
		slog.Int("attempts", attempts),
		slog.Any("error", execErr),
	)

	return nil
}
