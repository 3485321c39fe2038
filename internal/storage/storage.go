package storage

import (
	"context"
	"time"

	"github.com/eternalabs/order-execution-engine/internal/domain"
)

// DefaultLeaseTimeout bounds how long a processing claim stays exclusive.
// It must exceed the worker's per-attempt timeout, or a live attempt could
// be stolen mid-execution.
const DefaultLeaseTimeout = 60 * time.Second

// Store is the durable half of the job queue: it owns job state and retry
// metadata while the queue transport only carries order ids. ClaimJob is the
// per-job mutual exclusion point: it succeeds for exactly one caller while
// the job is queued.
type Store interface {
	// CreateJob persists a new job in queued status.
	CreateJob(ctx context.Context, job *domain.Job) error

	// GetJob returns the current job state, or domain.ErrJobNotFound.
	GetJob(ctx context.Context, orderID string) (*domain.Job, error)

	// ClaimJob transitions queued → processing for the given worker. It
	// returns domain.ErrJobAlreadyClaimed when the job is not queued, so a
	// redelivered duplicate can never run concurrently with the holder.
	// A processing row whose claim is older than the lease timeout is
	// reclaimable: the previous holder is presumed dead and its redelivered
	// message must still drive the job to a terminal status.
	ClaimJob(ctx context.Context, orderID, workerID string) (*domain.Job, error)

	// ScheduleRetry transitions processing → queued with the incremented
	// attempt count and the error of the failed attempt.
	ScheduleRetry(ctx context.Context, orderID string, attempts int, lastErr string) error

	// MarkConfirmed transitions processing → confirmed with the execution
	// result. Terminal; at most one terminal transition ever succeeds.
	MarkConfirmed(ctx context.Context, orderID string, result *domain.ExecutionResult) error

	// MarkFailed transitions processing → failed with the final attempt
	// count and a non-empty error description. Terminal.
	MarkFailed(ctx context.Context, orderID string, attempts int, lastErr string) error
}
