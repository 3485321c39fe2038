package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/eternalabs/order-execution-engine/internal/domain"
	"github.com/jmoiron/sqlx"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	order_id     TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL,
	order_type   TEXT NOT NULL,
	token_in     TEXT NOT NULL,
	token_out    TEXT NOT NULL,
	amount_in    DOUBLE PRECISION NOT NULL,
	status       TEXT NOT NULL,
	attempts     INTEGER NOT NULL DEFAULT 0,
	max_attempts INTEGER NOT NULL,
	last_error   TEXT NOT NULL DEFAULT '',
	tx_hash      TEXT,
	amount_out   DOUBLE PRECISION,
	worker_id    TEXT,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_status ON orders (status);
`

// PostgresStore persists jobs in an orders table. Claim and terminal
// transitions use conditional updates so concurrent workers race on the
// row's status column, never on application locks.
type PostgresStore struct {
	db           *sqlx.DB
	logger       *slog.Logger
	leaseTimeout time.Duration
}

// NewPostgresStore creates a new PostgresStore instance
func NewPostgresStore(db *sqlx.DB, logger *slog.Logger, leaseTimeout time.Duration) *PostgresStore {
	if leaseTimeout <= 0 {
		leaseTimeout = DefaultLeaseTimeout
	}

	return &PostgresStore{
		db:           db,
		logger:       logger,
		leaseTimeout: leaseTimeout,
	}
}

// EnsureSchema creates the orders table if it does not exist
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// CreateJob persists a new job in queued status
func (s *PostgresStore) CreateJob(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO orders (
			order_id, user_id, order_type, token_in, token_out, amount_in,
			status, attempts, max_attempts, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, NOW()
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.Order.ID,
		job.Order.UserID,
		job.Order.Type,
		job.Order.TokenIn,
		job.Order.TokenOut,
		job.Order.AmountIn,
		domain.StatusQueued,
		job.Order.Attempts,
		job.MaxAttempts,
		job.Order.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// GetJob retrieves the current job state by order id
func (s *PostgresStore) GetJob(ctx context.Context, orderID string) (*domain.Job, error) {
	query := `
		SELECT order_id, user_id, order_type, token_in, token_out, amount_in,
		       status, attempts, max_attempts, last_error, tx_hash, amount_out,
		       worker_id, created_at, updated_at
		FROM orders
		WHERE order_id = $1
	`

	row := s.db.QueryRowContext(ctx, query, orderID)
	job, err := scanJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return job, nil
}

// ClaimJob attempts to claim a queued job using optimistic locking.
// Returns the full job on success, domain.ErrJobAlreadyClaimed otherwise.
// A processing row whose claim predates the lease cutoff belongs to a dead
// worker and is claimable again, so broker redeliveries after a crash still
// drive the job to a terminal status.
func (s *PostgresStore) ClaimJob(ctx context.Context, orderID, workerID string) (*domain.Job, error) {
	query := `
		UPDATE orders
		SET status = $1,
		    worker_id = $2,
		    updated_at = NOW()
		WHERE order_id = $3
		  AND (status = $4 OR (status = $5 AND updated_at < $6))
		RETURNING order_id, user_id, order_type, token_in, token_out, amount_in,
		          status, attempts, max_attempts, last_error, tx_hash, amount_out,
		          worker_id, created_at, updated_at
	`

	leaseCutoff := time.Now().Add(-s.leaseTimeout)
	row := s.db.QueryRowContext(ctx, query,
		domain.StatusProcessing, workerID, orderID,
		domain.StatusQueued, domain.StatusProcessing, leaseCutoff,
	)
	job, err := scanJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			s.logger.Warn("Failed to claim job - already claimed or not found",
				slog.String("order_id", orderID),
				slog.String("worker_id", workerID),
			)
			return nil, domain.ErrJobAlreadyClaimed
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	s.logger.Info("Job claimed successfully",
		slog.String("order_id", orderID),
		slog.String("worker_id", workerID),
	)

	return job, nil
}

// ScheduleRetry puts a processing job back in queued status with the
// incremented attempt count and the error of the failed attempt
func (s *PostgresStore) ScheduleRetry(ctx context.Context, orderID string, attempts int, lastErr string) error {
	query := `
		UPDATE orders
		SET status = $1,
		    attempts = $2,
		    last_error = $3,
		    worker_id = NULL,
		    updated_at = NOW()
		WHERE order_id = $4
		  AND status = $5
	`

	return s.transition(ctx, query, domain.StatusQueued, attempts, lastErr, orderID, domain.StatusProcessing)
}

// MarkConfirmed records the terminal success transition with the result
func (s *PostgresStore) MarkConfirmed(ctx context.Context, orderID string, result *domain.ExecutionResult) error {
	query := `
		UPDATE orders
		SET status = $1,
		    tx_hash = $2,
		    amount_out = $3,
		    updated_at = NOW()
		WHERE order_id = $4
		  AND status = $5
	`

	var txHash sql.NullString
	var amountOut sql.NullFloat64
	if result != nil {
		txHash = sql.NullString{String: result.TxHash, Valid: true}
		amountOut = sql.NullFloat64{Float64: result.AmountOut, Valid: true}
	}

	return s.transition(ctx, query, domain.StatusConfirmed, txHash, amountOut, orderID, domain.StatusProcessing)
}

// MarkFailed records the terminal failure transition
func (s *PostgresStore) MarkFailed(ctx context.Context, orderID string, attempts int, lastErr string) error {
	query := `
		UPDATE orders
		SET status = $1,
		    attempts = $2,
		    last_error = $3,
		    updated_at = NOW()
		WHERE order_id = $4
		  AND status = $5
	`

	return s.transition(ctx, query, domain.StatusFailed, attempts, lastErr, orderID, domain.StatusProcessing)
}

// transition runs a conditional status update and maps the zero-rows case to
// domain.ErrJobNotProcessing
func (s *PostgresStore) transition(ctx context.Context, query string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrJobNotProcessing
	}

	return nil
}

// scanJob scans a full orders row into a domain.Job
func scanJob(row *sql.Row) (*domain.Job, error) {
	var job domain.Job
	var lastError sql.NullString
	var txHash sql.NullString
	var amountOut sql.NullFloat64
	var workerID sql.NullString

	err := row.Scan(
		&job.Order.ID,
		&job.Order.UserID,
		&job.Order.Type,
		&job.Order.TokenIn,
		&job.Order.TokenOut,
		&job.Order.AmountIn,
		&job.Status,
		&job.Order.Attempts,
		&job.MaxAttempts,
		&lastError,
		&txHash,
		&amountOut,
		&workerID,
		&job.Order.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.LastError = lastError.String
	job.WorkerID = workerID.String
	if txHash.Valid {
		job.Result = &domain.ExecutionResult{
			TxHash:    txHash.String,
			AmountOut: amountOut.Float64,
		}
	}

	return &job, nil
}
