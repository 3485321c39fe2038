package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eternalabs/order-execution-engine/internal/domain"
	"github.com/eternalabs/order-execution-engine/internal/notify"
	"github.com/eternalabs/order-execution-engine/internal/queue"
	"github.com/eternalabs/order-execution-engine/internal/storage"
	"github.com/google/uuid"
)

// Submission is the loosely-typed order request body from HTTP or WS
// clients. The internal Order is built only after validation succeeds.
type Submission struct {
	ID       string  `json:"id"`
	UserID   string  `json:"userId"`
	Type     string  `json:"type"`
	TokenIn  string  `json:"tokenIn"`
	TokenOut string  `json:"tokenOut"`
	AmountIn float64 `json:"amountIn"`
}

// Validate checks required fields. The missing-fields message is a single
// static string covering all three, matching the public API contract.
func (s *Submission) Validate() error {
	if s.TokenIn == "" || s.TokenOut == "" || s.AmountIn == 0 {
		return domain.NewValidationError(domain.ErrMissingFields)
	}
	if s.AmountIn < 0 {
		return domain.NewValidationError("amountIn must be a positive number")
	}
	return nil
}

// Config holds the order service dependencies
type Config struct {
	Logger      *slog.Logger
	Store       storage.Store
	Queue       queue.Queue
	Bus         *notify.Bus
	MaxAttempts int
}

// Service accepts order submissions: it validates, assigns identifiers,
// registers the submitter on the bus, persists the job, and enqueues it.
// Execution outcome is only ever reported through the notification channel.
type Service struct {
	logger      *slog.Logger
	store       storage.Store
	queue       queue.Queue
	bus         *notify.Bus
	maxAttempts int
}

// New creates the order service
func New(cfg *Config) *Service {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = domain.DefaultMaxAttempts
	}

	return &Service{
		logger:      cfg.Logger,
		store:       cfg.Store,
		queue:       cfg.Queue,
		bus:         cfg.Bus,
		maxAttempts: maxAttempts,
	}
}

// CreateOrder validates the submission and enqueues it for execution,
// returning the order id immediately. When conn is non-nil it is attached
// to the order id before the job is enqueued, so the submitter cannot miss
// events from a fast-completing job.
func (s *Service) CreateOrder(ctx context.Context, sub Submission, conn notify.Conn) (string, error) {
	if err := sub.Validate(); err != nil {
		s.logger.Warn("Rejected invalid order submission",
			slog.String("error", err.Error()),
		)
		return "", err
	}

	order := s.buildOrder(sub)

	if conn != nil {
		s.bus.Attach(conn, order.ID)
	}

	job := &domain.Job{
		Order:       order,
		Status:      domain.StatusQueued,
		MaxAttempts: s.maxAttempts,
	}

	if err := s.store.CreateJob(ctx, job); err != nil {
		s.logger.Error("Failed to persist job",
			slog.String("order_id", order.ID),
			slog.Any("error", err),
		)
		return "", fmt.Errorf("failed to persist job: %w", err)
	}

	// The queued event must go out before the job becomes leasable, or a
	// fast worker could push processing to the submitter first
	s.bus.Notify(order.ID, domain.QueuedEvent(order.ID))

	if err := s.queue.Publish(ctx, order.ID); err != nil {
		s.logger.Error("Failed to enqueue job",
			slog.String("order_id", order.ID),
			slog.Any("error", err),
		)
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}

	s.logger.Info("Order accepted and enqueued",
		slog.String("order_id", order.ID),
		slog.String("user_id", order.UserID),
		slog.String("token_in", order.TokenIn),
		slog.String("token_out", order.TokenOut),
	)

	return order.ID, nil
}

// buildOrder constructs the internal entity from a validated submission
func (s *Service) buildOrder(sub Submission) domain.Order {
	orderID := sub.ID
	if orderID == "" {
		orderID = uuid.New().String()
	}

	userID := sub.UserID
	if userID == "" {
		userID = "anon"
	}

	orderType := sub.Type
	if orderType == "" {
		orderType = domain.OrderTypeMarket
	}

	return domain.Order{
		ID:        orderID,
		UserID:    userID,
		Type:      orderType,
		TokenIn:   sub.TokenIn,
		TokenOut:  sub.TokenOut,
		AmountIn:  sub.AmountIn,
		CreatedAt: time.Now().UTC(),
		Attempts:  0,
	}
}
