package queue

import (
	"context"
	"time"
)

// Delivery is an exclusive lease on one queued message. The holder must
// either Ack (remove terminally) or Nack (optionally requeue) exactly once.
type Delivery interface {
	OrderID() string
	Ack() error
	Nack(requeue bool) error
}

// Queue decouples order producers from the worker pool. Messages carry only
// the order id; job state lives in the store. PublishDelayed makes the
// message eligible for delivery no earlier than the given delay, which is
// how retry backoff is enforced.
type Queue interface {
	Publish(ctx context.Context, orderID string) error
	PublishDelayed(ctx context.Context, orderID string, delay time.Duration) error

	// Consume returns a channel of deliveries. The channel is closed when
	// the context is canceled or the queue shuts down.
	Consume(ctx context.Context) (<-chan Delivery, error)

	Close() error
}
