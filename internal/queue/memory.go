package queue

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const memoryQueueCapacity = 1024

// MemoryQueue is an in-process Queue for the memory backend and tests.
// Delays are implemented with timers; there is no lease timeout, so it is
// not crash-safe the way the RabbitMQ backend is.
type MemoryQueue struct {
	mu     sync.Mutex
	msgs   chan string
	done   chan struct{}
	closed bool
}

// NewMemoryQueue creates an in-memory queue
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		msgs: make(chan string, memoryQueueCapacity),
		done: make(chan struct{}),
	}
}

func (q *MemoryQueue) Publish(ctx context.Context, orderID string) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.Unlock()

	select {
	case q.msgs <- orderID:
		return nil
	case <-q.done:
		return fmt.Errorf("queue is closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) PublishDelayed(_ context.Context, orderID string, delay time.Duration) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.Unlock()

	time.AfterFunc(delay, func() {
		select {
		case q.msgs <- orderID:
		case <-q.done:
		}
	})

	return nil
}

func (q *MemoryQueue) Consume(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-q.done:
				return
			case orderID := <-q.msgs:
				select {
				case out <- &memoryDelivery{queue: q, orderID: orderID}:
				case <-ctx.Done():
					return
				case <-q.done:
					return
				}
			}
		}
	}()

	return out, nil
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.done)
	}
	return nil
}

type memoryDelivery struct {
	queue   *MemoryQueue
	orderID string
}

func (d *memoryDelivery) OrderID() string {
	return d.orderID
}

func (d *memoryDelivery) Ack() error {
	return nil
}

func (d *memoryDelivery) Nack(requeue bool) error {
	if !requeue {
		return nil
	}
	return d.queue.Publish(context.Background(), d.orderID)
}
