package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/eternalabs/order-execution-engine/shared/rabbitmq"
	amqp "github.com/rabbitmq/amqp091-go"
)

// orderMessage is the wire format of a queue message
type orderMessage struct {
	OrderID string `json:"order_id"`
}

// RabbitQueue implements Queue on top of the shared RabbitMQ client.
// Durability, redelivery of unacked messages, and the TTL-based retry delay
// all come from the broker.
type RabbitQueue struct {
	client        *rabbitmq.Client
	logger        *slog.Logger
	consumerTag   string
	prefetchCount int
}

// NewRabbitQueue creates a RabbitMQ-backed queue
func NewRabbitQueue(client *rabbitmq.Client, logger *slog.Logger, consumerTag string, prefetchCount int) *RabbitQueue {
	if prefetchCount <= 0 {
		prefetchCount = 1
	}
	return &RabbitQueue{
		client:        client,
		logger:        logger,
		consumerTag:   consumerTag,
		prefetchCount: prefetchCount,
	}
}

func (q *RabbitQueue) Publish(ctx context.Context, orderID string) error {
	body, err := json.Marshal(orderMessage{OrderID: orderID})
	if err != nil {
		return fmt.Errorf("failed to marshal order message: %w", err)
	}

	return q.client.PublishWithRetry(ctx, body, "application/json")
}

func (q *RabbitQueue) PublishDelayed(ctx context.Context, orderID string, delay time.Duration) error {
	body, err := json.Marshal(orderMessage{OrderID: orderID})
	if err != nil {
		return fmt.Errorf("failed to marshal order message: %w", err)
	}

	return q.client.PublishDelayed(ctx, body, "application/json", delay)
}

func (q *RabbitQueue) Consume(ctx context.Context) (<-chan Delivery, error) {
	channel := q.client.GetChannel()
	if channel == nil {
		return nil, fmt.Errorf("rabbitmq channel is nil")
	}

	// QoS bounds the number of unacknowledged deliveries per consumer
	if err := channel.Qos(q.prefetchCount, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	q.logger.Info("RabbitMQ QoS configured",
		slog.Int("prefetch_count", q.prefetchCount),
	)

	deliveries, err := q.client.Consume(q.consumerTag)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	out := make(chan Delivery)
	go q.pump(ctx, deliveries, out)

	return out, nil
}

// pump adapts amqp deliveries to Delivery, rejecting malformed messages
func (q *RabbitQueue) pump(ctx context.Context, deliveries <-chan amqp.Delivery, out chan<- Delivery) {
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			q.logger.Info("RabbitMQ consumer stopped - context canceled")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				q.logger.Warn("RabbitMQ delivery channel closed")
				return
			}

			var msg orderMessage
			if err := json.Unmarshal(delivery.Body, &msg); err != nil || msg.OrderID == "" {
				q.logger.Error("Failed to parse queue message",
					slog.String("body", string(delivery.Body)),
				)
				// Malformed messages are rejected without requeue
				if nackErr := delivery.Nack(false, false); nackErr != nil {
					q.logger.Error("Failed to NACK malformed message",
						slog.String("error", nackErr.Error()),
					)
				}
				continue
			}

			select {
			case out <- &rabbitDelivery{orderID: msg.OrderID, delivery: delivery}:
			case <-ctx.Done():
				// Requeue so another consumer can pick the message up
				if nackErr := delivery.Nack(false, true); nackErr != nil {
					q.logger.Error("Failed to NACK message on shutdown",
						slog.String("error", nackErr.Error()),
					)
				}
				return
			}
		}
	}
}

func (q *RabbitQueue) Close() error {
	return q.client.Close()
}

type rabbitDelivery struct {
	orderID  string
	delivery amqp.Delivery
}

func (d *rabbitDelivery) OrderID() string {
	return d.orderID
}

func (d *rabbitDelivery) Ack() error {
	return d.delivery.Ack(false)
}

func (d *rabbitDelivery) Nack(requeue bool) error {
	return d.delivery.Nack(false, requeue)
}
