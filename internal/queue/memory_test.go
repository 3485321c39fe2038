package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueue_PublishConsume(t *testing.T) {
	q := NewMemoryQueue()
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deliveries, err := q.Consume(ctx)
	require.NoError(t, err)

	require.NoError(t, q.Publish(ctx, "order-1"))
	require.NoError(t, q.Publish(ctx, "order-2"))

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case d := <-deliveries:
			seen[d.OrderID()] = true
			require.NoError(t, d.Ack())
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for delivery")
		}
	}

	assert.True(t, seen["order-1"])
	assert.True(t, seen["order-2"])
}

func TestMemoryQueue_PublishDelayed(t *testing.T) {
	q := NewMemoryQueue()
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deliveries, err := q.Consume(ctx)
	require.NoError(t, err)

	delay := 100 * time.Millisecond
	start := time.Now()
	require.NoError(t, q.PublishDelayed(ctx, "order-1", delay))

	// Not visible before the delay elapses
	select {
	case d := <-deliveries:
		t.Fatalf("delivery %s arrived after %s, before the delay elapsed", d.OrderID(), time.Since(start))
	case <-time.After(delay / 2):
	}

	select {
	case d := <-deliveries:
		assert.Equal(t, "order-1", d.OrderID())
		assert.GreaterOrEqual(t, time.Since(start), delay)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delayed delivery")
	}
}

func TestMemoryQueue_NackRequeue(t *testing.T) {
	q := NewMemoryQueue()
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deliveries, err := q.Consume(ctx)
	require.NoError(t, err)

	require.NoError(t, q.Publish(ctx, "order-1"))

	d := <-deliveries
	require.NoError(t, d.Nack(true))

	select {
	case redelivered := <-deliveries:
		assert.Equal(t, "order-1", redelivered.OrderID())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for requeued delivery")
	}

	// Nack without requeue drops the message
	require.NoError(t, d.Nack(false))
	select {
	case d := <-deliveries:
		t.Fatalf("unexpected delivery %s", d.OrderID())
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryQueue_Close(t *testing.T) {
	q := NewMemoryQueue()

	ctx := context.Background()
	deliveries, err := q.Consume(ctx)
	require.NoError(t, err)

	require.NoError(t, q.Close())
	require.NoError(t, q.Close()) // idempotent

	assert.Error(t, q.Publish(ctx, "order-1"))

	select {
	case _, ok := <-deliveries:
		assert.False(t, ok, "delivery channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("delivery channel not closed after Close")
	}
}
