package notify

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/eternalabs/order-execution-engine/internal/domain"
)

// Conn is a live subscriber connection. Send must be safe for concurrent
// use; a returned error marks the connection dead.
type Conn interface {
	Send(payload []byte) error
}

// Bus fans status events out to subscribers keyed by order id. Delivery is
// best effort: a failed send removes that subscriber and never affects the
// others or the caller.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[Conn]struct{}
	orders map[Conn]map[string]struct{}
	logger *slog.Logger
}

// NewBus creates an empty notification bus
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		subs:   make(map[string]map[Conn]struct{}),
		orders: make(map[Conn]map[string]struct{}),
		logger: logger,
	}
}

// Attach registers conn as a subscriber for orderID. Idempotent and safe to
// call concurrently with Notify.
func (b *Bus) Attach(conn Conn, orderID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[orderID] == nil {
		b.subs[orderID] = make(map[Conn]struct{})
	}
	b.subs[orderID][conn] = struct{}{}

	if b.orders[conn] == nil {
		b.orders[conn] = make(map[string]struct{})
	}
	b.orders[conn][orderID] = struct{}{}

	b.logger.Debug("Subscriber attached",
		slog.String("order_id", orderID),
		slog.Int("subscribers", len(b.subs[orderID])),
	)
}

// Detach removes conn from every order id it is subscribed to
func (b *Bus) Detach(conn Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.detachLocked(conn)
}

func (b *Bus) detachLocked(conn Conn) {
	for orderID := range b.orders[conn] {
		delete(b.subs[orderID], conn)
		if len(b.subs[orderID]) == 0 {
			delete(b.subs, orderID)
		}
	}
	delete(b.orders, conn)
}

// Notify sends the event to every subscriber currently attached to the
// order id. Zero subscribers is a silent no-op.
func (b *Bus) Notify(orderID string, event domain.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal status event",
			slog.String("order_id", orderID),
			slog.Any("error", err),
		)
		return
	}

	b.mu.RLock()
	conns := make([]Conn, 0, len(b.subs[orderID]))
	for conn := range b.subs[orderID] {
		conns = append(conns, conn)
	}
	b.mu.RUnlock()

	if len(conns) == 0 {
		return
	}

	var dead []Conn
	for _, conn := range conns {
		if err := conn.Send(payload); err != nil {
			b.logger.Warn("Failed to send status event, removing subscriber",
				slog.String("order_id", orderID),
				slog.String("status", event.Status),
				slog.Any("error", err),
			)
			dead = append(dead, conn)
		}
	}

	if len(dead) > 0 {
		b.mu.Lock()
		for _, conn := range dead {
			b.detachLocked(conn)
		}
		b.mu.Unlock()
	}

	b.logger.Debug("Status event delivered",
		slog.String("order_id", orderID),
		slog.String("status", event.Status),
		slog.Int("subscribers", len(conns)-len(dead)),
	)
}

// SubscriberCount returns the number of live subscribers for an order id
func (b *Bus) SubscriberCount(orderID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[orderID])
}
