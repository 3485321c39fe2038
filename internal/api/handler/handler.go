package handler

import (
	"log/slog"

	"github.com/eternalabs/order-execution-engine/internal/notify"
	"github.com/eternalabs/order-execution-engine/internal/service"
	"github.com/eternalabs/order-execution-engine/internal/storage"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger  *slog.Logger
	Service *service.Service
	Store   storage.Store
	Bus     *notify.Bus
}

// OrderHandler handles order-related HTTP and WebSocket requests
type OrderHandler struct {
	logger  *slog.Logger
	service *service.Service
	store   storage.Store
	bus     *notify.Bus
}

// NewOrderHandler creates a new OrderHandler instance
func NewOrderHandler(deps *Dependencies) *OrderHandler {
	return &OrderHandler{
		logger:  deps.Logger,
		service: deps.Service,
		store:   deps.Store,
		bus:     deps.Bus,
	}
}
