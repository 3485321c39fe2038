package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/eternalabs/order-execution-engine/internal/domain"
	"github.com/eternalabs/order-execution-engine/internal/notify"
	"github.com/eternalabs/order-execution-engine/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients connect from arbitrary origins
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsMessage is the inbound WebSocket envelope. Exactly one of the fields is
// expected per message.
type wsMessage struct {
	Order            *service.Submission `json:"order"`
	SubscribeOrderID string              `json:"subscribeOrderId"`
}

// OrderStream handles the WebSocket upgrade on GET /api/orders/execute.
// Clients either submit orders ({"order": {...}}) or subscribe to an
// existing order's events ({"subscribeOrderId": "..."}); status events for
// every order tied to the socket are pushed as they happen.
func (h *OrderHandler) OrderStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response
		h.logger.Warn("WebSocket upgrade failed", slog.Any("error", err))
		return
	}

	wsConn := notify.NewWSConn(conn)
	defer func() {
		h.bus.Detach(wsConn)
		wsConn.Close()
	}()

	h.logger.Info("WebSocket client connected",
		slog.String("remote_addr", conn.RemoteAddr().String()),
	)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("WebSocket read error", slog.Any("error", err))
			}
			return
		}

		h.handleMessage(c, wsConn, payload)
	}
}

func (h *OrderHandler) handleMessage(c *gin.Context, wsConn *notify.WSConn, payload []byte) {
	var msg wsMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		h.sendJSON(wsConn, gin.H{"error": "invalid payload"})
		return
	}

	switch {
	case msg.Order != nil:
		orderID, err := h.service.CreateOrder(c.Request.Context(), *msg.Order, wsConn)
		if err != nil {
			var validationErr *domain.ValidationError
			if errors.As(err, &validationErr) {
				h.sendJSON(wsConn, gin.H{"error": validationErr.Error()})
				return
			}
			h.logger.Error("Failed to accept order over WebSocket", slog.Any("error", err))
			h.sendJSON(wsConn, gin.H{"error": "failed to accept order"})
			return
		}
		h.sendJSON(wsConn, gin.H{"orderId": orderID})

	case msg.SubscribeOrderID != "":
		h.bus.Attach(wsConn, msg.SubscribeOrderID)
		h.sendJSON(wsConn, gin.H{"subscribed": msg.SubscribeOrderID})

	default:
		h.sendJSON(wsConn, gin.H{"error": "invalid payload"})
	}
}

func (h *OrderHandler) sendJSON(wsConn *notify.WSConn, v gin.H) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("Failed to marshal WebSocket reply", slog.Any("error", err))
		return
	}
	if err := wsConn.Send(payload); err != nil {
		h.logger.Warn("Failed to write WebSocket reply", slog.Any("error", err))
	}
}
