package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/eternalabs/order-execution-engine/internal/domain"
	"github.com/eternalabs/order-execution-engine/internal/service"
	"github.com/gin-gonic/gin"
)

// wsPath is advertised in the HTTP accept response so clients know where to
// subscribe for status events.
const wsPath = "/api/orders/execute"

// ExecuteOrder handles POST /api/orders/execute.
// Accepts an order for async execution and returns its id immediately;
// status updates flow over the WebSocket endpoint.
func (h *OrderHandler) ExecuteOrder(c *gin.Context) {
	var sub service.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		h.logger.Warn("Malformed order request body", slog.Any("error", err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": domain.ErrMissingFields,
		})
		return
	}

	orderID, err := h.service.CreateOrder(c.Request.Context(), sub, nil)
	if err != nil {
		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": validationErr.Error(),
			})
			return
		}

		h.logger.Error("Failed to accept order", slog.Any("error", err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "failed to accept order",
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"orderId": orderID,
		"ws":      wsPath,
	})
}

// GetOrder handles GET /api/orders/:order_id.
// Returns the current job state for polling clients.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderID := c.Param("order_id")

	job, err := h.store.GetJob(c.Request.Context(), orderID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "order not found",
			})
			return
		}

		h.logger.Error("Failed to fetch order",
			slog.String("order_id", orderID),
			slog.Any("error", err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch order",
		})
		return
	}

	resp := gin.H{
		"orderId":   job.Order.ID,
		"userId":    job.Order.UserID,
		"type":      job.Order.Type,
		"tokenIn":   job.Order.TokenIn,
		"tokenOut":  job.Order.TokenOut,
		"amountIn":  job.Order.AmountIn,
		"status":    job.Status,
		"attempts":  job.Order.Attempts,
		"createdAt": job.Order.CreatedAt.Format(time.RFC3339),
		"updatedAt": job.UpdatedAt.Format(time.RFC3339),
	}
	if job.LastError != "" {
		resp["lastError"] = job.LastError
	}
	if job.Result != nil {
		resp["txHash"] = job.Result.TxHash
		resp["amountOut"] = job.Result.AmountOut
	}

	c.JSON(http.StatusOK, resp)
}

// Health handles GET /health
func (h *OrderHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Root handles GET / with a short service description
func (h *OrderHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "order-execution-engine",
		"endpoints": gin.H{
			"execute": "POST /api/orders/execute",
			"status":  "GET /api/orders/:order_id",
			"ws":      "GET " + wsPath + " (WebSocket upgrade)",
			"health":  "GET /health",
		},
	})
}
