package router

import (
	"github.com/eternalabs/order-execution-engine/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	orderHandler := handler.NewOrderHandler(deps)

	r.GET("/", orderHandler.Root)
	r.GET("/health", orderHandler.Health)

	orders := r.Group("/api/orders")
	{
		// POST submits an order; GET on the same path upgrades to WebSocket
		orders.POST("/execute", orderHandler.ExecuteOrder)
		orders.GET("/execute", orderHandler.OrderStream)

		orders.GET("/:order_id", orderHandler.GetOrder)
	}

	return r
}
