package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter builds the gin engine with recovery and request logging.
func NewRouter(h *Handlers, env string) http.Handler {
	if env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(h.Logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	sessions := r.Group("/sessions")
	{
		sessions.POST("", h.CreateSession)
		sessions.GET("/:id", h.GetSession)
		sessions.POST("/:id/cancel", h.Cancel)
		sessions.POST("/:id/finalize", h.Finalize)

		sessions.POST("/:id/items", h.AddItem)
		sessions.PUT("/:id/items/:productID", h.UpdateQuantity)
		sessions.DELETE("/:id/items/:productID", h.RemoveItem)
		sessions.PUT("/:id/items/:productID/discount", h.SetLineDiscount)
		sessions.PUT("/:id/discount", h.SetGlobalDiscount)
		sessions.PUT("/:id/mode", h.SetPricingMode)

		sessions.POST("/:id/promotions", h.ApplyPromotion)
		sessions.DELETE("/:id/promotions/:code", h.RemovePromotion)

		sessions.POST("/:id/payments", h.AddPayment)
		sessions.DELETE("/:id/payments/:entryID", h.RemovePayment)
	}

	products := r.Group("/products")
	{
		products.POST("", h.RegisterProduct)
		products.GET("", h.ListProducts)
		products.GET("/:id/stock", h.GetProductStock)
		products.POST("/:id/restock", h.Restock)
		products.POST("/:id/adjust", h.AdjustStock)
		products.GET("/:id/alerts", h.AlertHistory)
	}

	r.GET("/alerts", h.ListAlerts)
	r.POST("/alerts/:id/ack", h.AcknowledgeAlert)

	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
