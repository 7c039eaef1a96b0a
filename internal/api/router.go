package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/netvend-ledger/internal/api/handler"
	"github.com/netvend-ledger/internal/api/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	accountHandler *handler.AccountHandler,
	topupHandler *handler.TopUpHandler,
	refundHandler *handler.RefundHandler,
	ledgerHandler *handler.LedgerHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Account operations
		accounts := v1.Group("/accounts")
		{
			accounts.POST("", accountHandler.Register)
			accounts.GET("/:tag", accountHandler.ResolveTag)
			accounts.GET("/:tag/entries", accountHandler.ListEntries)
		}

		// Top-up workflow
		topups := v1.Group("/topups")
		{
			topups.POST("/manual", topupHandler.CreateManual)
			topups.GET("/reference-template", topupHandler.ReferenceTemplate)
			topups.POST("/requests", topupHandler.SubmitRequest)
			topups.GET("/requests", topupHandler.ListRequests)
			topups.POST("/requests/:id/approve", topupHandler.Approve)
			topups.POST("/requests/:id/reject", topupHandler.Reject)
		}

		// Refund operations
		v1.POST("/refunds/:entryId", refundHandler.Refund)

		// Ledger entry lookups
		v1.GET("/entries/:id", ledgerHandler.GetByID)
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
