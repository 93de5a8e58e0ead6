package main

import (
	"database/sql"
	"net/http"
	"time"

	"garuda-sentry/internal/auth"
	"garuda-sentry/internal/httpapi"
	"garuda-sentry/internal/webhook"
	"garuda-sentry/pkg/utils"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	db             *sql.DB
	authManager    *auth.Manager
	webhookHandler webhook.Handler
	api            httpapi.Handlers
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, deps routeDeps) {
	// readiness probe, includes a DB ping
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), deps.db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Provider webhooks (public; POST is signature-verified inside the handler).
	r.GET("/webhooks/elevenlabs", deps.webhookHandler.Status)
	r.POST("/webhooks/elevenlabs", deps.webhookHandler.HandlePostCall)
	r.POST("/webhooks/elevenlabs/events", deps.webhookHandler.HandleLegacyEvent)

	api := r.Group("/api")
	{
		// Session bootstrap endpoints stay public; the browser needs them
		// before it has a token.
		api.GET("/signed-url", deps.api.GetSignedURL)
		api.POST("/auth/login", deps.api.Login)

		callsGroup := api.Group("/calls")
		callsGroup.Use(auth.RequireAccessToken(deps.authManager))
		{
			callsGroup.GET("", deps.api.ListCalls)
			callsGroup.GET("/priority", deps.api.ListCallsByPriority)
			callsGroup.GET("/summary", deps.api.GetCallsSummary)
			callsGroup.GET("/:conversation_id", deps.api.GetCall)

			mutating := callsGroup.Group("")
			mutating.Use(auth.RequireAnyRole(auth.RoleDispatcher, auth.RoleAdmin))
			{
				mutating.POST("", deps.api.CreateCall)
				mutating.PUT("/:conversation_id/intent", deps.api.UpdateIntent)
				mutating.PUT("/:conversation_id/phone", deps.api.UpdatePhone)
			}
		}
	}
}
