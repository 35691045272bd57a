package api

import (
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/inboxsync/api/handlers"
	"github.com/customeros/inboxsync/api/middleware"
	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/tracing"
)

const appSource = "api"

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(r *gin.Engine, accounts interfaces.MailAccountRepository, publisher interfaces.EventPublisher, apikey string) {
	if accounts == nil {
		panic("Mail account repository cannot be nil")
	}
	if publisher == nil {
		panic("Event publisher cannot be nil")
	}

	// Add recovery middlewares
	r.Use(gin.Recovery())                                         // Gin's built-in recovery
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer())) // Our custom Jaeger recovery

	jobsHandler := handlers.NewJobsHandler(accounts, publisher)

	// Health check (no custom context needed)
	r.GET("/health", handlers.HealthCheck)

	apiKeyMiddleware := middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  middleware.APIKeyHeader,
		ValidAPIKey: apikey,
	})

	api := r.Group("/v1")
	api.Use(apiKeyMiddleware)
	api.Use(middleware.CustomContextMiddleware(appSource))
	api.Use(middleware.TracingMiddleware())
	{
		jobs := api.Group("/jobs")
		{
			jobs.POST("/backfill", jobsHandler.Backfill())
			jobs.POST("/incremental-sync", jobsHandler.IncrementalSync())
		}
	}
}
