// Package router provides document QA service routing.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/internal/docqa/handler"
	"github.com/kart-io/docqa/internal/docqa/middleware"
)

// Register registers the document QA routes on the engine.
// authToken protects the /v1 API group; an empty token disables auth.
func Register(engine *gin.Engine, qaHandler *handler.DocQAHandler, authToken string) {
	logger.Info("Registering document QA routes...")

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
	)

	engine.GET("/health", qaHandler.Health)
	engine.GET("/metrics", qaHandler.Metrics)

	v1 := engine.Group("/v1", middleware.BearerAuth(authToken))
	{
		// Index endpoints
		v1.POST("/documents", qaHandler.Upload)
		v1.POST("/documents/url", qaHandler.IndexFromURL)

		// Query endpoints
		v1.POST("/query", qaHandler.Query)
		v1.POST("/run", qaHandler.Run)

		// Admin endpoints
		v1.GET("/stats", qaHandler.Stats)
		v1.DELETE("/cache", qaHandler.ClearCache)
	}

	logger.Info("HTTP routes registered")
}
