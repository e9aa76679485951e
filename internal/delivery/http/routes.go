package http

import (
	"github.com/aeginies/backend/config"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, logger *zap.Logger) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(BasicAuthMiddleware(cfg.Auth.Users))
	{
		products := v1.Group("/products")
		{
			products.GET("", handler.ListProducts)
			products.GET("/search", handler.SearchProducts)
			products.GET("/:id", handler.GetProduct)
		}

		v1.POST("/scores", handler.ScoreProducts)

		v1.GET("/sync", handler.SyncStatus)
		v1.POST("/sync", handler.StartSync)

		v1.GET("/catalogue/export", handler.ExportCatalogue)

		solutions := v1.Group("/solutions")
		{
			solutions.GET("", handler.ListSolutions)
			solutions.GET("/categories", handler.ListSolutionCategories)
			solutions.GET("/:name", handler.GetSolution)
			solutions.GET("/:name/impact", handler.SolutionImpact)
			solutions.PUT("/:name", handler.SaveSolution)
			solutions.DELETE("/:name", handler.DeleteSolution)
		}
	}

	return router
}
