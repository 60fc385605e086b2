package http

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"go.ngs.io/rectify/internal/pkg/metrics"
	"go.ngs.io/rectify/internal/usecase"
)

// SetupRouter creates and configures the Gin router. allowedOrigins is a
// comma-separated list; empty allows all origins.
func SetupRouter(rectifyUC *usecase.RectifyUseCase, allowedOrigins string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), metrics.Middleware())

	// Setup CORS middleware.
	corsConfig := cors.DefaultConfig()
	if allowedOrigins != "" {
		corsConfig.AllowOrigins = strings.Split(allowedOrigins, ",")
	} else {
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	// Create handler.
	handler := NewHandler(rectifyUC)

	// API v1 routes.
	v1 := router.Group("/v1")
	datasets := v1.Group("/datasets")
	datasets.GET("", handler.ListDatasets)
	datasets.GET("/:id/geometry", handler.GetGeometry)
	v1.POST("/rectify", handler.Rectify)

	// Health check and metrics.
	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", metrics.Handler())

	return router
}
