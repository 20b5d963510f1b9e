package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ivms/internal/handler"
	"ivms/internal/middleware"
)

// Setup configures the Gin engine with the health routes and middleware.
func Setup(healthH *handler.HealthHandler, log *zap.Logger) *gin.Engine {
	r := gin.New()

	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))

	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	return r
}
