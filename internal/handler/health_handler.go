package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ivms/internal/logger"
)

// Pinger is satisfied by *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Check is an optional dependency check. A failing check degrades readiness
// without taking the process out of rotation.
type Check struct {
	Name string
	Run  func(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	db      Pinger
	checks  []Check
	timeout time.Duration
	log     *zap.Logger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db Pinger, log *zap.Logger, checks ...Check) *HealthHandler {
	return &HealthHandler{db: db, checks: checks, timeout: 2 * time.Second, log: logger.OrNop(log)}
}

// Liveness handles GET /healthz
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness handles GET /readyz
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		h.log.Warn("handler.Readiness: database ping failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "database not reachable"})
		return
	}

	status := "ok"
	results := gin.H{"database": "ok"}
	for _, chk := range h.checks {
		if err := chk.Run(ctx); err != nil {
			h.log.Warn("handler.Readiness: check failed", zap.String("check", chk.Name), zap.Error(err))
			results[chk.Name] = err.Error()
			status = "degraded"
			continue
		}
		results[chk.Name] = "ok"
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "checks": results})
}
