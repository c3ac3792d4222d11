package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/resaletix/resaletix-backend/services"
	"github.com/resaletix/resaletix-backend/types"
)

type HealthChecker interface {
	CheckHealth(ctx context.Context) types.HealthCheck
}

var _ HealthChecker = (*services.HealthService)(nil)

type HealthHandler struct {
	healthService HealthChecker
}

func NewHealthHandler(healthService HealthChecker) *HealthHandler {
	return &HealthHandler{healthService: healthService}
}

// LivenessCheck answers as long as the process serves HTTP.
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.Status(http.StatusOK)
}

// ReadinessCheck fails only when a critical dependency is down. A degraded
// Redis or dedup service still receives traffic.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	health := h.healthService.CheckHealth(c.Request.Context())

	if health.Status == types.HealthStatusDown {
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}
	c.JSON(http.StatusOK, health)
}

func (h *HealthHandler) DetailedHealth(c *gin.Context) {
	c.JSON(http.StatusOK, h.healthService.CheckHealth(c.Request.Context()))
}
