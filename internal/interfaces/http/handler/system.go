package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/application/storefront"
	"github.com/storefront/backend/internal/interfaces/http/dto"
)

// SystemHandler serves health and build information
type SystemHandler struct {
	BaseHandler
	health    *storefront.HealthService
	name      string
	version   string
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(health *storefront.HealthService, name, version string) *SystemHandler {
	return &SystemHandler{
		health:    health,
		name:      name,
		version:   version,
		startTime: time.Now(),
	}
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name" example:"storefront"`
	Version   string `json:"version" example:"1.0.0"`
	GoVersion string `json:"go_version" example:"go1.25.5"`
	Uptime    string `json:"uptime" example:"1h30m45s"`
}

// Health godoc
// @ID           health
// @Summary      Dependency health
// @Description  Runs the database, redis and object storage checks concurrently. Any failure reports degraded with 503.
// @Tags         system
// @Produce      json
// @Success      200 {object} storefront.HealthReport
// @Failure      503 {object} storefront.HealthReport
// @Router       /health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	report := h.health.Check(c.Request.Context())
	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

// Live godoc
// @ID           healthLive
// @Summary      Liveness probe
// @Tags         system
// @Success      200
// @Router       /health/live [get]
func (h *SystemHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": storefront.HealthOK})
}

// Info godoc
// @ID           systemInfo
// @Summary      Build information
// @Tags         system
// @Produce      json
// @Success      200 {object} Envelope[SystemInfoResponse]
// @Router       /system/info [get]
func (h *SystemHandler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(SystemInfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}))
}
