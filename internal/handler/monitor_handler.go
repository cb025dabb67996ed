package handler

import (
	"net/http"

	"Flort/internal/model"

	"github.com/gin-gonic/gin"
)

// StatsSource gathers the dashboard statistics
type StatsSource interface {
	GetStats() model.MonitorResponse
}

// MonitorHandler handles monitoring API endpoints
type MonitorHandler interface {
	GetHubStats(c *gin.Context)
}

type monitorHandler struct {
	monitorService StatsSource
}

// NewMonitorHandler creates a new monitor handler
func NewMonitorHandler(monitorService StatsSource) MonitorHandler {
	return &monitorHandler{
		monitorService: monitorService,
	}
}

// GetHubStats returns current hub statistics
// @Summary Get dashboard hub statistics
// @Description Returns connected dashboards, topic listeners, location counts and the escalation banner
// @Tags Monitor
// @Produce json
// @Success 200 {object} model.MonitorResponse
// @Router /api/monitor/stats [get]
func (h *monitorHandler) GetHubStats(c *gin.Context) {
	respond(c, http.StatusOK, h.monitorService.GetStats(), "Hub statistics retrieved successfully")
}
