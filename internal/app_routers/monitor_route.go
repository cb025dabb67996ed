package approuters

import (
	"Flort/internal/configuration"

	"github.com/gin-gonic/gin"
)

// MonitorRouters sets up monitoring API routes
func MonitorRouters(router gin.IRouter, container *configuration.Container) {
	// Monitor API group
	monitorGroup := router.Group("/monitor")
	{
		// GET /api/monitor/stats - Get hub statistics
		monitorGroup.GET("/stats", container.MonitorHandler.GetHubStats)
	}
}
