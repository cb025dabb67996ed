package approuters

import (
	"Flort/internal/configuration"

	"github.com/gin-gonic/gin"
)

func NotificationRouters(router gin.IRouter, container *configuration.Container) {
	notificationRoute := router.Group("/notifications")
	{
		notificationRoute.GET("", container.NotificationHandler.ListNotifications)
		notificationRoute.POST("", container.NotificationHandler.AddNotification)
		notificationRoute.POST("/read-all", container.NotificationHandler.MarkAllAsRead)
		notificationRoute.POST("/:id/read", container.NotificationHandler.MarkAsRead)
	}

	escalationRoute := router.Group("/escalations")
	{
		escalationRoute.GET("", container.EscalationHandler.GetBanner)
		escalationRoute.PUT("/banner", container.EscalationHandler.SetBanner)
	}
}
