package approuters

import (
	"Flort/internal/configuration"

	"github.com/gin-gonic/gin"
)

func ConversationRouters(router gin.IRouter, container *configuration.Container) {
	conversationRoute := router.Group("/conversations")
	{
		conversationRoute.POST("", container.ConversationHandler.CreateConversation)
		conversationRoute.GET("", container.ConversationHandler.ListConversations)
		conversationRoute.GET("/:userId/:botId/status", container.ConversationHandler.GetStatus)
		conversationRoute.POST("/:userId/:botId/messages", container.ConversationHandler.RecordMessage)
		conversationRoute.POST("/:userId/:botId/read", container.ConversationHandler.MarkRead)
	}

	locationRoute := router.Group("/locations")
	{
		locationRoute.GET("/:conversationId", container.ConversationHandler.GetLocation)
		locationRoute.PUT("/:conversationId", container.ConversationHandler.SetLocation)
	}
}
