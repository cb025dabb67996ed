package handler

import (
	"net/http"

	"Flort/internal/model"

	"github.com/gin-gonic/gin"
)

// NotificationFeed is the part of the notification center exposed over HTTP
type NotificationFeed interface {
	Add(title, message string, typ model.NotificationType) (model.Notification, bool)
	MarkAsRead(id string) bool
	MarkAllAsRead() int
	List() []model.Notification
	UnreadCount() int
}

type NotificationHandler interface {
	ListNotifications(c *gin.Context)
	AddNotification(c *gin.Context)
	MarkAsRead(c *gin.Context)
	MarkAllAsRead(c *gin.Context)
}

type notificationHandler struct {
	feed NotificationFeed
}

func NewNotificationHandler(feed NotificationFeed) NotificationHandler {
	return &notificationHandler{
		feed: feed,
	}
}

// @Router /api/notifications [get]
func (h *notificationHandler) ListNotifications(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{
		"notifications": h.feed.List(),
		"unread":        h.feed.UnreadCount(),
	}, "Notifications retrieved successfully")
}

type addNotificationRequest struct {
	Title   string `json:"title" binding:"required"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// AddNotification posts a notification; 202 with no body when notifications are disabled
// @Router /api/notifications [post]
func (h *notificationHandler) AddNotification(c *gin.Context) {
	var req addNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, nil, "Invalid request body")
		return
	}

	typ := model.NotificationInfo
	if req.Type != "" {
		parsed, err := model.ParseNotificationType(req.Type)
		if err != nil {
			fail(c, err)
			return
		}
		typ = parsed
	}

	n, ok := h.feed.Add(req.Title, req.Message, typ)
	if !ok {
		respond(c, http.StatusAccepted, nil, "Notifications are disabled")
		return
	}
	respond(c, http.StatusCreated, n, "Notification added successfully")
}

// @Router /api/notifications/{id}/read [post]
func (h *notificationHandler) MarkAsRead(c *gin.Context) {
	changed := h.feed.MarkAsRead(c.Param("id"))
	respond(c, http.StatusOK, gin.H{
		"changed": changed,
		"unread":  h.feed.UnreadCount(),
	}, "Notification marked as read")
}

// @Router /api/notifications/read-all [post]
func (h *notificationHandler) MarkAllAsRead(c *gin.Context) {
	n := h.feed.MarkAllAsRead()
	respond(c, http.StatusOK, gin.H{
		"changed": n,
		"unread":  h.feed.UnreadCount(),
	}, "Notifications marked as read")
}
