package handler

import (
	"net/http"
	"strconv"
	"strings"

	"Flort/internal/db"
	"Flort/internal/model"
	"Flort/internal/repo"
	"Flort/internal/service"

	"github.com/gin-gonic/gin"
)

type ConversationHandler interface {
	CreateConversation(c *gin.Context)
	ListConversations(c *gin.Context)
	GetStatus(c *gin.Context)
	RecordMessage(c *gin.Context)
	MarkRead(c *gin.Context)
	GetLocation(c *gin.Context)
	SetLocation(c *gin.Context)
}

type conversationHandler struct {
	service service.ConversationService
}

func NewConversationHandler(service service.ConversationService) ConversationHandler {
	return &conversationHandler{
		service: service,
	}
}

// CreateConversation
// @Router /api/conversations [post]
func (h *conversationHandler) CreateConversation(c *gin.Context) {
	var req service.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, nil, "Invalid request body")
		return
	}

	conv, err := h.service.CreateConversation(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, conv, "Conversation created successfully")
}

// ListConversations accepts ?location=bot,live_chat and ?priority=high filters
// @Router /api/conversations [get]
func (h *conversationHandler) ListConversations(c *gin.Context) {
	page, err := strconv.ParseInt(c.DefaultQuery("page", "1"), 10, 64)
	if err != nil || page < 1 {
		respond(c, http.StatusBadRequest, nil, "Invalid page number")
		return
	}
	size, err := strconv.ParseInt(c.DefaultQuery("pageSize", "20"), 10, 64)
	if err != nil || size < 1 {
		respond(c, http.StatusBadRequest, nil, "Invalid page size")
		return
	}

	query, err := conversationQuery(c)
	if err != nil {
		fail(c, err)
		return
	}

	result, err := h.service.ListConversations(c.Request.Context(), query, db.PaginationParams{Page: page, PageSize: size})
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, result, "Conversations retrieved successfully")
}

func conversationQuery(c *gin.Context) (repo.ConversationQuery, error) {
	var q repo.ConversationQuery
	if raw := c.Query("priority"); raw != "" {
		p, err := model.ParsePriority(raw)
		if err != nil {
			return q, err
		}
		q.Priority = p
	}
	for _, raw := range strings.Split(c.Query("location"), ",") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		loc, err := model.ParseLocation(raw)
		if err != nil {
			return q, err
		}
		q.Locations = append(q.Locations, loc)
	}
	return q, nil
}

// GetStatus returns the derived status, 404 when no message was ever recorded
// @Router /api/conversations/{userId}/{botId}/status [get]
func (h *conversationHandler) GetStatus(c *gin.Context) {
	st, ok := h.service.Status(c.Param("userId"), c.Param("botId"))
	if !ok {
		respond(c, http.StatusNotFound, nil, "No status for this conversation")
		return
	}
	respond(c, http.StatusOK, st, "Status retrieved successfully")
}

type recordMessageRequest struct {
	ID      string `json:"id"`
	Sender  string `json:"sender" binding:"required"`
	Content string `json:"content"`
	Time    string `json:"time"`
	Read    bool   `json:"read"`
}

// RecordMessage
// @Router /api/conversations/{userId}/{botId}/messages [post]
func (h *conversationHandler) RecordMessage(c *gin.Context) {
	var req recordMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, nil, "Invalid request body")
		return
	}

	res, err := h.service.RecordMessage(c.Request.Context(), c.Param("userId"), c.Param("botId"), model.Message{
		ID:      req.ID,
		Sender:  model.Sender(req.Sender),
		Content: req.Content,
		Time:    req.Time,
		Read:    req.Read,
	})
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, res, "Message recorded successfully")
}

// MarkRead marks messages of ?sender= as read, every message when sender is absent
// @Router /api/conversations/{userId}/{botId}/read [post]
func (h *conversationHandler) MarkRead(c *gin.Context) {
	var sender *model.Sender
	if raw, ok := c.GetQuery("sender"); ok {
		s, err := model.ParseSender(raw)
		if err != nil {
			fail(c, err)
			return
		}
		sender = &s
	}

	st, changed, err := h.service.MarkRead(c.Request.Context(), c.Param("userId"), c.Param("botId"), sender)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"status": st, "changed": changed}, "Messages marked as read")
}

// GetLocation never fails; unknown conversations are reported in bot
// @Router /api/locations/{conversationId} [get]
func (h *conversationHandler) GetLocation(c *gin.Context) {
	id := c.Param("conversationId")
	respond(c, http.StatusOK, gin.H{
		"conversationId": id,
		"location":       h.service.Location(id),
	}, "Location retrieved successfully")
}

type setLocationRequest struct {
	Location string `json:"location" binding:"required"`
}

// SetLocation
// @Router /api/locations/{conversationId} [put]
func (h *conversationHandler) SetLocation(c *gin.Context) {
	var req setLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, nil, "Invalid request body")
		return
	}
	loc, err := model.ParseLocation(req.Location)
	if err != nil {
		fail(c, err)
		return
	}

	id := c.Param("conversationId")
	changed := h.service.SetLocation(c.Request.Context(), id, loc)
	respond(c, http.StatusOK, gin.H{
		"conversationId": id,
		"location":       loc,
		"changed":        changed,
	}, "Location updated successfully")
}
