package handler

import (
	"net/http"

	"Flort/internal/escalation"

	"github.com/gin-gonic/gin"
)

// EscalationSource is the part of the escalation signal exposed over HTTP
type EscalationSource interface {
	State() escalation.Banner
	SetDisabled(disabled bool) escalation.Banner
	PendingIDs() []string
}

type EscalationHandler interface {
	GetBanner(c *gin.Context)
	SetBanner(c *gin.Context)
}

type escalationHandler struct {
	signal EscalationSource
}

func NewEscalationHandler(signal EscalationSource) EscalationHandler {
	return &escalationHandler{
		signal: signal,
	}
}

func bannerBody(b escalation.Banner, pending []string) gin.H {
	if pending == nil {
		pending = []string{}
	}
	return gin.H{
		"count":         b.Count,
		"disabled":      b.Disabled,
		"visible":       b.IsVisible(),
		"conversations": pending,
	}
}

// @Router /api/escalations [get]
func (h *escalationHandler) GetBanner(c *gin.Context) {
	respond(c, http.StatusOK, bannerBody(h.signal.State(), h.signal.PendingIDs()), "Escalations retrieved successfully")
}

type setBannerRequest struct {
	Disabled *bool `json:"disabled" binding:"required"`
}

// @Router /api/escalations/banner [put]
func (h *escalationHandler) SetBanner(c *gin.Context) {
	var req setBannerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, nil, "Invalid request body")
		return
	}
	b := h.signal.SetDisabled(*req.Disabled)
	respond(c, http.StatusOK, bannerBody(b, h.signal.PendingIDs()), "Escalation banner updated")
}
