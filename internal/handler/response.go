package handler

import (
	"errors"
	"net/http"

	"Flort/internal/model"
	"Flort/internal/repo"
	"Flort/internal/service"

	"github.com/gin-gonic/gin"
)

func respond(c *gin.Context, status int, body any, message string) {
	c.JSON(status, gin.H{
		"HttpStatusCode": status,
		"ResponseBody":   body,
		"IsSuccess":      status < http.StatusBadRequest,
		"Message":        message,
	})
}

// fail maps domain errors to HTTP codes; anything unknown is a 500 without internal details
func fail(c *gin.Context, err error) {
	status := statusOf(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		message = "internal error"
	}
	respond(c, status, nil, message)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidConversation),
		errors.Is(err, model.ErrInvalidSender),
		errors.Is(err, model.ErrInvalidLocation),
		errors.Is(err, model.ErrInvalidPriority),
		errors.Is(err, model.ErrInvalidNotificationType),
		errors.Is(err, repo.ErrInvalidMessage),
		errors.Is(err, repo.ErrInvalidChannelID):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, repo.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repo.ErrOperationTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
