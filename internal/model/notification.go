package model

import (
	"errors"
	"strings"
	"time"
)

var ErrInvalidNotificationType = errors.New("invalid notification type: must be one of info, success, warning, error")

type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

func ParseNotificationType(s string) (NotificationType, error) {
	switch NotificationType(strings.ToLower(strings.TrimSpace(s))) {
	case "", NotificationInfo:
		return NotificationInfo, nil
	case NotificationSuccess:
		return NotificationSuccess, nil
	case NotificationWarning:
		return NotificationWarning, nil
	case NotificationError:
		return NotificationError, nil
	default:
		return "", ErrInvalidNotificationType
	}
}

// Notification is an operator-facing alert shown in the dashboard
type Notification struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	Read      bool             `json:"read"`
	Timestamp time.Time        `json:"timestamp"`
}
