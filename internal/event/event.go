package event

import (
	"encoding/json"
	"time"

	"Flort/internal/model"
)

// Topic names, also used as the "event" field of frames pushed to dashboards
const (
	EventConversationCreated = "conversationCreated"
	EventLocationChanged     = "locationChanged"
	EventStatusUpdated       = "statusUpdated"
	EventNotificationAdded   = "notificationAdded"
	EventNotificationRead    = "notificationRead"
	EventEscalationChanged   = "escalationChanged"

	// client to server
	EventSubscribe = "subscribe"
	EventError     = "error"
)

// Topics lists every server-side topic
var Topics = []string{
	EventConversationCreated,
	EventLocationChanged,
	EventStatusUpdated,
	EventNotificationAdded,
	EventNotificationRead,
	EventEscalationChanged,
}

// Envelope is the frame exchanged with dashboards over the socket
type Envelope struct {
	Event     string          `json:"event"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Topics    []string        `json:"topics,omitempty"` // subscribe requests only
	Timestamp int64           `json:"timestamp"`
}

// ConversationCreated is published once per new conversation.
// Serialized as {"conversation": {...}}.
type ConversationCreated struct {
	Conversation model.ConversationMetadata `json:"conversation"`
}

type LocationChanged struct {
	ConversationID string         `json:"conversationId"`
	Previous       model.Location `json:"previous"`
	Current        model.Location `json:"current"`
	Version        uint64         `json:"version"`
	At             time.Time      `json:"at"`
}

type StatusUpdated struct {
	ConversationID string                   `json:"conversationId"`
	UserID         string                   `json:"userId"`
	BotID          string                   `json:"botId"`
	Status         model.ConversationStatus `json:"status"`
}

type NotificationAdded struct {
	Notification model.Notification `json:"notification"`
}

// NotificationRead carries the ids that flipped to read
type NotificationRead struct {
	IDs    []string `json:"ids"`
	Unread int      `json:"unread"`
}

type EscalationChanged struct {
	Pending  int  `json:"pending"`
	Disabled bool `json:"disabled"`
	Visible  bool `json:"visible"`
}
