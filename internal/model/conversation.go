package model

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidLocation = errors.New("invalid location: must be one of bot, live_chat, archived")
	ErrInvalidPriority = errors.New("invalid priority: must be one of low, normal, high, urgent")
)

// ConversationID builds the deterministic key of a (user, bot) pair
func ConversationID(userID, botID string) string {
	return userID + "-" + botID
}

// ConversationStatus is the derived read/unread view of a conversation.
// LastMessageFrom is nil when the conversation has no messages.
type ConversationStatus struct {
	LastUpdated       time.Time `json:"lastUpdated"`
	HasUnreadMessages bool      `json:"hasUnreadMessages"`
	LastMessageFrom   *Sender   `json:"lastMessageFrom"`
}

// Location is where a conversation is currently handled
type Location string

const (
	LocationBot      Location = "bot"
	LocationLiveChat Location = "live_chat"
	LocationArchived Location = "archived"
)

// DefaultLocation is reported for conversations that were never placed explicitly
const DefaultLocation = LocationBot

func ParseLocation(s string) (Location, error) {
	switch Location(strings.ToLower(strings.TrimSpace(s))) {
	case LocationBot:
		return LocationBot, nil
	case LocationLiveChat:
		return LocationLiveChat, nil
	case LocationArchived:
		return LocationArchived, nil
	default:
		return "", ErrInvalidLocation
	}
}

// Priority of a conversation in the operator queue
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority validates a priority; an empty string means normal.
func ParsePriority(s string) (Priority, error) {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case "", PriorityNormal:
		return PriorityNormal, nil
	case PriorityLow:
		return PriorityLow, nil
	case PriorityHigh:
		return PriorityHigh, nil
	case PriorityUrgent:
		return PriorityUrgent, nil
	default:
		return "", ErrInvalidPriority
	}
}

// ConversationMetadata is the record announced to dashboards when a conversation is created
type ConversationMetadata struct {
	ID            string               `json:"id" bson:"_id"`
	UserID        string               `json:"userId" bson:"user_id"`
	BotID         string               `json:"botId" bson:"bot_id"`
	Status        Location             `json:"status" bson:"status"`
	Priority      Priority             `json:"priority" bson:"priority"`
	CreatedAt     time.Time            `json:"createdAt" bson:"created_at"`
	UpdatedAt     time.Time            `json:"updatedAt" bson:"updated_at"`
	LastMessageAt time.Time            `json:"lastMessageAt" bson:"last_message_at"`
	MessageCount  int                  `json:"messageCount" bson:"message_count"`
	TransferredAt *time.Time           `json:"transferredAt,omitempty" bson:"transferred_at,omitempty"`
	Metadata      *ConversationDetails `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// ConversationDetails holds operator annotations
type ConversationDetails struct {
	Tags  []string `json:"tags,omitempty" bson:"tags,omitempty"`
	Notes string   `json:"notes,omitempty" bson:"notes,omitempty"`
}
