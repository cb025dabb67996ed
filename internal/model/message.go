package model

import (
	"errors"
	"strings"
)

var ErrInvalidSender = errors.New("invalid sender: must be one of user, bot, admin")

// Sender identifies who authored a message
type Sender string

const (
	SenderUser  Sender = "user"
	SenderBot   Sender = "bot"
	SenderAdmin Sender = "admin" // operators and system messages
)

// ParseSender validates a sender string. "system" is accepted as an alias of admin.
func ParseSender(s string) (Sender, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return SenderUser, nil
	case "bot":
		return SenderBot, nil
	case "admin", "system":
		return SenderAdmin, nil
	default:
		return "", ErrInvalidSender
	}
}

// Message is a single entry of a conversation history.
// Time keeps the display format "D Month YYYY / HH:MM" and is normalized by timefmt before comparison.
type Message struct {
	ID      string `json:"id" bson:"message_id"`
	Sender  Sender `json:"sender" bson:"sender"`
	Content string `json:"content" bson:"content"`
	Time    string `json:"time" bson:"time"`
	Read    bool   `json:"read" bson:"read"`
}

// ErrorPayload represents an error response sent to client via WebSocket
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
