// Package analytics counts product events for dashboards and Prometheus.
package analytics

import (
	"sort"
	"strings"

	"Flort/internal/feature"

	"go.uber.org/zap"
)

// Event names tracked by the conversation service
const (
	ConversationCreated     = "conversation_created"
	ConversationEscalated   = "conversation_escalated"
	ConversationMarkedRead  = "conversation_marked_read"
	ConversationLocationSet = "conversation_location_set"
	MessageRecorded         = "message_recorded"
	NotificationPosted      = "notification_posted"
)

// Sink receives one count per tracked event, implemented by the metrics package
type Sink interface {
	AnalyticsEvent(name string)
}

type Tracker struct {
	gate   *feature.Gate
	sink   Sink
	logger *zap.Logger
}

func NewTracker(gate *feature.Gate, sink Sink, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{gate: gate, sink: sink, logger: logger.Named("analytics")}
}

// Track records name when analytics are enabled. Conversation events additionally need
// analytics.conversations. It reports whether the event was recorded.
func (t *Tracker) Track(name string, labels map[string]string) bool {
	if t == nil || !t.gate.IsEnabled(feature.AnalyticsEnabled) {
		return false
	}
	if strings.HasPrefix(name, "conversation_") && !t.gate.IsEnabled(feature.AnalyticsConversations) {
		return false
	}

	if t.sink != nil {
		t.sink.AnalyticsEvent(name)
	}
	if ce := t.logger.Check(zap.DebugLevel, "event tracked"); ce != nil {
		fields := []zap.Field{zap.String("event", name)}
		keys := make([]string, 0, len(labels))
		for k := range labels {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fields = append(fields, zap.String(k, labels[k]))
		}
		ce.Write(fields...)
	}
	return true
}
