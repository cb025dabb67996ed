package event

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Broker owns one bus per topic. It is created once by the container and injected into
// every publisher and subscriber, so no component holds a reference to another's listeners.
type Broker struct {
	ConversationCreated *Bus[ConversationCreated]
	LocationChanged     *Bus[LocationChanged]
	StatusUpdated       *Bus[StatusUpdated]
	NotificationAdded   *Bus[NotificationAdded]
	NotificationRead    *Bus[NotificationRead]
	EscalationChanged   *Bus[EscalationChanged]
}

func NewBroker(logger *zap.Logger, observer Observer) *Broker {
	return &Broker{
		ConversationCreated: NewBus[ConversationCreated](EventConversationCreated, logger, observer),
		LocationChanged:     NewBus[LocationChanged](EventLocationChanged, logger, observer),
		StatusUpdated:       NewBus[StatusUpdated](EventStatusUpdated, logger, observer),
		NotificationAdded:   NewBus[NotificationAdded](EventNotificationAdded, logger, observer),
		NotificationRead:    NewBus[NotificationRead](EventNotificationRead, logger, observer),
		EscalationChanged:   NewBus[EscalationChanged](EventEscalationChanged, logger, observer),
	}
}

// SubscriberCounts reports listeners per topic
func (b *Broker) SubscriberCounts() map[string]int {
	return map[string]int{
		EventConversationCreated: b.ConversationCreated.Subscribers(),
		EventLocationChanged:     b.LocationChanged.Subscribers(),
		EventStatusUpdated:       b.StatusUpdated.Subscribers(),
		EventNotificationAdded:   b.NotificationAdded.Subscribers(),
		EventNotificationRead:    b.NotificationRead.Subscribers(),
		EventEscalationChanged:   b.EscalationChanged.Subscribers(),
	}
}

// SubscribeAll forwards every topic to sink as an Envelope. Used by the socket hub.
func (b *Broker) SubscribeAll(sink func(Envelope)) func() {
	unsubs := []func(){
		forward(b.ConversationCreated, sink),
		forward(b.LocationChanged, sink),
		forward(b.StatusUpdated, sink),
		forward(b.NotificationAdded, sink),
		forward(b.NotificationRead, sink),
		forward(b.EscalationChanged, sink),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func forward[T any](bus *Bus[T], sink func(Envelope)) func() {
	topic := bus.Topic()
	return bus.Subscribe(func(ev T) error {
		env, err := NewEnvelope(topic, ev)
		if err != nil {
			return err
		}
		sink(env)
		return nil
	})
}

// NewEnvelope marshals payload into a frame for topic
func NewEnvelope(topic string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Event:     topic,
		Payload:   raw,
		Timestamp: time.Now().Unix(),
	}, nil
}
