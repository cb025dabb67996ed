package hub

import (
	"sort"

	"Flort/internal/event"
	"Flort/internal/model"
)

// LocationCounter is the part of the location registry the monitor reads
type LocationCounter interface {
	Counts() map[model.Location]int
}

// BannerSource is the part of the escalation signal the monitor reads
type BannerSource interface {
	Stats() model.EscalationStats
}

// NotificationSource is the part of the notification center the monitor reads
type NotificationSource interface {
	List() []model.Notification
	UnreadCount() int
}

// MonitorService provides methods to gather hub statistics
type MonitorService struct {
	hub           *Hub
	broker        *event.Broker
	locations     LocationCounter
	escalations   BannerSource
	notifications NotificationSource
}

// NewMonitorService creates a new monitor service; any source may be nil
func NewMonitorService(hub *Hub, broker *event.Broker, locations LocationCounter, escalations BannerSource, notifications NotificationSource) *MonitorService {
	return &MonitorService{
		hub:           hub,
		broker:        broker,
		locations:     locations,
		escalations:   escalations,
		notifications: notifications,
	}
}

// GetStats gathers and returns all hub statistics
func (ms *MonitorService) GetStats() model.MonitorResponse {
	clients := ms.getClientList()
	connectionStats := model.ConnectionStats{TotalConnected: len(clients)}

	// Determine overall health status
	status := "healthy"
	if connectionStats.TotalConnected == 0 {
		status = "idle"
	}

	resp := model.MonitorResponse{
		Status:      status,
		Connections: connectionStats,
		Topics:      ms.getTopicStats(),
		Locations:   map[model.Location]int{},
		Clients:     clients,
	}
	if ms.locations != nil {
		resp.Locations = ms.locations.Counts()
	}
	if ms.escalations != nil {
		resp.Escalations = ms.escalations.Stats()
	}
	if ms.notifications != nil {
		resp.Notifications = model.NotificationStats{
			Total:  len(ms.notifications.List()),
			Unread: ms.notifications.UnreadCount(),
		}
	}
	return resp
}

// getTopicStats returns listener counts per topic, in topic order
func (ms *MonitorService) getTopicStats() []model.TopicStats {
	stats := make([]model.TopicStats, 0, len(event.Topics))
	if ms.broker == nil {
		return stats
	}
	counts := ms.broker.SubscriberCounts()
	for _, topic := range event.Topics {
		stats = append(stats, model.TopicStats{Topic: topic, Subscribers: counts[topic]})
	}
	sort.SliceStable(stats, func(i, j int) bool { return stats[i].Subscribers > stats[j].Subscribers })
	return stats
}

// getClientList returns list of all connected clients
func (ms *MonitorService) getClientList() []model.ClientInfo {
	if ms.hub == nil {
		return []model.ClientInfo{}
	}
	return ms.hub.Clients()
}
