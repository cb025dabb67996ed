package model

// -----------------------------------------------------------------
// Monitor API Response Models
// -----------------------------------------------------------------

// MonitorResponse is the main response for the monitor API
type MonitorResponse struct {
	Status        string            `json:"status"`        // "healthy", "idle"
	Connections   ConnectionStats   `json:"connections"`   // Dashboard connection stats
	Topics        []TopicStats      `json:"topics"`        // Subscribers per event topic
	Locations     map[Location]int  `json:"locations"`     // Conversations per location
	Escalations   EscalationStats   `json:"escalations"`   // Banner state
	Notifications NotificationStats `json:"notifications"` // Notification center counters
	Clients       []ClientInfo      `json:"clients"`       // List of connected dashboards
}

// ConnectionStats holds connection-related statistics
type ConnectionStats struct {
	TotalConnected int `json:"totalConnected"`
}

// TopicStats holds the listener count of one event topic
type TopicStats struct {
	Topic       string `json:"topic"`
	Subscribers int    `json:"subscribers"`
}

// EscalationStats mirrors the escalation banner
type EscalationStats struct {
	Pending  int  `json:"pending"`
	Disabled bool `json:"disabled"`
	Visible  bool `json:"visible"`
}

// NotificationStats holds notification center counters
type NotificationStats struct {
	Total  int `json:"total"`
	Unread int `json:"unread"`
}

// ClientInfo contains information about a connected dashboard
type ClientInfo struct {
	ClientID string   `json:"clientId"`
	Topics   []string `json:"topics,omitempty"` // empty means all topics
}
