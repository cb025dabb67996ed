package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"Flort/internal/analytics"
	"Flort/internal/escalation"
	"Flort/internal/event"
	"Flort/internal/feature"
	"Flort/internal/location"
	"Flort/internal/model"
	"Flort/internal/notification"
	"Flort/internal/repo"
	"Flort/internal/service"
	"Flort/internal/status"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	HttpStatusCode int
	ResponseBody   json.RawMessage
	IsSuccess      bool
	Message        string
}

type fixture struct {
	router        *gin.Engine
	notifications *notification.Center
	signal        *escalation.Signal
}

func newFixture(t *testing.T, flags map[feature.Flag]bool) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	broker := event.NewBroker(nil, nil)
	gate := feature.FromFlags(flags)
	locations, err := location.NewRegistry(broker.LocationChanged, nil)
	require.NoError(t, err)
	statuses := status.NewStore(broker.StatusUpdated, nil)
	center := notification.NewCenter(gate, broker, nil)
	signal := escalation.NewSignal(locations, statuses, broker, nil, nil)
	t.Cleanup(signal.Close)

	svc := service.NewConversationService(service.Dependencies{
		Messages:      repo.NewMemoryMessageStore(),
		Conversations: repo.NewMemoryConversationStore(),
		Statuses:      statuses,
		Locations:     locations,
		Policy:        escalation.NewPolicy(3, gate),
		Notifications: center,
		Tracker:       analytics.NewTracker(gate, nil, nil),
		Gate:          gate,
		Broker:        broker,
	})

	conversations := NewConversationHandler(svc)
	notifications := NewNotificationHandler(center)
	escalations := NewEscalationHandler(signal)

	r := gin.New()
	api := r.Group("/api")
	api.POST("/conversations", conversations.CreateConversation)
	api.GET("/conversations", conversations.ListConversations)
	api.GET("/conversations/:userId/:botId/status", conversations.GetStatus)
	api.POST("/conversations/:userId/:botId/messages", conversations.RecordMessage)
	api.POST("/conversations/:userId/:botId/read", conversations.MarkRead)
	api.GET("/locations/:conversationId", conversations.GetLocation)
	api.PUT("/locations/:conversationId", conversations.SetLocation)
	api.GET("/notifications", notifications.ListNotifications)
	api.POST("/notifications", notifications.AddNotification)
	api.POST("/notifications/read-all", notifications.MarkAllAsRead)
	api.POST("/notifications/:id/read", notifications.MarkAsRead)
	api.GET("/escalations", escalations.GetBanner)
	api.PUT("/escalations/banner", escalations.SetBanner)

	return &fixture{router: r, notifications: center, signal: signal}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, w.Code, env.HttpStatusCode)
	return w.Code, env
}

func TestCreateConversation(t *testing.T) {
	f := newFixture(t, nil)

	code, env := f.do(t, http.MethodPost, "/api/conversations", gin.H{"userId": "u1", "botId": "b1", "priority": "high"})
	require.Equal(t, http.StatusCreated, code)
	assert.True(t, env.IsSuccess)

	var conv model.ConversationMetadata
	require.NoError(t, json.Unmarshal(env.ResponseBody, &conv))
	assert.Equal(t, "u1-b1", conv.ID)
	assert.Equal(t, model.PriorityHigh, conv.Priority)
	assert.Equal(t, model.LocationBot, conv.Status)

	code, env = f.do(t, http.MethodPost, "/api/conversations", gin.H{"userId": "u1", "botId": "b1"})
	assert.Equal(t, http.StatusConflict, code)
	assert.False(t, env.IsSuccess)

	code, _ = f.do(t, http.MethodPost, "/api/conversations", gin.H{"userId": "u1"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(t, http.MethodPost, "/api/conversations", gin.H{"userId": "u2", "botId": "b1", "priority": "meh"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestListConversations(t *testing.T) {
	f := newFixture(t, nil)
	for _, u := range []string{"u1", "u2", "u3"} {
		code, _ := f.do(t, http.MethodPost, "/api/conversations", gin.H{"userId": u, "botId": "b1"})
		require.Equal(t, http.StatusCreated, code)
	}

	code, env := f.do(t, http.MethodGet, "/api/conversations?page=1&pageSize=2", nil)
	require.Equal(t, http.StatusOK, code)
	var page struct {
		Data  []model.ConversationMetadata `json:"data"`
		Total int64                        `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.ResponseBody, &page))
	assert.Len(t, page.Data, 2)
	assert.EqualValues(t, 3, page.Total)

	code, _ = f.do(t, http.MethodGet, "/api/conversations?page=zero", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	f.do(t, http.MethodPost, "/api/conversations", gin.H{"userId": "u4", "botId": "b1", "priority": "high"})
	f.do(t, http.MethodPut, "/api/locations/u2-b1", gin.H{"location": "live_chat"})

	_, env = f.do(t, http.MethodGet, "/api/conversations?priority=high", nil)
	require.NoError(t, json.Unmarshal(env.ResponseBody, &page))
	require.Len(t, page.Data, 1)
	assert.Equal(t, "u4-b1", page.Data[0].ID)

	_, env = f.do(t, http.MethodGet, "/api/conversations?location=live_chat,archived", nil)
	require.NoError(t, json.Unmarshal(env.ResponseBody, &page))
	require.Len(t, page.Data, 1)
	assert.Equal(t, "u2-b1", page.Data[0].ID)

	code, _ = f.do(t, http.MethodGet, "/api/conversations?location=moon", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRecordMessageAndStatus(t *testing.T) {
	f := newFixture(t, nil)

	code, _ := f.do(t, http.MethodGet, "/api/conversations/u1/b1/status", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = f.do(t, http.MethodPost, "/api/conversations/u1/b1/messages", gin.H{
		"sender": "bot", "content": "hola", "time": "7 septiembre 2024 / 08:05",
	})
	require.Equal(t, http.StatusCreated, code)

	code, env := f.do(t, http.MethodGet, "/api/conversations/u1/b1/status", nil)
	require.Equal(t, http.StatusOK, code)
	var st model.ConversationStatus
	require.NoError(t, json.Unmarshal(env.ResponseBody, &st))
	assert.True(t, st.HasUnreadMessages)
	require.NotNil(t, st.LastMessageFrom)
	assert.Equal(t, model.SenderBot, *st.LastMessageFrom)

	code, env = f.do(t, http.MethodPost, "/api/conversations/u1/b1/read?sender=bot", nil)
	require.Equal(t, http.StatusOK, code)
	var read struct {
		Status  model.ConversationStatus `json:"status"`
		Changed int                      `json:"changed"`
	}
	require.NoError(t, json.Unmarshal(env.ResponseBody, &read))
	assert.Equal(t, 1, read.Changed)
	assert.False(t, read.Status.HasUnreadMessages)

	code, _ = f.do(t, http.MethodPost, "/api/conversations/u1/b1/read?sender=robot", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(t, http.MethodPost, "/api/conversations/u1/b1/messages", gin.H{"sender": "alien"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestLocationEndpoints(t *testing.T) {
	f := newFixture(t, nil)

	code, env := f.do(t, http.MethodGet, "/api/locations/u1-b1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"conversationId":"u1-b1","location":"bot"}`, string(env.ResponseBody))

	code, env = f.do(t, http.MethodPut, "/api/locations/u1-b1", gin.H{"location": "live_chat"})
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"conversationId":"u1-b1","location":"live_chat","changed":true}`, string(env.ResponseBody))

	_, env = f.do(t, http.MethodPut, "/api/locations/u1-b1", gin.H{"location": "live_chat"})
	assert.JSONEq(t, `{"conversationId":"u1-b1","location":"live_chat","changed":false}`, string(env.ResponseBody))

	code, _ = f.do(t, http.MethodPut, "/api/locations/u1-b1", gin.H{"location": "moon"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestNotificationEndpoints(t *testing.T) {
	f := newFixture(t, nil)

	code, env := f.do(t, http.MethodPost, "/api/notifications", gin.H{"title": "Hi", "message": "there", "type": "success"})
	require.Equal(t, http.StatusCreated, code)
	var n model.Notification
	require.NoError(t, json.Unmarshal(env.ResponseBody, &n))
	assert.Equal(t, model.NotificationSuccess, n.Type)

	f.do(t, http.MethodPost, "/api/notifications", gin.H{"title": "Second"})
	assert.Equal(t, 2, f.notifications.UnreadCount())

	code, env = f.do(t, http.MethodPost, "/api/notifications/"+n.ID+"/read", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"changed":true,"unread":1}`, string(env.ResponseBody))

	code, env = f.do(t, http.MethodPost, "/api/notifications/read-all", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"changed":1,"unread":0}`, string(env.ResponseBody))

	code, _ = f.do(t, http.MethodPost, "/api/notifications", gin.H{"title": "Bad", "type": "panic"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = f.do(t, http.MethodGet, "/api/notifications", nil)
	require.Equal(t, http.StatusOK, code)
	var list struct {
		Notifications []model.Notification `json:"notifications"`
		Unread        int                  `json:"unread"`
	}
	require.NoError(t, json.Unmarshal(env.ResponseBody, &list))
	assert.Len(t, list.Notifications, 2)
	assert.Equal(t, "Second", list.Notifications[0].Title)
	assert.Zero(t, list.Unread)
}

func TestNotificationsDisabled(t *testing.T) {
	f := newFixture(t, map[feature.Flag]bool{feature.NotificationsEnabled: false})

	code, env := f.do(t, http.MethodPost, "/api/notifications", gin.H{"title": "Hi"})
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, "null", string(env.ResponseBody))
	assert.Empty(t, f.notifications.List())
}

func TestEscalationEndpoints(t *testing.T) {
	f := newFixture(t, nil)

	f.do(t, http.MethodPost, "/api/conversations/u1/b1/messages", gin.H{"sender": "user", "time": "1 enero 2024 / 10:00"})
	f.do(t, http.MethodPut, "/api/locations/u1-b1", gin.H{"location": "live_chat"})

	code, env := f.do(t, http.MethodGet, "/api/escalations", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"count":1,"disabled":false,"visible":true,"conversations":["u1-b1"]}`, string(env.ResponseBody))

	code, env = f.do(t, http.MethodPut, "/api/escalations/banner", gin.H{"disabled": true})
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"count":1,"disabled":true,"visible":false,"conversations":["u1-b1"]}`, string(env.ResponseBody))
	assert.True(t, f.signal.State().Disabled)

	code, _ = f.do(t, http.MethodPut, "/api/escalations/banner", gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusOf(repo.ErrNotFound))
	assert.Equal(t, http.StatusGatewayTimeout, statusOf(repo.ErrOperationTimeout))
	assert.Equal(t, http.StatusBadRequest, statusOf(model.ErrInvalidLocation))
	assert.Equal(t, http.StatusInternalServerError, statusOf(assert.AnError))
}

type fakeStats struct{}

func (fakeStats) GetStats() model.MonitorResponse {
	return model.MonitorResponse{Status: "idle"}
}

func TestMonitorHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/monitor/stats", NewMonitorHandler(fakeStats{}).GetHubStats)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/monitor/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.True(t, env.IsSuccess)
	var stats model.MonitorResponse
	require.NoError(t, json.Unmarshal(env.ResponseBody, &stats))
	assert.Equal(t, "idle", stats.Status)
}
