package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"Flort/internal/db"
	"Flort/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestMemoryMessageStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryMessageStore()

	require.NoError(t, s.AppendMessage(ctx, "u1-b1", model.Message{ID: "1", Sender: model.SenderBot, Time: "1 enero 2024 / 10:00"}))
	require.NoError(t, s.AppendMessage(ctx, "u1-b1", model.Message{ID: "2", Sender: model.SenderUser, Time: "1 enero 2024 / 10:01"}))
	require.NoError(t, s.AppendMessage(ctx, "u2-b1", model.Message{ID: "3", Sender: model.SenderBot, Time: "1 enero 2024 / 10:02"}))

	list, err := s.ListMessages(ctx, "u1-b1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "1", list[0].ID)

	list[0].Content = "changed"
	again, _ := s.ListMessages(ctx, "u1-b1")
	assert.Empty(t, again[0].Content, "returned slice is a copy")

	bot := model.SenderBot
	n, err := s.MarkRead(ctx, "u1-b1", &bot)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, _ = s.MarkRead(ctx, "u1-b1", &bot)
	assert.Equal(t, 0, n)

	n, _ = s.MarkRead(ctx, "u1-b1", nil)
	assert.Equal(t, 1, n)

	other, _ := s.ListMessages(ctx, "u2-b1")
	assert.False(t, other[0].Read)

	empty, err := s.ListMessages(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryMessageStoreValidation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryMessageStore()

	assert.ErrorIs(t, s.AppendMessage(ctx, "", model.Message{Sender: model.SenderBot, Time: "x"}), ErrInvalidChannelID)
	assert.ErrorIs(t, s.AppendMessage(ctx, "c", model.Message{Time: "x"}), ErrInvalidMessage)
	_, err := s.ListMessages(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidChannelID)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.ListMessages(cancelled, "c")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryConversationStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryConversationStore()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		id := fmt.Sprintf("u%02d-b1", i)
		require.NoError(t, s.Save(ctx, model.ConversationMetadata{
			ID:            id,
			CreatedAt:     base.Add(time.Duration(i) * time.Hour),
			LastMessageAt: base.Add(time.Duration(12-i) * time.Minute),
		}))
	}

	got, err := s.Get(ctx, "u03-b1")
	require.NoError(t, err)
	assert.Equal(t, "u03-b1", got.ID)

	page, err := s.List(ctx, ConversationQuery{}, db.PaginationParams{Page: 1, PageSize: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(12), page.Total)
	assert.Equal(t, int64(3), page.TotalPages)
	require.Len(t, page.Data, 5)
	assert.Equal(t, "u00-b1", page.Data[0].ID, "most recent activity first")

	last, err := s.List(ctx, ConversationQuery{}, db.PaginationParams{Page: 3, PageSize: 5, SortBy: "created_at"})
	require.NoError(t, err)
	require.Len(t, last.Data, 2)
	assert.Equal(t, "u10-b1", last.Data[0].ID)

	beyond, err := s.List(ctx, ConversationQuery{}, db.PaginationParams{Page: 9, PageSize: 5})
	require.NoError(t, err)
	assert.Empty(t, beyond.Data)
}

func TestRetryableErrors(t *testing.T) {
	assert.False(t, isRetryableError(nil))
	assert.False(t, isRetryableError(context.Canceled))
	assert.False(t, isRetryableError(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)))
	assert.False(t, isRetryableError(mongo.ErrNoDocuments))
	assert.False(t, isRetryableError(errors.New("boom")))
}

func TestWaitForRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := waitForRetry(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConversationQuery(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryConversationStore()
	for _, conv := range []model.ConversationMetadata{
		{ID: "a", Status: model.LocationBot, Priority: model.PriorityNormal},
		{ID: "b", Status: model.LocationLiveChat, Priority: model.PriorityHigh},
		{ID: "c", Status: model.LocationLiveChat, Priority: model.PriorityNormal},
		{ID: "d", Status: model.LocationArchived, Priority: model.PriorityHigh},
	} {
		require.NoError(t, s.Save(ctx, conv))
	}

	ids := func(q ConversationQuery) []string {
		page, err := s.List(ctx, q, db.PaginationParams{Page: 1, PageSize: 10})
		require.NoError(t, err)
		out := []string{}
		for _, c := range page.Data {
			out = append(out, c.ID)
		}
		return out
	}

	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(ConversationQuery{}))
	assert.Equal(t, []string{"b", "c"}, ids(ConversationQuery{Locations: []model.Location{model.LocationLiveChat}}))
	assert.Equal(t, []string{"a", "d"}, ids(ConversationQuery{Locations: []model.Location{model.LocationBot, model.LocationArchived}}))
	assert.Equal(t, []string{"b"}, ids(ConversationQuery{Locations: []model.Location{model.LocationLiveChat}, Priority: model.PriorityHigh}))
}

func TestConversationFilter(t *testing.T) {
	assert.Equal(t, bson.M{}, conversationFilter(ConversationQuery{}))
	assert.Equal(t, bson.M{"status": model.LocationLiveChat},
		conversationFilter(ConversationQuery{Locations: []model.Location{model.LocationLiveChat}}))
	assert.Equal(t, bson.M{
		"priority": model.PriorityUrgent,
		"status":   bson.M{"$in": []model.Location{model.LocationBot, model.LocationLiveChat}},
	}, conversationFilter(ConversationQuery{
		Locations: []model.Location{model.LocationBot, model.LocationLiveChat},
		Priority:  model.PriorityUrgent,
	}))
}
