package repo

import (
	"context"
	"sort"
	"sync"

	"Flort/internal/db"
	"Flort/internal/model"
)

// MemoryMessageStore keeps histories in process, used when no Mongo URI is configured
type MemoryMessageStore struct {
	mu       sync.RWMutex
	messages map[string][]model.Message
}

func NewMemoryMessageStore() *MemoryMessageStore {
	return &MemoryMessageStore{messages: map[string][]model.Message{}}
}

func (s *MemoryMessageStore) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	if conversationID == "" {
		return nil, ErrInvalidChannelID
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Message(nil), s.messages[conversationID]...), nil
}

func (s *MemoryMessageStore) AppendMessage(ctx context.Context, conversationID string, msg model.Message) error {
	if err := validateMessage(conversationID, msg); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[conversationID] = append(s.messages[conversationID], msg)
	return nil
}

func (s *MemoryMessageStore) MarkRead(ctx context.Context, conversationID string, sender *model.Sender) (int, error) {
	if conversationID == "" {
		return 0, ErrInvalidChannelID
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	list := s.messages[conversationID]
	for i := range list {
		if list[i].Read || (sender != nil && list[i].Sender != *sender) {
			continue
		}
		list[i].Read = true
		changed++
	}
	return changed, nil
}

// MemoryConversationStore keeps conversation metadata in process
type MemoryConversationStore struct {
	mu    sync.RWMutex
	convs map[string]model.ConversationMetadata
}

func NewMemoryConversationStore() *MemoryConversationStore {
	return &MemoryConversationStore{convs: map[string]model.ConversationMetadata{}}
}

func (s *MemoryConversationStore) Save(ctx context.Context, conv model.ConversationMetadata) error {
	if conv.ID == "" {
		return ErrInvalidChannelID
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs[conv.ID] = conv
	return nil
}

func (s *MemoryConversationStore) Get(ctx context.Context, id string) (model.ConversationMetadata, error) {
	if err := ctx.Err(); err != nil {
		return model.ConversationMetadata{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.convs[id]
	if !ok {
		return model.ConversationMetadata{}, ErrNotFound
	}
	return conv, nil
}

// List sorts by last message time, newest first, unless SortBy is "created_at"
func (s *MemoryConversationStore) List(ctx context.Context, query ConversationQuery, params db.PaginationParams) (*db.PaginatedResult[model.ConversationMetadata], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	params = params.Normalize()

	s.mu.RLock()
	all := make([]model.ConversationMetadata, 0, len(s.convs))
	for _, c := range s.convs {
		if query.Matches(c) {
			all = append(all, c)
		}
	}
	s.mu.RUnlock()

	desc := params.SortBy == "" || params.SortDesc
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i].LastMessageAt, all[j].LastMessageAt
		if params.SortBy == "created_at" {
			a, b = all[i].CreatedAt, all[j].CreatedAt
		}
		if a.Equal(b) {
			return all[i].ID < all[j].ID
		}
		if desc {
			return a.After(b)
		}
		return a.Before(b)
	})

	total := int64(len(all))
	start := params.Skip()
	if start > total {
		start = total
	}
	end := start + params.PageSize
	if end > total {
		end = total
	}
	return db.NewPage(all[start:end], total, params), nil
}
