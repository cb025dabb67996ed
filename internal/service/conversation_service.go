package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"Flort/internal/analytics"
	"Flort/internal/db"
	"Flort/internal/escalation"
	"Flort/internal/event"
	"Flort/internal/feature"
	"Flort/internal/location"
	"Flort/internal/model"
	"Flort/internal/notification"
	"Flort/internal/repo"
	"Flort/internal/status"
	"Flort/internal/timefmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidConversation = errors.New("userId and botId are required")
	ErrAlreadyExists       = errors.New("conversation already exists")
)

type CreateConversationRequest struct {
	UserID   string   `json:"userId"`
	BotID    string   `json:"botId"`
	Priority string   `json:"priority"`
	Tags     []string `json:"tags"`
	Notes    string   `json:"notes"`
}

// RecordResult is the state of a conversation right after a message was stored
type RecordResult struct {
	Message   model.Message            `json:"message"`
	Status    model.ConversationStatus `json:"status"`
	Location  model.Location           `json:"location"`
	Escalated bool                     `json:"escalated"`
}

type ConversationService interface {
	CreateConversation(ctx context.Context, req CreateConversationRequest) (model.ConversationMetadata, error)
	RecordMessage(ctx context.Context, userID, botID string, msg model.Message) (RecordResult, error)
	MarkRead(ctx context.Context, userID, botID string, sender *model.Sender) (model.ConversationStatus, int, error)
	Status(userID, botID string) (model.ConversationStatus, bool)
	SetLocation(ctx context.Context, conversationID string, loc model.Location) bool
	Location(conversationID string) model.Location
	ListConversations(ctx context.Context, query repo.ConversationQuery, params db.PaginationParams) (*db.PaginatedResult[model.ConversationMetadata], error)
}

// Dependencies of the conversation service, built by the container
type Dependencies struct {
	Messages      repo.MessageStore
	Conversations repo.ConversationStore
	Statuses      *status.Store
	Locations     *location.Registry
	Policy        escalation.Policy
	Notifications *notification.Center
	Tracker       *analytics.Tracker
	Gate          *feature.Gate
	Broker        *event.Broker
	Logger        *zap.Logger
}

type conversationService struct {
	messages      repo.MessageStore
	conversations repo.ConversationStore
	statuses      *status.Store
	locations     *location.Registry
	policy        escalation.Policy
	notifications *notification.Center
	tracker       *analytics.Tracker
	gate          *feature.Gate
	broker        *event.Broker
	logger        *zap.Logger
	now           func() time.Time

	// serializes read-modify-write of one conversation's metadata
	locks sync.Map
}

func NewConversationService(deps Dependencies) ConversationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &conversationService{
		messages:      deps.Messages,
		conversations: deps.Conversations,
		statuses:      deps.Statuses,
		locations:     deps.Locations,
		policy:        deps.Policy,
		notifications: deps.Notifications,
		tracker:       deps.Tracker,
		gate:          deps.Gate,
		broker:        deps.Broker,
		logger:        logger.Named("conversations"),
		now:           time.Now,
	}
}

func (s *conversationService) lock(id string) func() {
	mu, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// -----------------------------------------------------------------------------
// CreateConversation
// -----------------------------------------------------------------------------

func (s *conversationService) CreateConversation(ctx context.Context, req CreateConversationRequest) (model.ConversationMetadata, error) {
	userID, botID := strings.TrimSpace(req.UserID), strings.TrimSpace(req.BotID)
	if userID == "" || botID == "" {
		return model.ConversationMetadata{}, ErrInvalidConversation
	}
	priority, err := model.ParsePriority(req.Priority)
	if err != nil {
		return model.ConversationMetadata{}, err
	}

	id := model.ConversationID(userID, botID)
	unlock := s.lock(id)
	defer unlock()

	if _, err := s.conversations.Get(ctx, id); err == nil {
		return model.ConversationMetadata{}, ErrAlreadyExists
	} else if !errors.Is(err, repo.ErrNotFound) {
		return model.ConversationMetadata{}, err
	}

	conv := s.newMetadata(userID, botID, priority)
	if len(req.Tags) > 0 || req.Notes != "" {
		conv.Metadata = &model.ConversationDetails{Tags: req.Tags, Notes: req.Notes}
	}
	if err := s.conversations.Save(ctx, conv); err != nil {
		return model.ConversationMetadata{}, fmt.Errorf("create conversation: %w", err)
	}

	s.announce(conv)
	return conv, nil
}

func (s *conversationService) newMetadata(userID, botID string, priority model.Priority) model.ConversationMetadata {
	now := s.now().UTC()
	id := model.ConversationID(userID, botID)
	return model.ConversationMetadata{
		ID:            id,
		UserID:        userID,
		BotID:         botID,
		Status:        s.locations.GetLocation(id),
		Priority:      priority,
		CreatedAt:     now,
		UpdatedAt:     now,
		LastMessageAt: now,
	}
}

func (s *conversationService) announce(conv model.ConversationMetadata) {
	s.logger.Info("conversation created",
		zap.String("conversation_id", conv.ID),
		zap.String("priority", string(conv.Priority)),
	)
	s.broker.ConversationCreated.Publish(event.ConversationCreated{Conversation: conv})
	s.tracker.Track(analytics.ConversationCreated, map[string]string{"priority": string(conv.Priority)})
}

// -----------------------------------------------------------------------------
// RecordMessage
// -----------------------------------------------------------------------------

// RecordMessage stores msg, recomputes the status and applies the escalation policy.
// A conversation that does not exist yet is created with normal priority.
func (s *conversationService) RecordMessage(ctx context.Context, userID, botID string, msg model.Message) (RecordResult, error) {
	if userID == "" || botID == "" {
		return RecordResult{}, ErrInvalidConversation
	}
	sender, err := model.ParseSender(string(msg.Sender))
	if err != nil {
		return RecordResult{}, err
	}
	msg.Sender = sender
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Time == "" {
		msg.Time = timefmt.Format(s.now())
	}

	id := model.ConversationID(userID, botID)
	unlock := s.lock(id)
	defer unlock()

	if err := s.messages.AppendMessage(ctx, id, msg); err != nil {
		return RecordResult{}, err
	}
	history, err := s.messages.ListMessages(ctx, id)
	if err != nil {
		return RecordResult{}, err
	}
	st := s.statuses.Update(userID, botID, history)

	conv, created, err := s.loadOrNew(ctx, userID, botID)
	if err != nil {
		return RecordResult{}, err
	}
	now := s.now().UTC()
	conv.MessageCount++
	conv.LastMessageAt = now
	conv.UpdatedAt = now

	res := RecordResult{Message: msg, Status: st, Location: s.locations.GetLocation(id)}
	if s.policy.ShouldEscalate(res.Location, history) {
		s.locations.SetLocation(id, model.LocationLiveChat)
		res.Location = model.LocationLiveChat
		res.Escalated = true
		conv.TransferredAt = &now
	}
	conv.Status = res.Location

	if err := s.conversations.Save(ctx, conv); err != nil {
		s.logger.Error("failed to update conversation metadata",
			zap.String("conversation_id", id),
			zap.Error(err),
		)
	}
	if created {
		s.announce(conv)
	}
	if res.Escalated {
		s.escalated(conv, history)
	}

	s.tracker.Track(analytics.MessageRecorded, map[string]string{"sender": string(sender)})
	return res, nil
}

func (s *conversationService) loadOrNew(ctx context.Context, userID, botID string) (model.ConversationMetadata, bool, error) {
	conv, err := s.conversations.Get(ctx, model.ConversationID(userID, botID))
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return model.ConversationMetadata{}, false, err
	}
	return s.newMetadata(userID, botID, model.PriorityNormal), true, nil
}

func (s *conversationService) escalated(conv model.ConversationMetadata, history []model.Message) {
	waiting := escalation.TrailingUnanswered(history)
	s.logger.Info("conversation escalated to live chat",
		zap.String("conversation_id", conv.ID),
		zap.Int("unanswered", waiting),
	)
	s.tracker.Track(analytics.ConversationEscalated, map[string]string{"priority": string(conv.Priority)})

	if s.notifications == nil || !s.gate.IsEnabled(feature.NotificationsEscalation) {
		return
	}
	if n, ok := s.notifications.Add(
		"Conversation escalated",
		fmt.Sprintf("User %s has %d unanswered messages with bot %s", conv.UserID, waiting, conv.BotID),
		model.NotificationWarning,
	); ok {
		s.tracker.Track(analytics.NotificationPosted, map[string]string{"type": string(n.Type)})
	}
}

// -----------------------------------------------------------------------------
// MarkRead
// -----------------------------------------------------------------------------

func (s *conversationService) MarkRead(ctx context.Context, userID, botID string, sender *model.Sender) (model.ConversationStatus, int, error) {
	if userID == "" || botID == "" {
		return model.ConversationStatus{}, 0, ErrInvalidConversation
	}
	id := model.ConversationID(userID, botID)
	unlock := s.lock(id)
	defer unlock()

	changed, err := s.messages.MarkRead(ctx, id, sender)
	if err != nil {
		return model.ConversationStatus{}, 0, err
	}
	history, err := s.messages.ListMessages(ctx, id)
	if err != nil {
		return model.ConversationStatus{}, 0, err
	}
	st := s.statuses.Update(userID, botID, history)

	if changed > 0 {
		s.tracker.Track(analytics.ConversationMarkedRead, nil)
	}
	return st, changed, nil
}

// -----------------------------------------------------------------------------
// Status and location
// -----------------------------------------------------------------------------

func (s *conversationService) Status(userID, botID string) (model.ConversationStatus, bool) {
	return s.statuses.Get(userID, botID)
}

func (s *conversationService) Location(conversationID string) model.Location {
	return s.locations.GetLocation(conversationID)
}

// SetLocation moves a conversation and mirrors the change into its metadata when it exists
func (s *conversationService) SetLocation(ctx context.Context, conversationID string, loc model.Location) bool {
	unlock := s.lock(conversationID)
	defer unlock()

	if !s.locations.SetLocation(conversationID, loc) {
		return false
	}
	s.tracker.Track(analytics.ConversationLocationSet, map[string]string{"location": string(loc)})

	conv, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			s.logger.Warn("failed to load conversation for location update",
				zap.String("conversation_id", conversationID),
				zap.Error(err),
			)
		}
		return true
	}

	now := s.now().UTC()
	conv.Status = loc
	conv.UpdatedAt = now
	if loc == model.LocationLiveChat {
		conv.TransferredAt = &now
	}
	if err := s.conversations.Save(ctx, conv); err != nil {
		s.logger.Error("failed to update conversation metadata",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
	}
	return true
}

func (s *conversationService) ListConversations(ctx context.Context, query repo.ConversationQuery, params db.PaginationParams) (*db.PaginatedResult[model.ConversationMetadata], error) {
	return s.conversations.List(ctx, query, params)
}
