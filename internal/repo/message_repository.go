package repo

import (
	"context"
	"fmt"
	"time"

	"Flort/internal/db"
	"Flort/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// messageDocument is one message as stored in the messages collection
type messageDocument struct {
	ConversationID string    `bson:"conversation_id"`
	CreatedAt      time.Time `bson:"created_at"`
	model.Message  `bson:",inline"`
}

type messageRepository struct {
	mongoRepo *db.Repository[messageDocument]
	logger    *zap.Logger
}

func NewMessageRepository(database *mongo.Database, logger *zap.Logger) MessageStore {
	return &messageRepository{
		mongoRepo: db.NewRepository[messageDocument](database, messagesCollection),
		logger:    logger,
	}
}

// -----------------------------------------------------------------------------
// ListMessages - full history in insertion order
// -----------------------------------------------------------------------------

func (m *messageRepository) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	if conversationID == "" {
		return nil, ErrInvalidChannelID
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("conversation_id", conversationID).Build()
	docs, err := withRetry(ctx, m.logger, "list_messages", func(ctx context.Context) ([]messageDocument, error) {
		return m.mongoRepo.FindAll(ctx, filter, "created_at")
	})
	if err != nil {
		return nil, handleReadError(m.logger, err, conversationID)
	}

	messages := make([]model.Message, len(docs))
	for i, d := range docs {
		messages[i] = d.Message
	}

	m.logger.Debug("messages retrieved",
		zap.String("conversation_id", conversationID),
		zap.Int("count", len(messages)),
	)
	return messages, nil
}

// -----------------------------------------------------------------------------
// AppendMessage
// -----------------------------------------------------------------------------

func (m *messageRepository) AppendMessage(ctx context.Context, conversationID string, msg model.Message) error {
	if err := validateMessage(conversationID, msg); err != nil {
		return err
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	doc := messageDocument{ConversationID: conversationID, CreatedAt: time.Now().UTC(), Message: msg}
	_, err := withRetry(ctx, m.logger, "append_message", func(ctx context.Context) (*mongo.InsertOneResult, error) {
		return m.mongoRepo.Create(ctx, doc)
	})
	if err != nil {
		m.logger.Error("failed to insert message",
			zap.Error(err),
			zap.String("conversation_id", conversationID),
		)
		return fmt.Errorf("insert message failed: %w", err)
	}

	m.logger.Info("message inserted successfully",
		zap.String("conversation_id", conversationID),
		zap.String("message_id", msg.ID),
	)
	return nil
}

// -----------------------------------------------------------------------------
// MarkRead
// -----------------------------------------------------------------------------

func (m *messageRepository) MarkRead(ctx context.Context, conversationID string, sender *model.Sender) (int, error) {
	if conversationID == "" {
		return 0, ErrInvalidChannelID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().
		Eq("conversation_id", conversationID).
		Ne("read", true)
	if sender != nil {
		filter.Eq("sender", *sender)
	}

	res, err := withRetry(ctx, m.logger, "mark_read", func(ctx context.Context) (*mongo.UpdateResult, error) {
		return m.mongoRepo.UpdateMany(ctx, filter.Build(), bson.M{"read": true})
	})
	if err != nil {
		m.logger.Error("failed to mark messages read",
			zap.Error(err),
			zap.String("conversation_id", conversationID),
		)
		return 0, fmt.Errorf("mark read failed: %w", err)
	}
	return int(res.ModifiedCount), nil
}
