package repo

import (
	"context"
	"errors"
	"fmt"

	"Flort/internal/db"
	"Flort/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type conversationRepository struct {
	mongoRepo *db.Repository[model.ConversationMetadata]
	logger    *zap.Logger
}

func NewConversationRepository(database *mongo.Database, logger *zap.Logger) ConversationStore {
	return &conversationRepository{
		mongoRepo: db.NewRepository[model.ConversationMetadata](database, conversationsCollection),
		logger:    logger,
	}
}

// Save inserts or replaces the conversation keyed by its id
func (r *conversationRepository) Save(ctx context.Context, conv model.ConversationMetadata) error {
	if conv.ID == "" {
		return ErrInvalidChannelID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("_id", conv.ID).Build()
	_, err := withRetry(ctx, r.logger, "save_conversation", func(ctx context.Context) (*mongo.UpdateResult, error) {
		return r.mongoRepo.Upsert(ctx, filter, conv)
	})
	if err != nil {
		r.logger.Error("failed to save conversation",
			zap.String("conversation_id", conv.ID),
			zap.Error(err),
		)
		return fmt.Errorf("save conversation failed: %w", err)
	}
	return nil
}

// Get fetches a conversation by id, ErrNotFound when it does not exist
func (r *conversationRepository) Get(ctx context.Context, id string) (model.ConversationMetadata, error) {
	if id == "" {
		return model.ConversationMetadata{}, ErrInvalidChannelID
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("_id", id).Build()
	conv, err := withRetry(ctx, r.logger, "get_conversation", func(ctx context.Context) (*model.ConversationMetadata, error) {
		return r.mongoRepo.FindOne(ctx, filter)
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			r.logger.Debug("conversation not found", zap.String("conversation_id", id))
			return model.ConversationMetadata{}, ErrNotFound
		}
		return model.ConversationMetadata{}, handleReadError(r.logger, err, id)
	}

	r.logger.Debug("conversation retrieved successfully", zap.String("conversation_id", id))
	return *conv, nil
}

// List returns conversations, most recently active first unless params say otherwise
func (r *conversationRepository) List(ctx context.Context, query ConversationQuery, params db.PaginationParams) (*db.PaginatedResult[model.ConversationMetadata], error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	if params.SortBy == "" {
		params.SortBy = "last_message_at"
		params.SortDesc = true
	}

	page, err := withRetry(ctx, r.logger, "list_conversations", func(ctx context.Context) (*db.PaginatedResult[model.ConversationMetadata], error) {
		return r.mongoRepo.FindWithPagination(ctx, conversationFilter(query), params)
	})
	if err != nil {
		return nil, handleReadError(r.logger, err, "*")
	}

	r.logger.Debug("conversations listed",
		zap.Int("count", len(page.Data)),
		zap.Int64("total", page.Total),
		zap.Int64("page", page.Page),
	)
	return page, nil
}

// conversationFilter translates a query into a Mongo filter on the stored location and priority
func conversationFilter(q ConversationQuery) bson.M {
	if q.Priority == "" && len(q.Locations) == 0 {
		return db.Empty()
	}
	filter := db.NewFilter().EqIf(q.Priority != "", "priority", q.Priority)
	switch len(q.Locations) {
	case 0:
	case 1:
		filter.Eq("status", q.Locations[0])
	default:
		filter.In("status", q.Locations)
	}
	return filter.Build()
}
