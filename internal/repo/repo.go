package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Flort/internal/db"
	"Flort/internal/model"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var (
	ErrMaxRetriesExceeded = errors.New("maximum retry attempts exceeded")
	ErrInvalidMessage     = errors.New("invalid message: sender and time are required")
	ErrInvalidChannelID   = errors.New("invalid conversation ID: cannot be empty")
	ErrOperationTimeout   = errors.New("operation timeout exceeded")
	ErrNotFound           = errors.New("conversation not found")
)

const (
	// Timeouts
	defaultWriteTimeout = 5 * time.Second
	defaultReadTimeout  = 30 * time.Second

	// Retry configuration
	maxRetries     = 3
	baseRetryDelay = 100 * time.Millisecond
	maxRetryDelay  = 2 * time.Second

	messagesCollection      = "messages"
	conversationsCollection = "conversations"
)

// MessageStore is the source of message histories
type MessageStore interface {
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)
	AppendMessage(ctx context.Context, conversationID string, msg model.Message) error
	// MarkRead flags every unread message from sender as read (all senders when nil) and
	// returns how many changed
	MarkRead(ctx context.Context, conversationID string, sender *model.Sender) (int, error)
}

// ConversationStore keeps conversation metadata
type ConversationStore interface {
	Save(ctx context.Context, conv model.ConversationMetadata) error
	Get(ctx context.Context, id string) (model.ConversationMetadata, error)
	List(ctx context.Context, query ConversationQuery, params db.PaginationParams) (*db.PaginatedResult[model.ConversationMetadata], error)
}

// ConversationQuery narrows List; zero values match everything
type ConversationQuery struct {
	Locations []model.Location
	Priority  model.Priority
}

// Matches applies the query to one conversation, as the Mongo filter does
func (q ConversationQuery) Matches(conv model.ConversationMetadata) bool {
	if q.Priority != "" && conv.Priority != q.Priority {
		return false
	}
	if len(q.Locations) == 0 {
		return true
	}
	for _, loc := range q.Locations {
		if conv.Status == loc {
			return true
		}
	}
	return false
}

func validateMessage(conversationID string, msg model.Message) error {
	if conversationID == "" {
		return ErrInvalidChannelID
	}
	if msg.Sender == "" || msg.Time == "" {
		return ErrInvalidMessage
	}
	return nil
}

// withRetry runs fn until it succeeds, fails with a non transient error or runs out of attempts
func withRetry[T any](ctx context.Context, logger *zap.Logger, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := waitForRetry(ctx, attempt); err != nil {
				return zero, err
			}
			logger.Warn("retrying operation",
				zap.String("op", op),
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", maxRetries),
			)
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		// Don't retry on context cancellation or non-retryable errors
		if !isRetryableError(err) {
			return zero, err
		}
	}
	return zero, fmt.Errorf("%w: %v", ErrMaxRetriesExceeded, lastErr)
}

func ensureTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hadDeadline := ctx.Deadline(); hadDeadline {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func waitForRetry(ctx context.Context, attempt int) error {
	delay := time.Duration(1<<uint(attempt)) * baseRetryDelay
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("retry wait cancelled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Context errors are not retryable
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	return mongo.IsTimeout(err) || mongo.IsNetworkError(err)
}

func handleReadError(logger *zap.Logger, err error, conversationID string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		logger.Error("read timeout", zap.String("conversation_id", conversationID))
		return ErrOperationTimeout
	}
	if errors.Is(err, context.Canceled) {
		logger.Debug("read cancelled", zap.String("conversation_id", conversationID))
		return err
	}
	logger.Error("read failed", zap.Error(err), zap.String("conversation_id", conversationID))
	return fmt.Errorf("read %s: %w", conversationID, err)
}
