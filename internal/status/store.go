package status

import (
	"sync/atomic"
	"time"

	"Flort/internal/event"
	"Flort/internal/model"

	"go.uber.org/zap"
)

// FallbackCounter counts messages ordered by the unparseable-time sentinel
type FallbackCounter interface {
	TimestampFallback(n int)
}

// Store holds the current Registry snapshot. Readers never lock; writers swap a fresh snapshot.
type Store struct {
	current atomic.Pointer[Registry]
	bus     *event.Bus[event.StatusUpdated]
	logger  *zap.Logger
	counter FallbackCounter
	now     func() time.Time
}

type StoreOption func(*Store)

// WithClock overrides time.Now, used by tests
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func WithFallbackCounter(c FallbackCounter) StoreOption {
	return func(s *Store) { s.counter = c }
}

func NewStore(bus *event.Bus[event.StatusUpdated], logger *zap.Logger, opts ...StoreOption) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		bus:    bus,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	empty := NewRegistry()
	s.current.Store(&empty)
	return s
}

// Snapshot returns the current registry; it never changes after being returned
func (s *Store) Snapshot() Registry {
	return *s.current.Load()
}

// Get is a shortcut for Snapshot().Get
func (s *Store) Get(userID, botID string) (model.ConversationStatus, bool) {
	return s.Snapshot().Get(model.ConversationID(userID, botID))
}

// Update recomputes the status of one conversation from its full message list and publishes it
func (s *Store) Update(userID, botID string, messages []model.Message) model.ConversationStatus {
	id := model.ConversationID(userID, botID)

	res := DetermineStatus(messages)
	if res.Unparseable > 0 {
		s.logger.Debug("unparseable message times sorted as oldest",
			zap.String("conversation_id", id),
			zap.Int("count", res.Unparseable),
		)
		if s.counter != nil {
			s.counter.TimestampFallback(res.Unparseable)
		}
	}

	st := res.Status(s.now())
	for {
		prev := s.current.Load()
		next := prev.with(id, st)
		if s.current.CompareAndSwap(prev, &next) {
			break
		}
	}

	if s.bus != nil {
		s.bus.Publish(event.StatusUpdated{
			ConversationID: id,
			UserID:         userID,
			BotID:          botID,
			Status:         st,
		})
	}
	return st
}
