// Package notification keeps the operator notification feed.
package notification

import (
	"sync"
	"sync/atomic"
	"time"

	"Flort/internal/event"
	"Flort/internal/feature"
	"Flort/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Center stores notifications newest first. Every mutation swaps in a fresh slice.
type Center struct {
	writeMu sync.Mutex
	items   atomic.Pointer[[]model.Notification]

	gate   *feature.Gate
	added  *event.Bus[event.NotificationAdded]
	read   *event.Bus[event.NotificationRead]
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

type Option func(*Center)

func WithClock(now func() time.Time) Option {
	return func(c *Center) { c.now = now }
}

func WithIDs(newID func() string) Option {
	return func(c *Center) { c.newID = newID }
}

func NewCenter(gate *feature.Gate, broker *event.Broker, logger *zap.Logger, opts ...Option) *Center {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Center{
		gate:   gate,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	if broker != nil {
		c.added = broker.NotificationAdded
		c.read = broker.NotificationRead
	}
	for _, opt := range opts {
		opt(c)
	}
	empty := []model.Notification{}
	c.items.Store(&empty)
	return c
}

// Add posts a notification. When notifications are disabled nothing is stored and ok is false.
func (c *Center) Add(title, message string, typ model.NotificationType) (model.Notification, bool) {
	if !c.gate.IsEnabled(feature.NotificationsEnabled) {
		return model.Notification{}, false
	}
	if typ == "" {
		typ = model.NotificationInfo
	}

	n := model.Notification{
		ID:        c.newID(),
		Title:     title,
		Message:   message,
		Type:      typ,
		Timestamp: c.now(),
	}

	c.writeMu.Lock()
	prev := *c.items.Load()
	next := make([]model.Notification, 0, len(prev)+1)
	next = append(next, n)
	next = append(next, prev...)
	c.items.Store(&next)
	c.writeMu.Unlock()

	c.logger.Debug("notification added",
		zap.String("notification_id", n.ID),
		zap.String("type", string(n.Type)),
	)
	if c.added != nil {
		c.added.Publish(event.NotificationAdded{Notification: n})
	}
	return n, true
}

// MarkAsRead flags one notification. It returns false when id is unknown or already read.
func (c *Center) MarkAsRead(id string) bool {
	changed, unread := c.mark(func(n model.Notification) bool { return n.ID == id })
	if len(changed) == 0 {
		return false
	}
	c.publishRead(changed, unread)
	return true
}

// MarkAllAsRead flags every notification and returns how many changed
func (c *Center) MarkAllAsRead() int {
	changed, unread := c.mark(func(model.Notification) bool { return true })
	if len(changed) > 0 {
		c.publishRead(changed, unread)
	}
	return len(changed)
}

// List returns the notifications newest first; the slice must not be modified
func (c *Center) List() []model.Notification {
	return *c.items.Load()
}

func (c *Center) UnreadCount() int {
	return countUnread(c.List())
}

func (c *Center) mark(match func(model.Notification) bool) ([]string, int) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	prev := *c.items.Load()
	var changed []string
	next := make([]model.Notification, len(prev))
	for i, n := range prev {
		if !n.Read && match(n) {
			n.Read = true
			changed = append(changed, n.ID)
		}
		next[i] = n
	}
	if len(changed) == 0 {
		return nil, countUnread(prev)
	}
	c.items.Store(&next)
	return changed, countUnread(next)
}

func (c *Center) publishRead(ids []string, unread int) {
	if c.read != nil {
		c.read.Publish(event.NotificationRead{IDs: ids, Unread: unread})
	}
}

func countUnread(items []model.Notification) int {
	n := 0
	for _, it := range items {
		if !it.Read {
			n++
		}
	}
	return n
}
