package notification

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"Flort/internal/event"
	"Flort/internal/feature"
	"Flort/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("n%d", n)
	}
}

func TestAddPrependsAndPublishes(t *testing.T) {
	broker := event.NewBroker(nil, nil)
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewCenter(feature.FromFlags(nil), broker, nil,
		WithClock(func() time.Time { return at }),
		WithIDs(sequentialIDs()),
	)

	var added []event.NotificationAdded
	broker.NotificationAdded.Subscribe(func(ev event.NotificationAdded) error {
		added = append(added, ev)
		return nil
	})

	first, ok := c.Add("Escalation", "u1 needs an operator", model.NotificationWarning)
	require.True(t, ok)
	second, ok := c.Add("Info", "digest", "")
	require.True(t, ok)

	assert.Equal(t, model.NotificationInfo, second.Type, "empty type defaults to info")
	assert.Equal(t, at, first.Timestamp)
	assert.False(t, first.Read)

	list := c.List()
	require.Len(t, list, 2)
	assert.Equal(t, "n2", list[0].ID, "newest first")
	assert.Equal(t, "n1", list[1].ID)
	assert.Equal(t, 2, c.UnreadCount())

	require.Len(t, added, 2)
	assert.Equal(t, first, added[0].Notification)
}

func TestDefaultIDsAreUUIDs(t *testing.T) {
	c := NewCenter(feature.FromFlags(nil), nil, nil)
	n, ok := c.Add("t", "m", model.NotificationSuccess)
	require.True(t, ok)
	_, err := uuid.Parse(n.ID)
	assert.NoError(t, err)
}

func TestAddIsNoopWhenDisabled(t *testing.T) {
	broker := event.NewBroker(nil, nil)
	c := NewCenter(feature.FromFlags(map[feature.Flag]bool{feature.NotificationsEnabled: false}), broker, nil)

	calls := 0
	broker.NotificationAdded.Subscribe(func(event.NotificationAdded) error { calls++; return nil })

	_, ok := c.Add("t", "m", model.NotificationError)
	assert.False(t, ok)
	assert.Empty(t, c.List())
	assert.Equal(t, 0, calls)
}

func TestMarkAsRead(t *testing.T) {
	broker := event.NewBroker(nil, nil)
	c := NewCenter(feature.FromFlags(nil), broker, nil, WithIDs(sequentialIDs()))

	var reads []event.NotificationRead
	broker.NotificationRead.Subscribe(func(ev event.NotificationRead) error {
		reads = append(reads, ev)
		return nil
	})

	c.Add("a", "", model.NotificationInfo)
	c.Add("b", "", model.NotificationInfo)
	before := c.List()

	assert.True(t, c.MarkAsRead("n1"))
	assert.False(t, c.MarkAsRead("n1"), "already read")
	assert.False(t, c.MarkAsRead("missing"))

	assert.Equal(t, 1, c.UnreadCount())
	assert.False(t, before[1].Read, "earlier snapshot unchanged")

	require.Len(t, reads, 1)
	assert.Equal(t, event.NotificationRead{IDs: []string{"n1"}, Unread: 1}, reads[0])
}

func TestMarkAllAsRead(t *testing.T) {
	c := NewCenter(feature.FromFlags(nil), nil, nil, WithIDs(sequentialIDs()))
	c.Add("a", "", model.NotificationInfo)
	c.Add("b", "", model.NotificationInfo)
	c.Add("c", "", model.NotificationInfo)
	c.MarkAsRead("n2")

	assert.Equal(t, 2, c.MarkAllAsRead())
	assert.Equal(t, 0, c.MarkAllAsRead())
	assert.Equal(t, 0, c.UnreadCount())
}

func TestConcurrentAdds(t *testing.T) {
	c := NewCenter(feature.FromFlags(nil), nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Add("t", "m", model.NotificationInfo)
		}()
	}
	wg.Wait()
	assert.Len(t, c.List(), 40)
	assert.Equal(t, 40, c.UnreadCount())
}
