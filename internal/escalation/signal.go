// Package escalation derives the "conversations waiting for an operator" view.
package escalation

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"Flort/internal/event"
	"Flort/internal/location"
	"Flort/internal/model"
	"Flort/internal/status"

	"go.uber.org/zap"
)

// Unresolved reports whether a conversation still needs an answer: a bot message is unread or
// the user spoke last.
func Unresolved(st model.ConversationStatus) bool {
	if st.HasUnreadMessages {
		return true
	}
	return st.LastMessageFrom != nil && *st.LastMessageFrom == model.SenderUser
}

// Pending returns the ids of live chat conversations whose status is unresolved, sorted.
// A conversation without a computed status is not pending.
func Pending(locs location.Snapshot, statuses status.Registry) []string {
	var ids []string
	locs.Range(func(id string, loc model.Location) bool {
		if loc != model.LocationLiveChat {
			return true
		}
		if st, ok := statuses.Get(id); ok && Unresolved(st) {
			ids = append(ids, id)
		}
		return true
	})
	sort.Strings(ids)
	return ids
}

func PendingEscalations(locs location.Snapshot, statuses status.Registry) int {
	return len(Pending(locs, statuses))
}

// Banner is the state of the escalation banner
type Banner struct {
	Count    int  `json:"count"`
	Disabled bool `json:"disabled"`
}

func (b Banner) IsVisible() bool {
	return b.Count > 0 && !b.Disabled
}

// Gauge receives the pending count, implemented by the metrics package
type Gauge interface {
	SetPendingEscalations(n int)
}

// Signal derives the banner from the location registry and the status store.
//
// State and PendingIDs are computed from the current snapshots on every call, so they are never
// stale once SetLocation or Update returns, even when the matching event is still queued on a bus
// drained by another goroutine. The event subscriptions only drive escalationChanged: after any
// input changes, the banner is published once it differs from the last published one, in order,
// by a single notifying goroutine at a time.
type Signal struct {
	locations *location.Registry
	statuses  *status.Store
	bus       *event.Bus[event.EscalationChanged]
	gauge     Gauge
	logger    *zap.Logger
	disabled  atomic.Bool

	mu            sync.Mutex
	since         map[string]time.Time // when each conversation last entered live chat
	dirty         bool
	notifying     bool
	lastPublished Banner // owned by the notifying goroutine
	unsubs        []func()
}

func NewSignal(locations *location.Registry, statuses *status.Store, broker *event.Broker, gauge Gauge, logger *zap.Logger) *Signal {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Signal{
		locations: locations,
		statuses:  statuses,
		gauge:     gauge,
		logger:    logger.Named("escalation"),
		since:     map[string]time.Time{},
	}

	if broker != nil {
		s.bus = broker.EscalationChanged
		s.unsubs = append(s.unsubs,
			broker.LocationChanged.Subscribe(func(ev event.LocationChanged) error {
				s.trackSince(ev)
				s.notify()
				return nil
			}),
			broker.StatusUpdated.Subscribe(func(event.StatusUpdated) error {
				s.notify()
				return nil
			}),
		)
	}
	s.notify()
	return s
}

// State returns the banner computed from the current snapshots
func (s *Signal) State() Banner {
	return Banner{Count: len(s.PendingIDs()), Disabled: s.disabled.Load()}
}

// Stats reports the banner for the monitor endpoint
func (s *Signal) Stats() model.EscalationStats {
	b := s.State()
	return model.EscalationStats{Pending: b.Count, Disabled: b.Disabled, Visible: b.IsVisible()}
}

// SetDisabled hides or shows the banner regardless of the count
func (s *Signal) SetDisabled(disabled bool) Banner {
	s.disabled.Store(disabled)
	s.notify()
	return s.State()
}

// PendingIDs returns the pending conversations, sorted
func (s *Signal) PendingIDs() []string {
	var (
		locs     location.Snapshot
		statuses status.Registry
	)
	if s.locations != nil {
		locs = s.locations.Snapshot()
	}
	if s.statuses != nil {
		statuses = s.statuses.Snapshot()
	}
	return Pending(locs, statuses)
}

// OldestPending returns when the longest waiting pending conversation entered live chat.
// Conversations restored from storage have no entry time and are ignored.
func (s *Signal) OldestPending() (time.Time, bool) {
	pending := s.PendingIDs()

	s.mu.Lock()
	defer s.mu.Unlock()

	var oldest time.Time
	found := false
	for _, id := range pending {
		at, ok := s.since[id]
		if !ok {
			continue
		}
		if !found || at.Before(oldest) {
			oldest, found = at, true
		}
	}
	return oldest, found
}

// Close detaches the signal from the broker
func (s *Signal) Close() {
	for _, u := range s.unsubs {
		u()
	}
}

func (s *Signal) trackSince(ev event.LocationChanged) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.Current == model.LocationLiveChat {
		s.since[ev.ConversationID] = ev.At
	} else {
		delete(s.since, ev.ConversationID)
	}
}

// notify marks the banner dirty. The first caller becomes the notifier and keeps publishing until
// no change arrived during its last pass; later and reentrant callers only mark it dirty.
func (s *Signal) notify() {
	s.mu.Lock()
	s.dirty = true
	if s.notifying {
		s.mu.Unlock()
		return
	}
	s.notifying = true

	for s.dirty {
		s.dirty = false
		s.mu.Unlock()

		s.publishIfChanged()

		s.mu.Lock()
	}
	s.notifying = false
	s.mu.Unlock()
}

func (s *Signal) publishIfChanged() {
	next := s.State()
	if s.gauge != nil {
		s.gauge.SetPendingEscalations(next.Count)
	}
	if next == s.lastPublished {
		return
	}
	s.lastPublished = next
	if s.bus == nil {
		return
	}

	s.logger.Debug("escalation banner changed",
		zap.Int("pending", next.Count),
		zap.Bool("disabled", next.Disabled),
	)
	s.bus.Publish(event.EscalationChanged{
		Pending:  next.Count,
		Disabled: next.Disabled,
		Visible:  next.IsVisible(),
	})
}
