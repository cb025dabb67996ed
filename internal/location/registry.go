// Package location tracks where each conversation is handled: by the bot, in live chat or archived.
package location

import (
	"sync"
	"sync/atomic"
	"time"

	"Flort/internal/event"
	"Flort/internal/model"

	"go.uber.org/zap"
)

// Persister durably stores locations. Load seeds the registry at start; Save is called on every change.
type Persister interface {
	Load() (map[string]model.Location, error)
	Save(conversationID string, loc model.Location) error
}

// Recorder receives transition counters, implemented by the metrics package
type Recorder interface {
	LocationTransition(from, to string)
	PersistFailed()
}

// Snapshot is an immutable view of every explicitly set location
type Snapshot struct {
	entries map[string]model.Location
	version uint64
}

// Get returns the location of id, DefaultLocation when it was never set
func (s Snapshot) Get(id string) model.Location {
	if loc, ok := s.entries[id]; ok {
		return loc
	}
	return model.DefaultLocation
}

func (s Snapshot) Version() uint64 {
	return s.version
}

func (s Snapshot) Len() int {
	return len(s.entries)
}

// Range calls fn for every explicitly set entry until fn returns false
func (s Snapshot) Range(fn func(id string, loc model.Location) bool) {
	for id, loc := range s.entries {
		if !fn(id, loc) {
			return
		}
	}
}

// Registry maps conversation ids to locations. Reads never block; writes are serialized.
type Registry struct {
	writeMu sync.Mutex
	current atomic.Pointer[Snapshot]
	// outbox holds changes not yet handed to the bus, in version order; guarded by writeMu
	outbox    []event.LocationChanged
	releasing bool

	bus       *event.Bus[event.LocationChanged]
	persister Persister
	recorder  Recorder
	logger    *zap.Logger
	now       func() time.Time
}

type Option func(*Registry)

func WithPersister(p Persister) Option {
	return func(r *Registry) { r.persister = p }
}

func WithRecorder(rec Recorder) Option {
	return func(r *Registry) { r.recorder = rec }
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry builds an empty registry, seeded from the persister when one is given.
// A failing Load is returned; the registry is still usable and starts empty.
func NewRegistry(bus *event.Bus[event.LocationChanged], logger *zap.Logger, opts ...Option) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		bus:    bus,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	snap := &Snapshot{entries: map[string]model.Location{}}
	r.current.Store(snap)

	if r.persister == nil {
		return r, nil
	}
	seed, err := r.persister.Load()
	if err != nil {
		return r, err
	}
	for id, loc := range seed {
		snap.entries[id] = loc
	}
	r.logger.Info("locations loaded", zap.Int("count", len(seed)))
	return r, nil
}

// GetLocation never fails; unknown conversations are handled by the bot
func (r *Registry) GetLocation(id string) model.Location {
	return r.Snapshot().Get(id)
}

func (r *Registry) Snapshot() Snapshot {
	return *r.current.Load()
}

// SetLocation overwrites the location of id and reports whether it changed.
// Listeners are notified only on change, after the new snapshot is visible,
// and always in Version order even when writers race.
func (r *Registry) SetLocation(id string, loc model.Location) bool {
	r.writeMu.Lock()
	prev := r.current.Load()
	old := prev.Get(id)
	if old == loc {
		r.writeMu.Unlock()
		return false
	}

	entries := make(map[string]model.Location, len(prev.entries)+1)
	for k, v := range prev.entries {
		entries[k] = v
	}
	entries[id] = loc
	next := &Snapshot{entries: entries, version: prev.version + 1}
	r.current.Store(next)

	// persisted under the lock so the store sees writes in version order
	if r.persister != nil {
		if err := r.persister.Save(id, loc); err != nil {
			r.logger.Error("failed to persist location",
				zap.String("conversation_id", id),
				zap.String("location", string(loc)),
				zap.Error(err),
			)
			if r.recorder != nil {
				r.recorder.PersistFailed()
			}
		}
	}
	if r.bus != nil {
		r.outbox = append(r.outbox, event.LocationChanged{
			ConversationID: id,
			Previous:       old,
			Current:        loc,
			Version:        next.version,
			At:             r.now(),
		})
	}
	r.writeMu.Unlock()

	r.logger.Debug("location changed",
		zap.String("conversation_id", id),
		zap.String("from", string(old)),
		zap.String("to", string(loc)),
		zap.Uint64("version", next.version),
	)
	if r.recorder != nil {
		r.recorder.LocationTransition(string(old), string(loc))
	}
	r.release()
	return true
}

// release hands queued changes to the bus. One caller at a time releases;
// a writer arriving meanwhile, including a listener of the release in progress,
// leaves its change in the outbox for that caller.
func (r *Registry) release() {
	r.writeMu.Lock()
	if r.releasing {
		r.writeMu.Unlock()
		return
	}
	r.releasing = true
	for len(r.outbox) > 0 {
		batch := r.outbox
		r.outbox = nil
		r.writeMu.Unlock()

		for _, ev := range batch {
			r.bus.Publish(ev)
		}

		r.writeMu.Lock()
	}
	r.releasing = false
	r.writeMu.Unlock()
}

// Counts returns how many explicitly set conversations are in each location
func (r *Registry) Counts() map[model.Location]int {
	counts := map[model.Location]int{
		model.LocationBot:      0,
		model.LocationLiveChat: 0,
		model.LocationArchived: 0,
	}
	r.Snapshot().Range(func(_ string, loc model.Location) bool {
		counts[loc]++
		return true
	})
	return counts
}
