package event

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Listener receives one event. A returned error (or a panic) is isolated by the bus.
type Listener[T any] func(T) error

// Observer receives bus counters; implemented by the metrics package
type Observer interface {
	EventPublished(topic string)
	ListenerFailed(topic string)
}

// ListenerError is logged when a listener fails during publish. It never reaches the publisher.
type ListenerError struct {
	Topic        string
	Subscription uint64
	Err          error
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("listener %d on topic %s failed: %v", e.Subscription, e.Topic, e.Err)
}

func (e *ListenerError) Unwrap() error {
	return e.Err
}

type subscription[T any] struct {
	id       uint64
	listener Listener[T]
}

type delivery[T any] struct {
	event T
	subs  []*subscription[T]
}

// Bus is a synchronous in-process publish/subscribe channel for one topic.
//
// Listeners are called in registration order. The listener set is captured when Publish is called,
// so a listener added later never sees the event and one removed earlier is never called.
// Publishes made while a delivery is running (from a listener, or from another goroutine) are queued
// and drained in publish order by the goroutine already delivering. Such a Publish returns before its
// listeners run, so state derived by a listener may lag the publisher; read current state from its
// source instead.
type Bus[T any] struct {
	topic    string
	logger   *zap.Logger
	observer Observer

	mu       sync.Mutex
	subs     []*subscription[T] // copy-on-write
	nextID   uint64
	queue    []delivery[T]
	draining bool
}

func NewBus[T any](topic string, logger *zap.Logger, observer Observer) *Bus[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus[T]{
		topic:    topic,
		logger:   logger.With(zap.String("topic", topic)),
		observer: observer,
	}
}

func (b *Bus[T]) Topic() string {
	return b.topic
}

// Subscribe registers listener and returns a function removing exactly this registration.
// The returned function is idempotent.
func (b *Bus[T]) Subscribe(listener Listener[T]) func() {
	b.mu.Lock()
	b.nextID++
	sub := &subscription[T]{id: b.nextID, listener: listener}
	subs := make([]*subscription[T], len(b.subs), len(b.subs)+1)
	copy(subs, b.subs)
	b.subs = append(subs, sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(sub) })
	}
}

func (b *Bus[T]) remove(sub *subscription[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := make([]*subscription[T], 0, len(b.subs))
	for _, s := range b.subs {
		if s != sub {
			subs = append(subs, s)
		}
	}
	b.subs = subs
}

// Subscribers returns the number of current registrations
func (b *Bus[T]) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Publish delivers ev to every listener registered at this moment.
func (b *Bus[T]) Publish(ev T) {
	b.mu.Lock()
	b.queue = append(b.queue, delivery[T]{event: ev, subs: b.subs})
	if b.draining {
		b.mu.Unlock()
		return
	}
	b.draining = true

	for len(b.queue) > 0 {
		d := b.queue[0]
		b.queue[0] = delivery[T]{}
		b.queue = b.queue[1:]
		b.mu.Unlock()

		b.deliver(d)

		b.mu.Lock()
	}
	b.queue = nil
	b.draining = false
	b.mu.Unlock()
}

func (b *Bus[T]) deliver(d delivery[T]) {
	if b.observer != nil {
		b.observer.EventPublished(b.topic)
	}
	for _, sub := range d.subs {
		if err := b.call(sub, d.event); err != nil {
			b.fail(sub, err)
		}
	}
}

func (b *Bus[T]) call(sub *subscription[T], ev T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return sub.listener(ev)
}

func (b *Bus[T]) fail(sub *subscription[T], err error) {
	lerr := &ListenerError{Topic: b.topic, Subscription: sub.id, Err: err}
	b.logger.Error("listener failed",
		zap.Uint64("subscription", sub.id),
		zap.Error(lerr),
	)
	if b.observer != nil {
		b.observer.ListenerFailed(b.topic)
	}
}
