// Package event provides the in-memory plugin.EventBus that carries monitor,
// agent and notification events between plugins and the websocket relay.
package event

import (
	"context"
	"sync"
	"time"

	"github.com/HerbHall/beacon/pkg/plugin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Compile-time interface guard.
var _ plugin.EventBus = (*Bus)(nil)

var (
	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "beacon",
			Name:      "events_published_total",
			Help:      "Events published on the internal bus.",
		},
		[]string{"topic"},
	)
	handlerPanics = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "beacon",
			Name:      "event_handler_panics_total",
			Help:      "Event handlers that panicked and were recovered.",
		},
		[]string{"topic"},
	)
)

func init() {
	prometheus.MustRegister(eventsPublished, handlerPanics)
}

// Bus is an in-memory event bus. Publish runs handlers in the caller's
// goroutine; PublishAsync gives each handler its own goroutine.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]handlerEntry // topic -> handlers
	allSubs  []handlerEntry
	nextID   uint64
	logger   *zap.Logger
}

type handlerEntry struct {
	id      uint64
	handler plugin.EventHandler
}

// NewBus creates a new in-memory event bus.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]handlerEntry),
		logger:   logger,
	}
}

// Publish dispatches an event synchronously to all matching handlers.
func (b *Bus) Publish(ctx context.Context, event plugin.Event) error {
	event = stamp(event)
	for _, h := range b.snapshot(event.Topic) {
		b.safeCall(ctx, h.handler, event)
	}
	return nil
}

// PublishAsync dispatches an event to every matching handler in its own
// goroutine. Handlers keep running after the publisher's context ends.
func (b *Bus) PublishAsync(ctx context.Context, event plugin.Event) {
	event = stamp(event)
	ctx = context.WithoutCancel(ctx)
	for _, h := range b.snapshot(event.Topic) {
		go b.safeCall(ctx, h.handler, event)
	}
}

// Subscribe registers a handler for a topic. Returns an unsubscribe function.
func (b *Bus) Subscribe(topic string, handler plugin.EventHandler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[topic] = append(b.handlers[topic], handlerEntry{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.handlers[topic] = remove(b.handlers[topic], id)
		if len(b.handlers[topic]) == 0 {
			delete(b.handlers, topic)
		}
	}
}

// SubscribeAll registers a handler for every topic. Returns an unsubscribe function.
func (b *Bus) SubscribeAll(handler plugin.EventHandler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.allSubs = append(b.allSubs, handlerEntry{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.allSubs = remove(b.allSubs, id)
	}
}

// snapshot copies the handlers for topic (topic subscribers first) so
// handlers may subscribe or unsubscribe while being called.
func (b *Bus) snapshot(topic string) []handlerEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]handlerEntry, 0, len(b.handlers[topic])+len(b.allSubs))
	out = append(out, b.handlers[topic]...)
	out = append(out, b.allSubs...)
	return out
}

func (b *Bus) safeCall(ctx context.Context, handler plugin.EventHandler, event plugin.Event) {
	defer func() {
		if r := recover(); r != nil {
			handlerPanics.WithLabelValues(event.Topic).Inc()
			b.logger.Error("event handler panicked",
				zap.String("topic", event.Topic),
				zap.String("source", event.Source),
				zap.Any("panic", r),
			)
		}
	}()
	handler(ctx, event)
}

func stamp(event plugin.Event) plugin.Event {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	eventsPublished.WithLabelValues(event.Topic).Inc()
	return event
}

func remove(entries []handlerEntry, id uint64) []handlerEntry {
	for i, e := range entries {
		if e.id == id {
			return append(entries[:i:i], entries[i+1:]...)
		}
	}
	return entries
}
