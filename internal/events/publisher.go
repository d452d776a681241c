// Package events fans committed workflow events out to in-process
// subscribers such as the daemon's audit logger.
package events

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tOgg1/leasedesk/internal/models"
)

// Handler receives one committed event.
type Handler func(ctx context.Context, event *models.Event)

// Filter selects events. Zero-valued fields match everything.
type Filter struct {
	Types      []models.EventType
	EntityType models.EntityType
	EntityID   string
	ActorID    string
}

// Match reports whether event passes the filter.
func (f Filter) Match(event *models.Event) bool {
	switch {
	case event == nil:
		return false
	case len(f.Types) > 0 && !slices.Contains(f.Types, event.Type):
		return false
	case f.EntityType != "" && event.EntityType != f.EntityType:
		return false
	case f.EntityID != "" && event.EntityID != f.EntityID:
		return false
	case f.ActorID != "" && event.ActorID != f.ActorID:
		return false
	}
	return true
}

// Publisher delivers the events of one committed transaction.
type Publisher interface {
	Publish(ctx context.Context, events ...*models.Event)
}

type subscriber struct {
	name    string
	filter  Filter
	handler Handler
}

// Bus is a synchronous in-process Publisher. Handlers run on the
// publishing goroutine, in subscription order, after the originating
// transaction has committed.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]subscriber
	order  []uint64
	logger zerolog.Logger
}

// NewBus creates an empty bus. Handler panics are logged to logger.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		subs:   make(map[uint64]subscriber),
		logger: logger,
	}
}

// Subscribe registers handler under name and returns a function that
// removes it. Calling the returned function more than once is harmless.
func (b *Bus) Subscribe(name string, filter Filter, handler Handler) func() {
	if handler == nil {
		panic("events: nil handler for subscriber " + name)
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[id] = subscriber{name: name, filter: filter, handler: handler}
	b.order = append(b.order, id)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
	b.order = slices.DeleteFunc(b.order, func(v uint64) bool { return v == id })
}

// Publish hands each event to every matching subscriber. A handler that
// panics is logged and skipped; the remaining handlers still run.
func (b *Bus) Publish(ctx context.Context, events ...*models.Event) {
	for _, event := range events {
		if event == nil {
			continue
		}
		for _, sub := range b.matching(event) {
			b.deliver(ctx, sub, event)
		}
	}
}

// matching snapshots the subscribers for event so handlers may subscribe
// or unsubscribe while being called.
func (b *Bus) matching(event *models.Event) []subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []subscriber
	for _, id := range b.order {
		if sub := b.subs[id]; sub.filter.Match(event) {
			out = append(out, sub)
		}
	}
	return out
}

func (b *Bus) deliver(ctx context.Context, sub subscriber, event *models.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("subscriber", sub.name).
				Str("event_id", event.ID).
				Str("type", string(event.Type)).
				Str("panic", fmt.Sprint(r)).
				Msg("event handler panicked")
		}
	}()
	sub.handler(ctx, event)
}

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close drops every subscriber.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[uint64]subscriber)
	b.order = nil
}

// LogHandler writes each event to logger as an audit line.
func LogHandler(logger zerolog.Logger) Handler {
	return func(ctx context.Context, event *models.Event) {
		logger.Info().
			Str("event_id", event.ID).
			Str("type", string(event.Type)).
			Str("entity_type", string(event.EntityType)).
			Str("entity_id", event.EntityID).
			Str("actor_id", event.ActorID).
			Msg("audit")
	}
}
