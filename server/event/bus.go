// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/go-a2a/orchestra"
)

const (
	// DefaultMaxBufferSize is the default maximum number of buffered events.
	DefaultMaxBufferSize = 1000

	// DefaultEventTTL is the default time-to-live for buffered events.
	DefaultEventTTL = time.Hour

	// DefaultSweepInterval is how often expired events are swept.
	DefaultSweepInterval = 5 * time.Minute
)

// Callback is invoked for each matching event a subscriber receives.
// Callbacks run concurrently with each other; a panicking callback is
// recovered and logged, never propagated.
type Callback func(ctx context.Context, event orchestra.Event)

// Subscription is an opaque handle returned by Subscribe calls.
// Pass it to Unsubscribe when the consumer is done; subscriptions are never
// removed automatically.
type Subscription struct {
	id        string
	eventType orchestra.EventType
	contextID string
}

// Stats describes the current state of the bus.
type Stats struct {
	TotalEvents        int                        `json:"totalEvents"`
	MaxSize            int                        `json:"maxSize"`
	EventTypeCounts    map[orchestra.EventType]int `json:"eventTypeCounts"`
	ContextCounts      map[string]int             `json:"contextCounts"`
	TypeSubscribers    int                        `json:"typeSubscribers"`
	ContextSubscribers int                        `json:"contextSubscribers"`
	OldestEvent        time.Time                  `json:"oldestEvent,omitzero"`
	NewestEvent        time.Time                  `json:"newestEvent,omitzero"`
}

// Bus is an append-only, bounded, time-expiring log of events with
// push-based notification to subscribers. Publish never fails because of a
// slow or broken subscriber, and retention is best-effort: overflowed or
// expired events are dropped silently.
type Bus struct {
	mu          sync.RWMutex
	events      []orchestra.Event
	maxSize     int
	ttl         time.Duration
	byType      map[orchestra.EventType]map[string]Callback
	byContext   map[string]map[string]Callback
	sequences   map[string]uint64
	closed      bool
	sweepCancel context.CancelFunc
	sweepDone   chan struct{}
	logger      *slog.Logger
}

// BusConfig holds configuration for a [Bus].
type BusConfig struct {
	// MaxSize bounds the number of buffered events. Defaults to
	// DefaultMaxBufferSize when zero.
	MaxSize int

	// EventTTL is how long buffered events are retained. Defaults to
	// DefaultEventTTL when zero.
	EventTTL time.Duration

	// SweepInterval is how often the expiry sweep runs. Defaults to
	// DefaultSweepInterval when zero.
	SweepInterval time.Duration

	// Logger receives subscriber failures and sweep reports. Defaults to
	// slog.Default.
	Logger *slog.Logger
}

// NewBus creates an event bus and starts its background expiry sweep.
// Call Close to stop the sweep.
func NewBus(config BusConfig) (*Bus, error) {
	if config.MaxSize < 0 {
		return nil, ErrInvalidBufferSize
	}
	if config.MaxSize == 0 {
		config.MaxSize = DefaultMaxBufferSize
	}
	if config.EventTTL <= 0 {
		config.EventTTL = DefaultEventTTL
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = DefaultSweepInterval
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	sweepCtx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		events:      make([]orchestra.Event, 0, config.MaxSize),
		maxSize:     config.MaxSize,
		ttl:         config.EventTTL,
		byType:      make(map[orchestra.EventType]map[string]Callback),
		byContext:   make(map[string]map[string]Callback),
		sequences:   make(map[string]uint64),
		sweepCancel: cancel,
		sweepDone:   make(chan struct{}),
		logger:      config.Logger,
	}

	go b.sweepLoop(sweepCtx, config.SweepInterval)

	return b, nil
}

// Publish appends the event to the buffer, evicting the oldest event on
// overflow, then notifies every matching subscriber. Callbacks run
// concurrently; Publish returns after all of them have been attempted.
// A failing callback is logged and skipped for this event only.
func (b *Bus) Publish(ctx context.Context, ev orchestra.Event) error {
	if ev == nil {
		return ErrNilEvent
	}

	meta := ev.Meta()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBusClosed
	}

	// Stamp the per-context sequence before the event becomes visible.
	b.sequences[meta.ContextID]++
	meta.Sequence = b.sequences[meta.ContextID]

	if len(b.events) >= b.maxSize {
		drop := len(b.events) - b.maxSize + 1
		b.events = slices.Delete(b.events, 0, drop)
	}
	b.events = append(b.events, ev)

	callbacks := b.matchingCallbacksLocked(ev)
	b.mu.Unlock()

	b.notify(ctx, ev, callbacks)
	return nil
}

// matchingCallbacksLocked collects the callbacks registered for the event's
// type and context. Caller must hold b.mu.
func (b *Bus) matchingCallbacksLocked(ev orchestra.Event) []Callback {
	var callbacks []Callback
	for _, cb := range b.byType[ev.Kind()] {
		callbacks = append(callbacks, cb)
	}
	for _, cb := range b.byContext[ev.Meta().ContextID] {
		callbacks = append(callbacks, cb)
	}
	return callbacks
}

// notify dispatches the event to each callback on its own goroutine and
// waits until all of them return or panic.
func (b *Bus) notify(ctx context.Context, ev orchestra.Event, callbacks []Callback) {
	if len(callbacks) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, cb := range callbacks {
		wg.Add(1)
		go func(cb Callback) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("event subscriber panicked",
						slog.String("event_id", ev.Meta().ID),
						slog.String("event_type", string(ev.Kind())),
						slog.Any("panic", r),
					)
				}
			}()
			cb(ctx, ev)
		}(cb)
	}
	wg.Wait()
}

// SubscribeType registers a callback for all events of the given type.
func (b *Bus) SubscribeType(eventType orchestra.EventType, callback Callback) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription{id: uuid.NewString(), eventType: eventType}
	if b.byType[eventType] == nil {
		b.byType[eventType] = make(map[string]Callback)
	}
	b.byType[eventType][sub.id] = callback
	return sub
}

// SubscribeContext registers a callback for all events published for the
// given context id.
func (b *Bus) SubscribeContext(contextID string, callback Callback) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription{id: uuid.NewString(), contextID: contextID}
	if b.byContext[contextID] == nil {
		b.byContext[contextID] = make(map[string]Callback)
	}
	b.byContext[contextID][sub.id] = callback
	return sub
}

// Unsubscribe removes a subscription. It is a no-op for an unknown or
// already-removed handle.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if sub.contextID != "" {
		if subs := b.byContext[sub.contextID]; subs != nil {
			delete(subs, sub.id)
			if len(subs) == 0 {
				delete(b.byContext, sub.contextID)
			}
		}
		return
	}
	if subs := b.byType[sub.eventType]; subs != nil {
		delete(subs, sub.id)
		if len(subs) == 0 {
			delete(b.byType, sub.eventType)
		}
	}
}

// Query returns buffered events for a context, most recent first. types, if
// non-empty, restricts the result to those event types; limit, if positive,
// caps the number of events returned.
func (b *Bus) Query(contextID string, types []orchestra.EventType, limit int) []orchestra.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var matched []orchestra.Event
	for _, ev := range b.events {
		if ev.Meta().ContextID != contextID {
			continue
		}
		if len(types) > 0 && !slices.Contains(types, ev.Kind()) {
			continue
		}
		matched = append(matched, ev)
	}

	slices.SortStableFunc(matched, func(x, y orchestra.Event) int {
		return y.Meta().Timestamp.Compare(x.Meta().Timestamp)
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched
}

// ClearContext removes all buffered events for a context and returns the
// number removed. Used when a conversation is deleted.
func (b *Bus) ClearContext(contextID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	before := len(b.events)
	b.events = slices.DeleteFunc(b.events, func(ev orchestra.Event) bool {
		return ev.Meta().ContextID == contextID
	})
	delete(b.sequences, contextID)

	return before - len(b.events)
}

// Stats returns a snapshot of buffer and subscriber counts.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stats := Stats{
		TotalEvents:     len(b.events),
		MaxSize:         b.maxSize,
		EventTypeCounts: make(map[orchestra.EventType]int),
		ContextCounts:   make(map[string]int),
	}
	for _, ev := range b.events {
		stats.EventTypeCounts[ev.Kind()]++
		stats.ContextCounts[ev.Meta().ContextID]++

		ts := ev.Meta().Timestamp
		if stats.OldestEvent.IsZero() || ts.Before(stats.OldestEvent) {
			stats.OldestEvent = ts
		}
		if ts.After(stats.NewestEvent) {
			stats.NewestEvent = ts
		}
	}
	for _, subs := range b.byType {
		stats.TypeSubscribers += len(subs)
	}
	for _, subs := range b.byContext {
		stats.ContextSubscribers += len(subs)
	}
	return stats
}

// sweepLoop periodically drops events older than the configured TTL.
// It runs independent of publish and query traffic.
func (b *Bus) sweepLoop(ctx context.Context, interval time.Duration) {
	defer close(b.sweepDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := b.sweepExpired()
			if removed > 0 {
				b.logger.Debug("swept expired events", slog.Int("removed", removed))
			}
		}
	}
}

// sweepExpired removes events past the TTL and returns the count removed.
func (b *Bus) sweepExpired() int {
	cutoff := time.Now().Add(-b.ttl)

	b.mu.Lock()
	defer b.mu.Unlock()

	before := len(b.events)
	b.events = slices.DeleteFunc(b.events, func(ev orchestra.Event) bool {
		return ev.Meta().Timestamp.Before(cutoff)
	})
	return before - len(b.events)
}

// Close stops the background sweep and rejects further publishes.
// Buffered events remain queryable.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.sweepCancel()
	<-b.sweepDone
	return nil
}
