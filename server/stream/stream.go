// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-a2a/orchestra"
	"github.com/go-a2a/orchestra/server/event"
)

const (
	// DefaultWaitBudget is the default overall time a stream waits for its
	// terminal event.
	DefaultWaitBudget = 30 * time.Second

	// DefaultPollInterval is how often the stream re-queries the bus buffer
	// for events the live subscription may have missed.
	DefaultPollInterval = 100 * time.Millisecond

	// defaultChannelBuffer bounds the live delivery channel. Events beyond
	// the buffer are picked up by the next poll.
	defaultChannelBuffer = 64
)

// ErrStillProcessing is returned when the wait budget expires before a
// terminal event arrives. The task keeps running; the consumer can re-attach
// or poll the task store.
var ErrStillProcessing = errors.New("still processing")

// Stream is a push-based consumer of one context's events.
type Stream struct {
	bus       *event.Bus
	contextID string

	sub     *event.Subscription
	live    chan orchestra.Event
	seen    map[string]struct{}
	seenMu  sync.Mutex
	budget  time.Duration
	poll    time.Duration
	logger  *slog.Logger
	closed  chan struct{}
	closeMu sync.Once
}

// Config holds configuration for a [Stream].
type Config struct {
	// WaitBudget bounds how long Run waits for a terminal event. Defaults
	// to DefaultWaitBudget.
	WaitBudget time.Duration

	// PollInterval is the fallback poll period. Defaults to
	// DefaultPollInterval.
	PollInterval time.Duration

	Logger *slog.Logger
}

// New attaches a stream to the bus for one context. Call Close when done;
// the subscription is not released automatically.
func New(bus *event.Bus, contextID string, config Config) *Stream {
	if config.WaitBudget <= 0 {
		config.WaitBudget = DefaultWaitBudget
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	s := &Stream{
		bus:       bus,
		contextID: contextID,
		live:      make(chan orchestra.Event, defaultChannelBuffer),
		seen:      make(map[string]struct{}),
		budget:    config.WaitBudget,
		poll:      config.PollInterval,
		logger:    config.Logger,
		closed:    make(chan struct{}),
	}

	s.sub = bus.SubscribeContext(contextID, s.onEvent)
	return s
}

// onEvent forwards a live event onto the delivery channel. A full channel is
// not an error: the poll loop re-reads the bus buffer and picks the event up
// there.
func (s *Stream) onEvent(ctx context.Context, ev orchestra.Event) {
	select {
	case <-s.closed:
	case s.live <- ev:
	default:
		s.logger.Debug("stream channel full, deferring to poll",
			slog.String("context_id", s.contextID),
			slog.String("event_id", ev.Meta().ID),
		)
	}
}

// markSeen records the event id, reporting whether it was new.
func (s *Stream) markSeen(id string) bool {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()

	if _, dup := s.seen[id]; dup {
		return false
	}
	s.seen[id] = struct{}{}
	return true
}

// isTerminal reports whether the event ends the stream: a final status
// update whose state admits no further transitions.
func isTerminal(ev orchestra.Event) bool {
	update, ok := ev.(*orchestra.TaskStatusUpdateEvent)
	return ok && update.Final && update.Status.State.IsTerminal()
}

// Run delivers each of the context's events to fn exactly once, in arrival
// order, until a terminal event has been delivered, the wait budget expires
// (ErrStillProcessing), fn returns an error, or ctx is cancelled. Events
// already buffered on the bus are delivered first.
func (s *Stream) Run(ctx context.Context, fn func(orchestra.Event) error) error {
	deadline := time.NewTimer(s.budget)
	defer deadline.Stop()

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	// Replay the buffer so a consumer attaching mid-task sees the events
	// published before the subscription existed.
	if done, err := s.drainBuffer(fn); done || err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrStillProcessing
		case ev := <-s.live:
			if !s.markSeen(ev.Meta().ID) {
				continue
			}
			if err := fn(ev); err != nil {
				return err
			}
			if isTerminal(ev) {
				return nil
			}
		case <-ticker.C:
			if done, err := s.drainBuffer(fn); done || err != nil {
				return err
			}
		}
	}
}

// drainBuffer delivers any unseen buffered events. It reports done when a
// terminal event was delivered.
func (s *Stream) drainBuffer(fn func(orchestra.Event) error) (bool, error) {
	buffered := s.bus.Query(s.contextID, nil, 0)
	// Query is most recent first; deliver oldest first.
	for i := len(buffered) - 1; i >= 0; i-- {
		ev := buffered[i]
		if !s.markSeen(ev.Meta().ID) {
			continue
		}
		if err := fn(ev); err != nil {
			return false, err
		}
		if isTerminal(ev) {
			return true, nil
		}
	}
	return false, nil
}

// Close releases the stream's bus subscription.
func (s *Stream) Close() {
	s.closeMu.Do(func() {
		close(s.closed)
		s.bus.Unsubscribe(s.sub)
	})
}
