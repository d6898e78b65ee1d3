// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-a2a/orchestra"
	"github.com/go-a2a/orchestra/server/event"
)

func newTestBus(t *testing.T) *event.Bus {
	t.Helper()
	bus, err := event.NewBus(event.BusConfig{MaxSize: 100, SweepInterval: time.Hour})
	if err != nil {
		t.Fatalf("NewBus: %v", err)
	}
	t.Cleanup(func() { bus.Close() })
	return bus
}

func statusEvent(contextID, taskID string, state orchestra.TaskState, final bool) *orchestra.TaskStatusUpdateEvent {
	return &orchestra.TaskStatusUpdateEvent{
		EventMeta: orchestra.NewEventMeta(contextID, "test-agent"),
		TaskID:    taskID,
		Status: orchestra.TaskStatus{
			State:   state,
			Message: orchestra.NewAgentTextMessage(string(state), contextID, taskID, "test-agent"),
		},
		Final: final,
	}
}

func TestStreamReplaysBufferedEvents(t *testing.T) {
	t.Parallel()
	bus := newTestBus(t)

	// Events published before the stream attaches.
	bus.Publish(context.Background(), statusEvent("ctx-1", "task-1", orchestra.TaskStateWorking, false))
	time.Sleep(2 * time.Millisecond)
	bus.Publish(context.Background(), statusEvent("ctx-1", "task-1", orchestra.TaskStateCompleted, true))

	s := New(bus, "ctx-1", Config{})
	defer s.Close()

	var states []orchestra.TaskState
	err := s.Run(context.Background(), func(ev orchestra.Event) error {
		if update, ok := ev.(*orchestra.TaskStatusUpdateEvent); ok {
			states = append(states, update.Status.State)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(states) != 2 || states[0] != orchestra.TaskStateWorking || states[1] != orchestra.TaskStateCompleted {
		t.Errorf("replayed states = %v, want [working completed]", states)
	}
}

func TestStreamDeliversLiveEvents(t *testing.T) {
	t.Parallel()
	bus := newTestBus(t)

	s := New(bus, "ctx-1", Config{})
	defer s.Close()

	go func() {
		bus.Publish(context.Background(), statusEvent("ctx-1", "task-1", orchestra.TaskStateWorking, false))
		bus.Publish(context.Background(), statusEvent("ctx-1", "task-1", orchestra.TaskStateCompleted, true))
	}()

	var count int
	err := s.Run(context.Background(), func(ev orchestra.Event) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if count != 2 {
		t.Errorf("delivered %d events, want 2", count)
	}
}

func TestStreamDeliversExactlyOnce(t *testing.T) {
	t.Parallel()
	bus := newTestBus(t)

	// Buffered before attach; the live subscription and the poll loop must
	// not deliver it again.
	bus.Publish(context.Background(), statusEvent("ctx-1", "task-1", orchestra.TaskStateWorking, false))

	s := New(bus, "ctx-1", Config{PollInterval: time.Millisecond})
	defer s.Close()

	seen := make(map[string]int)
	go func() {
		time.Sleep(20 * time.Millisecond)
		bus.Publish(context.Background(), statusEvent("ctx-1", "task-1", orchestra.TaskStateCompleted, true))
	}()

	err := s.Run(context.Background(), func(ev orchestra.Event) error {
		seen[ev.Meta().ID]++
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	for id, n := range seen {
		if n != 1 {
			t.Errorf("event %s delivered %d times", id, n)
		}
	}
	if len(seen) != 2 {
		t.Errorf("delivered %d distinct events, want 2", len(seen))
	}
}

func TestStreamWaitBudgetExpires(t *testing.T) {
	t.Parallel()
	bus := newTestBus(t)

	s := New(bus, "ctx-1", Config{WaitBudget: 50 * time.Millisecond})
	defer s.Close()

	err := s.Run(context.Background(), func(ev orchestra.Event) error { return nil })
	if !errors.Is(err, ErrStillProcessing) {
		t.Errorf("Run = %v, want ErrStillProcessing", err)
	}
}

func TestStreamStopsOnConsumerError(t *testing.T) {
	t.Parallel()
	bus := newTestBus(t)

	bus.Publish(context.Background(), statusEvent("ctx-1", "task-1", orchestra.TaskStateWorking, false))

	s := New(bus, "ctx-1", Config{})
	defer s.Close()

	sentinel := errors.New("stop here")
	err := s.Run(context.Background(), func(ev orchestra.Event) error { return sentinel })
	if !errors.Is(err, sentinel) {
		t.Errorf("Run = %v, want the consumer's error", err)
	}
}

func TestStreamContextCancellation(t *testing.T) {
	t.Parallel()
	bus := newTestBus(t)

	s := New(bus, "ctx-1", Config{})
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Run(ctx, func(ev orchestra.Event) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
}

func TestStreamPausedStateIsNotTerminal(t *testing.T) {
	t.Parallel()
	bus := newTestBus(t)

	// A final waiting_for_handoff hands the task to another agent; the stream
	// keeps waiting for the eventual terminal state.
	bus.Publish(context.Background(), statusEvent("ctx-1", "task-1", orchestra.TaskStateWaitingForHandoff, true))

	s := New(bus, "ctx-1", Config{WaitBudget: 50 * time.Millisecond})
	defer s.Close()

	var delivered int
	err := s.Run(context.Background(), func(ev orchestra.Event) error {
		delivered++
		return nil
	})
	if !errors.Is(err, ErrStillProcessing) {
		t.Errorf("Run = %v, want ErrStillProcessing", err)
	}
	if delivered != 1 {
		t.Errorf("delivered = %d, want 1", delivered)
	}
}

func TestNewFrameProjections(t *testing.T) {
	t.Parallel()

	status := statusEvent("ctx-1", "task-1", orchestra.TaskStateCompleted, true)
	frame := NewFrame("session-1", status)
	if frame.SessionID != "session-1" || frame.ContextID != "ctx-1" {
		t.Errorf("frame identity = %+v", frame)
	}
	if frame.Type != orchestra.EventTypeTaskStatusUpdate {
		t.Errorf("frame type = %s", frame.Type)
	}
	if frame.State != orchestra.TaskStateCompleted || !frame.IsComplete {
		t.Errorf("frame status = %+v", frame)
	}
	if frame.Content != "completed" || frame.Agent != "test-agent" {
		t.Errorf("frame message = %+v", frame)
	}

	artifact := &orchestra.TaskArtifactUpdateEvent{
		EventMeta: orchestra.NewEventMeta("ctx-1", "test-agent"),
		TaskID:    "task-1",
		Artifact:  orchestra.NewTextArtifact("response", "desc", "hello", "task-1"),
		LastChunk: true,
	}
	frame = NewFrame("session-1", artifact)
	if frame.Artifact == nil || frame.Artifact.Name != "response" || frame.Artifact.Content != "hello" {
		t.Errorf("artifact frame = %+v", frame.Artifact)
	}

	handoff := &orchestra.AgentHandoffEvent{
		EventMeta: orchestra.NewEventMeta("ctx-1", "cropping_agent"),
		TaskID:    "task-1",
		FromAgent: "cropping_agent",
		ToAgent:   "background_agent",
		Reason:    "needs background work",
	}
	frame = NewFrame("session-1", handoff)
	if frame.Agent != "background_agent" || frame.Content != "needs background work" {
		t.Errorf("handoff frame = %+v", frame)
	}
}

func TestWriteSSE(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	frame := NewFrame("session-1", statusEvent("ctx-1", "task-1", orchestra.TaskStateWorking, false))
	if err := WriteSSE(&sb, frame); err != nil {
		t.Fatalf("WriteSSE: %v", err)
	}

	got := sb.String()
	if !strings.HasPrefix(got, "data: {") {
		t.Errorf("frame prefix = %q", got)
	}
	if !strings.HasSuffix(got, "\n\n") {
		t.Error("frame must end with a blank line")
	}
	if !strings.Contains(got, `"contextId":"ctx-1"`) {
		t.Errorf("frame payload = %q", got)
	}
}
