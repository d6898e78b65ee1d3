// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package agent_execution

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

func newTestRequestContext(content string) *RequestContext {
	c := orchestra.NewContext("session-1", "user-1", nil)
	msg := orchestra.NewAgentTextMessage(content, c.ID, "", "user")
	reqCtx := NewRequestContext(msg, c)
	task := orchestra.NewTask(msg)
	task.ContextID = c.ID
	return reqCtx.WithTask(task)
}

func lastStatus(t *testing.T, bus *event.Bus, contextID string) *orchestra.TaskStatusUpdateEvent {
	t.Helper()
	events := bus.Query(contextID, []orchestra.EventType{orchestra.EventTypeTaskStatusUpdate}, 1)
	if len(events) == 0 {
		t.Fatal("no status update published")
	}
	status, ok := events[0].(*orchestra.TaskStatusUpdateEvent)
	if !ok {
		t.Fatalf("unexpected event type %T", events[0])
	}
	return status
}

func TestGuardContainsErrors(t *testing.T) {
	t.Parallel()
	bus := newTestBus(t)
	reqCtx := newTestRequestContext("do work")
	base := NewBaseExecutor("test-agent", []string{"testing"}, nil)

	implErr := errors.New("backend unavailable")
	err := base.Guard(context.Background(), reqCtx, bus, func(ctx context.Context, rc *RequestContext, b *event.Bus) error {
		return implErr
	})
	if err != nil {
		t.Fatalf("Guard should swallow implementation errors, got %v", err)
	}

	status := lastStatus(t, bus, reqCtx.Context.ID)
	if status.Status.State != orchestra.TaskStateFailed {
		t.Errorf("state = %s, want failed", status.Status.State)
	}
	if !status.Final {
		t.Error("failure status should be final")
	}
	if status.Status.ErrorDetails != implErr.Error() {
		t.Errorf("error details = %q", status.Status.ErrorDetails)
	}
	if !strings.Contains(status.Status.Message.Content, "I apologize, but I encountered an error") {
		t.Errorf("message = %q", status.Status.Message.Content)
	}

	stats := base.Stats()
	if stats.ExecutionCount != 1 || stats.ErrorCount != 1 {
		t.Errorf("counters = %d/%d, want 1/1", stats.ExecutionCount, stats.ErrorCount)
	}
	if stats.ErrorRate != 1.0 {
		t.Errorf("error rate = %f, want 1.0", stats.ErrorRate)
	}
}

func TestGuardContainsPanics(t *testing.T) {
	t.Parallel()
	bus := newTestBus(t)
	reqCtx := newTestRequestContext("do work")
	base := NewBaseExecutor("test-agent", []string{"testing"}, nil)

	err := base.Guard(context.Background(), reqCtx, bus, func(ctx context.Context, rc *RequestContext, b *event.Bus) error {
		panic("boom")
	})
	if err != nil {
		t.Fatalf("Guard should contain panics, got %v", err)
	}

	status := lastStatus(t, bus, reqCtx.Context.ID)
	if status.Status.State != orchestra.TaskStateFailed {
		t.Errorf("state = %s, want failed", status.Status.State)
	}
	if !strings.Contains(status.Status.ErrorDetails, "boom") {
		t.Errorf("error details = %q", status.Status.ErrorDetails)
	}
}

func TestGuardSuccess(t *testing.T) {
	t.Parallel()
	bus := newTestBus(t)
	reqCtx := newTestRequestContext("do work")
	base := NewBaseExecutor("test-agent", []string{"testing"}, nil)

	if err := base.Guard(context.Background(), reqCtx, bus, func(ctx context.Context, rc *RequestContext, b *event.Bus) error {
		return nil
	}); err != nil {
		t.Fatalf("Guard: %v", err)
	}

	if got := bus.Query(reqCtx.Context.ID, nil, 0); len(got) != 0 {
		t.Errorf("successful impl published %d events via Guard, want 0", len(got))
	}
	stats := base.Stats()
	if stats.ExecutionCount != 1 || stats.ErrorCount != 0 {
		t.Errorf("counters = %d/%d, want 1/0", stats.ExecutionCount, stats.ErrorCount)
	}
}

func TestGuardFailureWithoutTask(t *testing.T) {
	t.Parallel()
	bus := newTestBus(t)
	reqCtx := newTestRequestContext("do work")
	reqCtx.Task = nil
	base := NewBaseExecutor("test-agent", []string{"testing"}, nil)

	if err := base.Guard(context.Background(), reqCtx, bus, func(ctx context.Context, rc *RequestContext, b *event.Bus) error {
		return errors.New("nope")
	}); err != nil {
		t.Fatalf("Guard: %v", err)
	}

	// Without a task there is nothing to publish a failure against.
	if got := bus.Query(reqCtx.Context.ID, nil, 0); len(got) != 0 {
		t.Errorf("published %d events without a task, want 0", len(got))
	}
}

func TestBaseExecutorCancel(t *testing.T) {
	t.Parallel()
	bus := newTestBus(t)
	reqCtx := newTestRequestContext("do work")
	base := NewBaseExecutor("test-agent", []string{"testing"}, nil)

	if err := base.Cancel(context.Background(), reqCtx, bus); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	status := lastStatus(t, bus, reqCtx.Context.ID)
	if status.Status.State != orchestra.TaskStateCancelled {
		t.Errorf("state = %s, want cancelled", status.Status.State)
	}
	if !status.Final {
		t.Error("cancelled status should be final")
	}
	if status.Status.Message.Content != "Task was cancelled" {
		t.Errorf("message = %q", status.Status.Message.Content)
	}

	// Without a task Cancel is a no-op.
	reqCtx.Task = nil
	if err := base.Cancel(context.Background(), reqCtx, bus); err != nil {
		t.Errorf("Cancel without task: %v", err)
	}
}

func TestBaseExecutorIdentity(t *testing.T) {
	t.Parallel()

	base := NewBaseExecutor("test-agent", nil, nil)
	if base.Name() != "test-agent" {
		t.Errorf("Name = %q", base.Name())
	}
	if domains := base.SupportedDomains(); len(domains) != 1 || domains[0] != "general" {
		t.Errorf("empty domains should default to general, got %v", domains)
	}
	if got := base.Confidence("anything"); got != DefaultConfidence {
		t.Errorf("Confidence = %f, want %f", got, DefaultConfidence)
	}
}

func TestRequestContextUserInput(t *testing.T) {
	t.Parallel()

	reqCtx := newTestRequestContext("  crop this image  ")
	if got := reqCtx.UserInput(); got != "crop this image" {
		t.Errorf("UserInput = %q", got)
	}
}

func TestRequestContextConversationHistory(t *testing.T) {
	t.Parallel()

	reqCtx := newTestRequestContext("hello")
	for _, content := range []string{"one", "two", "three", "four"} {
		reqCtx.Context.AppendHistory("user", content)
	}

	if got := reqCtx.ConversationHistory(0); len(got) != 4 {
		t.Errorf("unlimited history = %d entries, want 4", len(got))
	}
	tail := reqCtx.ConversationHistory(2)
	if len(tail) != 2 || tail[0].Content != "three" || tail[1].Content != "four" {
		t.Errorf("trailing history = %+v", tail)
	}
}

func TestRequestContextSharedData(t *testing.T) {
	t.Parallel()

	reqCtx := newTestRequestContext("hello")

	if got := reqCtx.Cart(); got != nil {
		t.Errorf("empty cart = %v, want nil", got)
	}
	reqCtx.SetCart([]any{"blue paint"})
	if got := reqCtx.Cart(); len(got) != 1 {
		t.Errorf("cart = %v", got)
	}

	if got := reqCtx.CustomerData(); len(got) != 0 {
		t.Errorf("empty customer data = %v, want empty map", got)
	}
	reqCtx.SetCustomerData(map[string]any{"discount_percentage": 10})
	if got := reqCtx.CustomerData(); got["discount_percentage"] != 10 {
		t.Errorf("customer data = %v", got)
	}
}

func TestRequestContextAdditionalData(t *testing.T) {
	t.Parallel()

	reqCtx := newTestRequestContext("hello")
	reqCtx.WithAdditionalData(map[string]any{"source": "api"})
	reqCtx.WithAdditionalData(map[string]any{"priority": "high"})

	if reqCtx.AdditionalData["source"] != "api" || reqCtx.AdditionalData["priority"] != "high" {
		t.Errorf("additional data = %v", reqCtx.AdditionalData)
	}
}
