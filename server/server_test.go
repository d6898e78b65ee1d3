// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"testing"
	"time"

	"github.com/go-a2a/orchestra"
	"github.com/go-a2a/orchestra/agent"
	"github.com/go-a2a/orchestra/server/event"
	"github.com/go-a2a/orchestra/server/handler"
)

func newServerFixture(t *testing.T) (*Server, *event.Bus) {
	t.Helper()

	bus, err := event.NewBus(event.BusConfig{MaxSize: 100, SweepInterval: time.Hour})
	if err != nil {
		t.Fatalf("NewBus: %v", err)
	}
	t.Cleanup(func() { bus.Close() })

	coordinator := agent.NewCoordinator(agent.CoordinatorConfig{})
	h, err := handler.New(handler.Config{Executor: coordinator, Bus: bus})
	if err != nil {
		t.Fatalf("handler.New: %v", err)
	}
	t.Cleanup(func() { h.Close() })

	s, err := New(Config{
		Bus:               bus,
		Coordinator:       coordinator,
		Handler:           h,
		HeartbeatInterval: 5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, bus
}

func registerEchoAgent(t *testing.T, s *Server, domain string) {
	t.Helper()

	a, err := agent.NewDomainAgent(agent.DomainAgentConfig{
		Domain: domain,
		Processor: agent.ProcessorFunc(func(ctx context.Context, userInput string, history []orchestra.HistoryEntry, additional map[string]any) (string, error) {
			return "ok", nil
		}),
	})
	if err != nil {
		t.Fatalf("NewDomainAgent: %v", err)
	}
	if err := s.RegisterAgent(context.Background(), domain, a, nil); err != nil {
		t.Fatalf("RegisterAgent: %v", err)
	}
}

func TestRegisterAgentAnnounces(t *testing.T) {
	t.Parallel()
	s, bus := newServerFixture(t)

	registerEchoAgent(t, s, agent.DomainCropping)

	stats := bus.Stats()
	if got := stats.EventTypeCounts[orchestra.EventTypeAgentRegistration]; got != 1 {
		t.Errorf("registration events = %d, want 1", got)
	}
}

func TestHeartbeatLoopPublishes(t *testing.T) {
	t.Parallel()
	s, bus := newServerFixture(t)
	registerEchoAgent(t, s, agent.DomainCropping)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.heartbeatLoop(ctx)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if bus.Stats().EventTypeCounts[orchestra.EventTypeAgentHeartbeat] > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no heartbeat published")
}

func TestHeartbeatLoopSurvivesPublishFailure(t *testing.T) {
	t.Parallel()
	s, bus := newServerFixture(t)
	registerEchoAgent(t, s, agent.DomainCropping)

	// Every publish fails once the bus is closed; the loop must keep ticking
	// until its context is cancelled.
	bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.heartbeatLoop(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("heartbeat loop stopped after a failed publish")
	default:
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("heartbeat loop did not stop on cancellation")
	}
}
