// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package server assembles the orchestration service: the event bus, stores,
// coordinator and request handler behind a JSON HTTP surface with an SSE
// stream per conversation.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/go-a2a/orchestra"
	"github.com/go-a2a/orchestra/agent"
	"github.com/go-a2a/orchestra/server/agent_execution"
	"github.com/go-a2a/orchestra/server/event"
	"github.com/go-a2a/orchestra/server/handler"
	"github.com/go-a2a/orchestra/server/stream"
)

// DefaultHeartbeatInterval is how often registered agents are reported live.
const DefaultHeartbeatInterval = 30 * time.Second

// Server exposes the orchestration core over HTTP.
type Server struct {
	endpoint    string
	bus         *event.Bus
	coordinator *agent.Coordinator
	handler     *handler.DefaultRequestHandler
	streamCfg   stream.Config
	heartbeat   time.Duration

	mux        *http.ServeMux
	httpServer *http.Server

	logger *slog.Logger
	tracer trace.Tracer
}

// Config holds the collaborators of a [Server].
type Config struct {
	// Bus carries progress events. Required.
	Bus *event.Bus

	// Coordinator routes messages to domain agents. Required.
	Coordinator *agent.Coordinator

	// Handler accepts inbound requests. Required.
	Handler *handler.DefaultRequestHandler

	// StreamConfig tunes per-conversation event streams.
	StreamConfig stream.Config

	// HeartbeatInterval is how often agent heartbeats are published.
	// Defaults to DefaultHeartbeatInterval; negative disables heartbeats.
	HeartbeatInterval time.Duration
}

// New creates a server. Call Start to begin serving.
func New(config Config, opts ...Option) (*Server, error) {
	if config.Bus == nil {
		return nil, fmt.Errorf("event bus is required")
	}
	if config.Coordinator == nil {
		return nil, fmt.Errorf("coordinator is required")
	}
	if config.Handler == nil {
		return nil, fmt.Errorf("request handler is required")
	}
	if config.HeartbeatInterval == 0 {
		config.HeartbeatInterval = DefaultHeartbeatInterval
	}

	s := &Server{
		endpoint:    ":8080",
		bus:         config.Bus,
		coordinator: config.Coordinator,
		handler:     config.Handler,
		streamCfg:   config.StreamConfig,
		heartbeat:   config.HeartbeatInterval,
		mux:         http.NewServeMux(),
		logger:      slog.Default(),
		tracer:      noop.NewTracerProvider().Tracer("github.com/go-a2a/orchestra/server"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerHandlers()

	return s, nil
}

// RegisterAgent adds a domain agent to the coordinator and announces it on
// the bus.
func (s *Server) RegisterAgent(ctx context.Context, domain string, executor agent_execution.AgentExecutor, keywords []string) error {
	if err := s.coordinator.RegisterAgent(domain, executor, keywords); err != nil {
		return err
	}

	card := orchestra.AgentCard{
		Name:    executor.Name(),
		Version: orchestra.Version,
		Domains: executor.SupportedDomains(),
		Capabilities: orchestra.AgentCapabilities{
			Streaming:        true,
			HandoffSupported: true,
			ContextSharing:   true,
		},
	}
	return s.bus.Publish(ctx, &orchestra.AgentRegistrationEvent{
		EventMeta: orchestra.NewEventMeta("", executor.Name()),
		Card:      card,
	})
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start begins serving and publishing heartbeats. It blocks until the
// listener fails or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    s.endpoint,
		Handler: s.mux,
	}

	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	if s.heartbeat > 0 {
		go s.heartbeatLoop(heartbeatCtx)
	}

	s.logger.Info("server listening", slog.String("endpoint", s.endpoint))

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// heartbeatLoop periodically publishes a heartbeat for every registered
// domain agent.
func (s *Server) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, domain := range s.coordinator.Domains() {
				executor := s.coordinator.Agent(domain)
				if executor == nil {
					continue
				}
				if err := s.bus.Publish(ctx, &orchestra.AgentHeartbeatEvent{
					EventMeta: orchestra.NewEventMeta("", executor.Name()),
					Agent:     executor.Name(),
				}); err != nil {
					// A failed publish must not silence heartbeats for the
					// remaining agents or later ticks.
					s.logger.Warn("heartbeat publish failed",
						slog.String("agent", executor.Name()),
						slog.Any("error", err),
					)
				}
			}
		}
	}
}
