// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/go-a2a/orchestra"
	"github.com/go-a2a/orchestra/server/agent_execution"
	"github.com/go-a2a/orchestra/server/handler"
	"github.com/go-a2a/orchestra/server/stream"
)

// errFinalStatus stops the synchronous wait loop once a final status has
// been captured.
var errFinalStatus = errors.New("final status received")

// ChatRequest is the body of a chat submission.
type ChatRequest struct {
	Message   string         `json:"message"`
	SessionID string         `json:"sessionId,omitempty"`
	UserID    string         `json:"userId,omitempty"`
	ContextID string         `json:"contextId,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ChatResponse is the synchronous reply to a chat submission.
type ChatResponse struct {
	TaskID        string `json:"taskId,omitempty"`
	ContextID     string `json:"contextId"`
	MessageID     string `json:"messageId"`
	SessionID     string `json:"sessionId"`
	AgentID       string `json:"agentId"`
	Content       string `json:"content"`
	IsComplete    bool   `json:"isComplete"`
	RequiresInput bool   `json:"requiresInput"`
}

func (s *Server) registerHandlers() {
	s.mux.HandleFunc("POST /a2a/chat/message", s.handleChatMessage)
	s.mux.HandleFunc("POST /a2a/chat/stream", s.handleChatStream)
	s.mux.HandleFunc("GET /a2a/chat/tasks/{id}", s.handleGetTask)
	s.mux.HandleFunc("GET /a2a/chat/contexts/{id}/history", s.handleContextHistory)
	s.mux.HandleFunc("DELETE /a2a/chat/contexts/{id}", s.handleClearContext)
	s.mux.HandleFunc("GET /a2a/agent/capabilities", s.handleCapabilities)
	s.mux.HandleFunc("GET /a2a/stats", s.handleStats)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
}

// submit validates and launches the request, defaulting the session id.
func (s *Server) submit(r *http.Request) (*ChatRequest, *agent_execution.RequestContext, error) {
	var req ChatRequest
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, nil, err
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	reqCtx, err := s.handler.HandleRequest(r.Context(), &handler.Request{
		Message:        req.Message,
		SessionID:      req.SessionID,
		UserID:         req.UserID,
		ContextID:      req.ContextID,
		AdditionalData: req.Metadata,
	})
	if err != nil {
		return nil, nil, err
	}
	return &req, reqCtx, nil
}

// handleChatMessage accepts a message and blocks until the task reaches a
// final status or the stream wait budget expires.
func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "server.handleChatMessage")
	defer span.End()

	req, reqCtx, err := s.submit(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := ChatResponse{
		ContextID:     reqCtx.Context.ID,
		MessageID:     reqCtx.Message.ID,
		SessionID:     req.SessionID,
		AgentID:       "system",
		Content:       "Request is still processing. Poll the task for its result.",
		RequiresInput: true,
	}
	if reqCtx.Task != nil {
		resp.TaskID = reqCtx.Task.ID
	}

	consumer := stream.New(s.bus, reqCtx.Context.ID, s.streamCfg)
	defer consumer.Close()

	err = consumer.Run(ctx, func(ev orchestra.Event) error {
		update, ok := ev.(*orchestra.TaskStatusUpdateEvent)
		if !ok || !update.Final {
			return nil
		}
		resp.TaskID = update.TaskID
		resp.IsComplete = update.Status.State == orchestra.TaskStateCompleted
		resp.RequiresInput = update.Status.State == orchestra.TaskStateInputRequired || update.Status.State == orchestra.TaskStateWaitingForHandoff
		if update.Status.Message != nil {
			resp.Content = update.Status.Message.Content
			resp.AgentID = update.Status.Message.AgentID
		}
		// The first final status answers the synchronous call.
		return errFinalStatus
	})
	if err != nil && !errors.Is(err, stream.ErrStillProcessing) && !errors.Is(err, errFinalStatus) {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// handleChatStream accepts a message and streams the conversation's events
// as server-sent events until the task finishes.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "server.handleChatStream")
	defer span.End()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	req, reqCtx, err := s.submit(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	consumer := stream.New(s.bus, reqCtx.Context.ID, s.streamCfg)
	defer consumer.Close()

	err = consumer.Run(ctx, func(ev orchestra.Event) error {
		if err := stream.WriteSSE(w, stream.NewFrame(req.SessionID, ev)); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if errors.Is(err, stream.ErrStillProcessing) {
		frame := stream.Frame{
			SessionID: req.SessionID,
			ContextID: reqCtx.Context.ID,
			Error:     "still processing",
		}
		if werr := stream.WriteSSE(w, frame); werr == nil {
			flusher.Flush()
		}
	}
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.handler.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleContextHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	history, err := s.handler.GetContextHistory(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleClearContext(w http.ResponseWriter, r *http.Request) {
	contextID := r.PathValue("id")
	existed, err := s.handler.ClearContext(r.Context(), contextID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !existed {
		s.writeError(w, orchestra.ContextNotFoundError{ContextID: contextID})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"cleared": contextID})
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	domains := s.coordinator.Domains()
	capabilities := make(map[string]any, len(domains))
	for _, domain := range domains {
		executor := s.coordinator.Agent(domain)
		if executor == nil {
			continue
		}
		capabilities[domain] = map[string]any{
			"agentName":        executor.Name(),
			"supportedDomains": executor.SupportedDomains(),
			"available":        true,
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"capabilities":     capabilities,
		"availableDomains": domains,
		"stats":            s.coordinator.Stats(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"bus":         s.bus.Stats(),
		"coordinator": s.coordinator.Stats(),
		"agents":      s.coordinator.AgentStats(),
		"active":      s.handler.ActiveRequests(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON encodes v as the response body.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := sonic.ConfigDefault.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError maps domain errors onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var taskNotFound orchestra.TaskNotFoundError
	var contextNotFound orchestra.ContextNotFoundError
	switch {
	case errors.Is(err, orchestra.ErrEmptyMessage), errors.Is(err, orchestra.ErrEmptySessionID):
		status = http.StatusBadRequest
	case errors.As(err, &taskNotFound), errors.As(err, &contextNotFound):
		status = http.StatusNotFound
	}

	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
