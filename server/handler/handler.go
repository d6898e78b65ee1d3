// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/go-a2a/orchestra"
	"github.com/go-a2a/orchestra/server/agent_execution"
	"github.com/go-a2a/orchestra/server/event"
	"github.com/go-a2a/orchestra/server/task"
)

// Request is an inbound user message submitted for handling.
type Request struct {
	// Message is the user's message text. Required.
	Message string

	// SessionID identifies the user's session. Required.
	SessionID string

	// UserID optionally identifies the user.
	UserID string

	// ContextID, if set, continues an existing conversation. The context
	// must exist; a fresh conversation is only created when ContextID is
	// empty.
	ContextID string

	// AdditionalData seeds the shared data of a new conversation and is
	// passed through to the executor.
	AdditionalData map[string]any
}

// ContextHistory is the conversation view returned by GetContextHistory.
type ContextHistory struct {
	ContextID  string                  `json:"contextId"`
	History    []orchestra.HistoryEntry `json:"conversationHistory"`
	SharedData map[string]any          `json:"sharedData"`
	CreatedAt  time.Time               `json:"createdAt"`
	UpdatedAt  time.Time               `json:"updatedAt"`
}

// execution tracks one in-flight request so it can be cancelled.
type execution struct {
	cancel context.CancelFunc
	reqCtx *agent_execution.RequestContext
}

// DefaultRequestHandler turns inbound messages into tracked tasks executed
// asynchronously by an agent executor. It owns a process-lifetime
// subscription to task status updates that keeps the task store current and
// triggers best-effort push notifications on final events.
type DefaultRequestHandler struct {
	executor     agent_execution.AgentExecutor
	bus          *event.Bus
	taskStore    task.TaskStore
	contextStore task.ContextStore
	pushSender   task.PushNotificationSender

	mu     sync.Mutex
	active map[string]*execution

	statusSub *event.Subscription

	logger *slog.Logger
	tracer trace.Tracer
}

// Config holds the collaborators of a [DefaultRequestHandler].
type Config struct {
	// Executor processes requests. Required; typically the coordinator.
	Executor agent_execution.AgentExecutor

	// Bus carries progress events. Required.
	Bus *event.Bus

	// TaskStore persists tasks. Defaults to an in-memory store.
	TaskStore task.TaskStore

	// ContextStore persists conversations. Defaults to an in-memory store.
	ContextStore task.ContextStore

	// PushSender, if set, delivers notifications on final status events.
	PushSender task.PushNotificationSender
}

// New creates a request handler and subscribes it to task status updates.
// Call Close to release the subscription.
func New(config Config, opts ...Option) (*DefaultRequestHandler, error) {
	if config.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if config.Bus == nil {
		return nil, fmt.Errorf("event bus is required")
	}
	if config.TaskStore == nil {
		config.TaskStore = task.NewInMemoryTaskStore()
	}
	if config.ContextStore == nil {
		config.ContextStore = task.NewInMemoryContextStore()
	}

	h := &DefaultRequestHandler{
		executor:     config.Executor,
		bus:          config.Bus,
		taskStore:    config.TaskStore,
		contextStore: config.ContextStore,
		pushSender:   config.PushSender,
		active:       make(map[string]*execution),
		logger:       slog.Default(),
		tracer:       noopTracer,
	}
	for _, opt := range opts {
		opt(h)
	}

	h.statusSub = h.bus.SubscribeType(orchestra.EventTypeTaskStatusUpdate, h.onStatusUpdate)

	return h, nil
}

// HandleRequest validates and accepts an inbound message, creates its task,
// and launches the executor on a detached goroutine. It returns the request
// context as soon as execution has been launched; progress is reported
// through the event bus.
func (h *DefaultRequestHandler) HandleRequest(ctx context.Context, req *Request) (*agent_execution.RequestContext, error) {
	ctx, span := h.tracer.Start(ctx, "handler.HandleRequest")
	defer span.End()

	content := strings.TrimSpace(req.Message)
	if content == "" {
		return nil, orchestra.ErrEmptyMessage
	}
	if strings.TrimSpace(req.SessionID) == "" {
		return nil, orchestra.ErrEmptySessionID
	}

	taskContext, err := h.resolveContext(ctx, req)
	if err != nil {
		return nil, err
	}

	// The user turn is persisted before execution starts so the history is
	// durable even if the process dies mid-request.
	taskContext.AppendHistory("user", content)
	if _, err := h.contextStore.Update(ctx, taskContext); err != nil {
		return nil, fmt.Errorf("persist conversation history: %w", err)
	}

	message := orchestra.NewAgentTextMessage(content, taskContext.ID, "", "user")

	reqCtx := agent_execution.NewRequestContext(message, taskContext).
		WithAdditionalData(req.AdditionalData)

	t := orchestra.NewTask(message)
	stored, err := h.taskStore.Create(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	reqCtx.Task = stored
	message.TaskID = stored.ID

	// Published events are immutable; the event carries a snapshot so later
	// task mutations do not rewrite the buffered history.
	if err := h.bus.Publish(ctx, &orchestra.TaskCreatedEvent{
		EventMeta: orchestra.NewEventMeta(taskContext.ID, "user"),
		Task:      stored.Clone(),
	}); err != nil {
		return nil, fmt.Errorf("publish task created: %w", err)
	}

	// Execution outlives the request: detach from the caller's deadline but
	// keep a cancel handle for CancelRequest.
	execCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	h.mu.Lock()
	h.active[message.ID] = &execution{cancel: cancel, reqCtx: reqCtx}
	h.mu.Unlock()

	go h.execute(execCtx, message.ID, reqCtx)

	return reqCtx, nil
}

// resolveContext returns the conversation for the request, creating one when
// no context id was supplied.
func (h *DefaultRequestHandler) resolveContext(ctx context.Context, req *Request) (*orchestra.Context, error) {
	if req.ContextID != "" {
		taskContext, err := h.contextStore.Get(ctx, req.ContextID)
		if err != nil {
			return nil, fmt.Errorf("get context: %w", err)
		}
		if taskContext == nil {
			return nil, orchestra.ContextNotFoundError{ContextID: req.ContextID}
		}
		return taskContext, nil
	}

	taskContext := orchestra.NewContext(req.SessionID, req.UserID, req.AdditionalData)
	created, err := h.contextStore.Create(ctx, taskContext)
	if err != nil {
		return nil, fmt.Errorf("create context: %w", err)
	}
	return created, nil
}

// execute runs the executor and cleans up the launch tracking entry. The
// executor contains its own failures; an error here means the containment
// itself broke, which is only logged.
func (h *DefaultRequestHandler) execute(ctx context.Context, messageID string, reqCtx *agent_execution.RequestContext) {
	defer func() {
		h.mu.Lock()
		delete(h.active, messageID)
		h.mu.Unlock()
	}()

	if err := h.executor.Execute(ctx, reqCtx, h.bus); err != nil {
		h.logger.Error("agent execution failed",
			slog.String("message_id", messageID),
			slog.Any("error", err),
		)
	}

	// The stores hand out copies; shared data mutated by the executor (cart
	// changes, per-agent scratch keys) must be written back.
	if _, err := h.contextStore.Update(ctx, reqCtx.Context); err != nil {
		h.logger.Error("persist shared data",
			slog.String("context_id", reqCtx.Context.ID),
			slog.Any("error", err),
		)
	}
}

// CancelRequest cancels an in-flight request by its message id, reporting
// whether a matching request was found.
func (h *DefaultRequestHandler) CancelRequest(ctx context.Context, messageID string) bool {
	h.mu.Lock()
	exec, ok := h.active[messageID]
	if ok {
		delete(h.active, messageID)
	}
	h.mu.Unlock()
	if !ok {
		return false
	}

	exec.cancel()
	if err := h.executor.Cancel(ctx, exec.reqCtx, h.bus); err != nil {
		h.logger.Error("request cancellation failed",
			slog.String("message_id", messageID),
			slog.Any("error", err),
		)
	}
	return true
}

// ActiveRequests returns the message ids of all in-flight requests.
func (h *DefaultRequestHandler) ActiveRequests() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids := make([]string, 0, len(h.active))
	for id := range h.active {
		ids = append(ids, id)
	}
	return ids
}

// onStatusUpdate reconciles the task store with a status event and, on final
// events, triggers a best-effort push notification. Updates that would move
// a task out of a terminal state are dropped.
func (h *DefaultRequestHandler) onStatusUpdate(ctx context.Context, ev orchestra.Event) {
	update, ok := ev.(*orchestra.TaskStatusUpdateEvent)
	if !ok {
		return
	}

	t, err := h.taskStore.Get(ctx, update.TaskID)
	if err != nil {
		h.logger.Error("status reconciliation: get task",
			slog.String("task_id", update.TaskID),
			slog.Any("error", err),
		)
		return
	}
	if t != nil {
		message := ""
		if update.Status.Message != nil {
			message = update.Status.Message.Content
		}
		if err := t.UpdateState(update.Status.State, message); err != nil {
			var terminal *orchestra.TaskTerminalError
			if errors.As(err, &terminal) {
				h.logger.Debug("dropping status update for terminal task",
					slog.String("task_id", update.TaskID),
					slog.String("state", string(update.Status.State)),
				)
			} else {
				h.logger.Error("status reconciliation: update state",
					slog.String("task_id", update.TaskID),
					slog.Any("error", err),
				)
			}
		} else if _, err := h.taskStore.Update(ctx, t); err != nil {
			h.logger.Error("status reconciliation: persist task",
				slog.String("task_id", update.TaskID),
				slog.Any("error", err),
			)
		}
	}

	if update.Final && update.Status.Message != nil && h.pushSender != nil {
		_, err := h.pushSender.SendNotification(ctx, update.ContextID, "Task Update", update.Status.Message.Content, map[string]any{
			"task_id": update.TaskID,
			"state":   string(update.Status.State),
		})
		if err != nil {
			h.logger.Warn("push notification failed",
				slog.String("context_id", update.ContextID),
				slog.Any("error", err),
			)
		}
	}
}

// GetTask returns a task by id. A missing task is a TaskNotFoundError.
func (h *DefaultRequestHandler) GetTask(ctx context.Context, taskID string) (*orchestra.Task, error) {
	t, err := h.taskStore.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, orchestra.TaskNotFoundError{TaskID: taskID}
	}
	return t, nil
}

// GetContextHistory returns the trailing limit entries of a conversation
// along with its shared data. A missing context is a ContextNotFoundError.
func (h *DefaultRequestHandler) GetContextHistory(ctx context.Context, contextID string, limit int) (*ContextHistory, error) {
	taskContext, err := h.contextStore.Get(ctx, contextID)
	if err != nil {
		return nil, err
	}
	if taskContext == nil {
		return nil, orchestra.ContextNotFoundError{ContextID: contextID}
	}

	history := taskContext.History
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}

	return &ContextHistory{
		ContextID:  contextID,
		History:    history,
		SharedData: taskContext.Shared,
		CreatedAt:  taskContext.CreatedAt,
		UpdatedAt:  taskContext.UpdatedAt,
	}, nil
}

// ClearContext deletes a conversation and, when it existed, its buffered
// events and tasks. The cascade is best effort: a failing task delete is
// logged and does not undo the context delete.
func (h *DefaultRequestHandler) ClearContext(ctx context.Context, contextID string) (bool, error) {
	existed, err := h.contextStore.Delete(ctx, contextID)
	if err != nil {
		return false, err
	}
	if !existed {
		return false, nil
	}

	removed := h.bus.ClearContext(contextID)

	tasks, err := h.taskStore.List(ctx, task.TaskFilter{ContextID: contextID}, 0)
	if err != nil {
		h.logger.Error("cascade delete: list tasks",
			slog.String("context_id", contextID),
			slog.Any("error", err),
		)
		return true, nil
	}
	for _, t := range tasks {
		if _, err := h.taskStore.Delete(ctx, t.ID); err != nil {
			h.logger.Error("cascade delete: delete task",
				slog.String("task_id", t.ID),
				slog.Any("error", err),
			)
		}
	}

	h.logger.Info("cleared context",
		slog.String("context_id", contextID),
		slog.Int("events_removed", removed),
		slog.Int("tasks_removed", len(tasks)),
	)
	return true, nil
}

// Close releases the handler's status subscription. In-flight executions are
// not interrupted.
func (h *DefaultRequestHandler) Close() error {
	h.bus.Unsubscribe(h.statusSub)
	return nil
}
