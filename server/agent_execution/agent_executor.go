// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package agent_execution

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-a2a/orchestra"
	"github.com/go-a2a/orchestra/server/event"
)

// DefaultConfidence is the confidence an executor reports for inputs it has
// no specific signal about.
const DefaultConfidence = 0.5

// AgentExecutor is the capability surface every task-handling agent
// implements.
//
// Execute must, before returning, publish at least one terminal status
// update (completed, failed or cancelled) with Final set for the current
// task, or publish a handoff event followed by a terminal
// waiting_for_handoff status update. It must not surface internal failures
// to the caller.
type AgentExecutor interface {
	// Execute processes the request, emitting progress events to the bus.
	Execute(ctx context.Context, reqCtx *RequestContext, bus *event.Bus) error

	// Cancel stops the current task, publishing a terminal cancelled status
	// update if a task exists.
	Cancel(ctx context.Context, reqCtx *RequestContext, bus *event.Bus) error

	// Name returns the agent's name.
	Name() string

	// SupportedDomains returns the domains this agent serves.
	SupportedDomains() []string

	// Confidence estimates, in [0, 1], how well this agent matches the
	// input. Used by routing; must be cheap and side-effect free.
	Confidence(userInput string) float64

	// Stats returns process-local execution metrics.
	Stats() Stats
}

// Stats holds process-local execution metrics for an agent. Counters reset
// on process restart.
type Stats struct {
	AgentName        string   `json:"agentName"`
	SupportedDomains []string `json:"supportedDomains"`
	ExecutionCount   int64    `json:"executionCount"`
	ErrorCount       int64    `json:"errorCount"`
	ErrorRate        float64  `json:"errorRate"`
	UptimeSeconds    float64  `json:"uptimeSeconds"`
	StartTime        string   `json:"startTime"`
}

// BaseExecutor provides the shared mechanics of an agent executor: execution
// and error counters, error containment, and the default cancellation
// behavior. Concrete executors embed it and route their Execute body through
// Guard.
type BaseExecutor struct {
	name    string
	domains []string

	startTime      time.Time
	executionCount atomic.Int64
	errorCount     atomic.Int64

	logger *slog.Logger
}

// NewBaseExecutor creates a BaseExecutor with the given identity.
func NewBaseExecutor(name string, domains []string, logger *slog.Logger) *BaseExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	if len(domains) == 0 {
		domains = []string{"general"}
	}
	return &BaseExecutor{
		name:      name,
		domains:   domains,
		startTime: time.Now().UTC(),
		logger:    logger,
	}
}

// Name returns the agent's name.
func (b *BaseExecutor) Name() string { return b.name }

// SupportedDomains returns the domains this agent serves.
func (b *BaseExecutor) SupportedDomains() []string { return b.domains }

// Confidence returns the fixed default confidence. Concrete executors
// override this with a domain heuristic.
func (b *BaseExecutor) Confidence(userInput string) float64 { return DefaultConfidence }

// Logger returns the executor's logger.
func (b *BaseExecutor) Logger() *slog.Logger { return b.logger }

// Guard runs impl with the base executor's metrics and error containment:
// the execution counter is incremented before impl runs, and any error or
// panic from impl increments the error counter and is converted into a
// terminal failed status event for the current task. Guard never returns
// the implementation's error to the caller.
func (b *BaseExecutor) Guard(ctx context.Context, reqCtx *RequestContext, bus *event.Bus, impl func(context.Context, *RequestContext, *event.Bus) error) error {
	b.executionCount.Add(1)

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("executor panic: %v", r)
			}
		}()
		err = impl(ctx, reqCtx, bus)
	}()

	if err != nil {
		b.errorCount.Add(1)
		b.logger.Error("agent execution failed",
			slog.String("agent", b.name),
			slog.Any("error", err),
		)
		b.publishFailure(ctx, reqCtx, bus, err)
	}
	return nil
}

// publishFailure emits the terminal failed status event carrying the error
// text. Without a current task there is nothing to fail against, so the
// error stays in the log only.
func (b *BaseExecutor) publishFailure(ctx context.Context, reqCtx *RequestContext, bus *event.Bus, execErr error) {
	if reqCtx.Task == nil {
		return
	}

	text := fmt.Sprintf("I apologize, but I encountered an error while processing your request: %v", execErr)
	ev := &orchestra.TaskStatusUpdateEvent{
		EventMeta: orchestra.NewEventMeta(reqCtx.Context.ID, b.name),
		TaskID:    reqCtx.Task.ID,
		Status: orchestra.TaskStatus{
			State:        orchestra.TaskStateFailed,
			Message:      orchestra.NewAgentTextMessage(text, reqCtx.Context.ID, reqCtx.Task.ID, b.name),
			ErrorDetails: execErr.Error(),
		},
		Final: true,
	}
	if err := bus.Publish(ctx, ev); err != nil {
		b.logger.Error("failed to publish failure event",
			slog.String("agent", b.name),
			slog.Any("error", err),
		)
	}
}

// Cancel publishes a terminal cancelled status update for the current task,
// if one exists. Executors with in-flight sub-work override this to abort
// it first.
func (b *BaseExecutor) Cancel(ctx context.Context, reqCtx *RequestContext, bus *event.Bus) error {
	if reqCtx.Task == nil {
		return nil
	}

	b.logger.Warn("cancellation requested", slog.String("agent", b.name))

	return bus.Publish(ctx, &orchestra.TaskStatusUpdateEvent{
		EventMeta: orchestra.NewEventMeta(reqCtx.Context.ID, b.name),
		TaskID:    reqCtx.Task.ID,
		Status: orchestra.TaskStatus{
			State:   orchestra.TaskStateCancelled,
			Message: orchestra.NewAgentTextMessage("Task was cancelled", reqCtx.Context.ID, reqCtx.Task.ID, b.name),
		},
		Final: true,
	})
}

// Stats returns process-local execution metrics.
func (b *BaseExecutor) Stats() Stats {
	executions := b.executionCount.Load()
	errors := b.errorCount.Load()

	errorRate := 0.0
	if executions > 0 {
		errorRate = float64(errors) / float64(executions)
	}

	return Stats{
		AgentName:        b.name,
		SupportedDomains: b.domains,
		ExecutionCount:   executions,
		ErrorCount:       errors,
		ErrorRate:        errorRate,
		UptimeSeconds:    time.Since(b.startTime).Seconds(),
		StartTime:        b.startTime.Format(time.RFC3339),
	}
}
