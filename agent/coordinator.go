// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-a2a/orchestra"
	"github.com/go-a2a/orchestra/server/agent_execution"
	"github.com/go-a2a/orchestra/server/event"
	"github.com/go-a2a/orchestra/server/task"
)

// CoordinatorName is the agent name the coordinator reports in events and
// stats.
const CoordinatorName = "coordinator"

// Coordinator routes inbound messages to registered domain agents. It
// classifies the message intent, dispatches to the matching agent, tracks
// which domain owns each in-flight task so cancellations reach the right
// agent, and follows handoff events to keep that tracking current.
type Coordinator struct {
	*agent_execution.BaseExecutor

	classifier    IntentClassifier
	fallback      *KeywordClassifier
	defaultDomain string
	taskStore     task.TaskStore

	mu            sync.RWMutex
	order         []string
	registry      map[string]agent_execution.AgentExecutor
	activeDomains map[string]string
}

var _ agent_execution.AgentExecutor = (*Coordinator)(nil)

// CoordinatorConfig holds configuration for a [Coordinator].
type CoordinatorConfig struct {
	// Classifier, if set, is consulted first for intent classification. The
	// keyword classifier built from registered agents remains the fallback
	// when it fails.
	Classifier IntentClassifier

	// ClassifierConfig tunes the built-in keyword classifier.
	ClassifierConfig ClassifierConfig

	// DefaultDomain receives messages classified to a domain with no
	// registered agent. Defaults to DomainOrchestrator.
	DefaultDomain string

	// TaskStore, if set, is updated with task assignment and state changes
	// made during routing.
	TaskStore task.TaskStore

	Logger *slog.Logger
}

// NewCoordinator creates a coordinator with no registered agents.
func NewCoordinator(config CoordinatorConfig) *Coordinator {
	if config.DefaultDomain == "" {
		config.DefaultDomain = DomainOrchestrator
	}

	return &Coordinator{
		BaseExecutor:  agent_execution.NewBaseExecutor(CoordinatorName, []string{"routing"}, config.Logger),
		classifier:    config.Classifier,
		fallback:      NewKeywordClassifier(config.ClassifierConfig),
		defaultDomain: config.DefaultDomain,
		taskStore:     config.TaskStore,
		registry:      make(map[string]agent_execution.AgentExecutor),
		activeDomains: make(map[string]string),
	}
}

// RegisterAgent adds an executor under the given domain and registers its
// classification keywords. Registering a domain twice replaces the previous
// executor.
func (c *Coordinator) RegisterAgent(domain string, executor agent_execution.AgentExecutor, keywords []string) error {
	if domain == "" {
		return fmt.Errorf("domain is required")
	}
	if executor == nil {
		return fmt.Errorf("executor is required")
	}

	c.mu.Lock()
	if _, exists := c.registry[domain]; !exists {
		c.order = append(c.order, domain)
	}
	c.registry[domain] = executor
	c.mu.Unlock()

	c.fallback.Register(domain, keywords)

	c.Logger().Info("registered agent",
		slog.String("domain", domain),
		slog.String("agent", executor.Name()),
	)
	return nil
}

// Agent returns the executor registered for a domain, or nil.
func (c *Coordinator) Agent(domain string) agent_execution.AgentExecutor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.registry[domain]
}

// Domains returns the registered domains in registration order.
func (c *Coordinator) Domains() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// ActiveDomain returns the domain currently handling a task, or "".
func (c *Coordinator) ActiveDomain(taskID string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.activeDomains[taskID]
}

// Execute implements [agent_execution.AgentExecutor]. It classifies the
// message, announces the routing decision as a working status, and hands the
// request to the chosen agent. Failures surface as a terminal failed status
// for the task, never as an error to the caller.
func (c *Coordinator) Execute(ctx context.Context, reqCtx *agent_execution.RequestContext, bus *event.Bus) error {
	return c.Guard(ctx, reqCtx, bus, c.route)
}

func (c *Coordinator) route(ctx context.Context, reqCtx *agent_execution.RequestContext, bus *event.Bus) error {
	// Follow handoffs for this conversation while the request is in flight
	// so cancellation reaches whichever agent currently owns the task.
	sub := bus.SubscribeContext(reqCtx.Context.ID, c.onContextEvent)
	defer bus.Unsubscribe(sub)

	if reqCtx.Task == nil {
		t := orchestra.NewTask(reqCtx.Message)
		reqCtx.Task = t
		if err := bus.Publish(ctx, &orchestra.TaskCreatedEvent{
			EventMeta: orchestra.NewEventMeta(reqCtx.Context.ID, c.Name()),
			Task:      t.Clone(),
		}); err != nil {
			return err
		}
	}

	classification := c.classify(ctx, reqCtx)

	domain := classification.Domain
	c.mu.RLock()
	executor := c.registry[domain]
	c.mu.RUnlock()
	if executor == nil {
		c.Logger().Warn("no agent for domain, using default",
			slog.String("domain", domain),
			slog.String("default", c.defaultDomain),
		)
		domain = c.defaultDomain
		c.mu.RLock()
		executor = c.registry[domain]
		c.mu.RUnlock()
	}
	if executor == nil {
		return fmt.Errorf("no agent registered for domain %q and no default agent available", classification.Domain)
	}

	routing := fmt.Sprintf("Routing to %s agent...", domain)
	if err := bus.Publish(ctx, &orchestra.TaskStatusUpdateEvent{
		EventMeta: orchestra.NewEventMeta(reqCtx.Context.ID, c.Name()),
		TaskID:    reqCtx.Task.ID,
		Status: orchestra.TaskStatus{
			State:   orchestra.TaskStateWorking,
			Message: orchestra.NewAgentTextMessage(routing, reqCtx.Context.ID, reqCtx.Task.ID, c.Name()),
		},
	}); err != nil {
		return err
	}

	c.assign(ctx, reqCtx, domain, classification)

	c.mu.Lock()
	c.activeDomains[reqCtx.Task.ID] = domain
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.activeDomains, reqCtx.Task.ID)
		c.mu.Unlock()
	}()

	return executor.Execute(ctx, reqCtx, bus)
}

// classify runs the configured classifier, falling back to keyword scoring
// when it fails. Classification never aborts routing.
func (c *Coordinator) classify(ctx context.Context, reqCtx *agent_execution.RequestContext) *orchestra.IntentClassification {
	history := reqCtx.ConversationHistory(10)

	if c.classifier != nil {
		classification, err := c.classifier.ClassifyIntent(ctx, reqCtx.UserInput(), history)
		if err == nil && classification != nil {
			return classification
		}
		c.Logger().Warn("intent classifier failed, falling back to keywords", slog.Any("error", err))
	}

	classification, err := c.fallback.ClassifyIntent(ctx, reqCtx.UserInput(), history)
	if err != nil {
		// The keyword classifier cannot fail; guard anyway.
		return &orchestra.IntentClassification{
			Domain:     c.defaultDomain,
			Confidence: 0.0,
			Reasoning:  "classification unavailable",
		}
	}

	c.Logger().Debug("classified intent",
		slog.String("domain", classification.Domain),
		slog.Float64("confidence", classification.Confidence),
	)
	return classification
}

// assign records the routing decision on the task and persists it when a
// task store is configured.
func (c *Coordinator) assign(ctx context.Context, reqCtx *agent_execution.RequestContext, domain string, classification *orchestra.IntentClassification) {
	t := reqCtx.Task
	t.AssignedAgent = domain
	if err := t.UpdateState(orchestra.TaskStateAssigned, fmt.Sprintf("Assigned to %s", domain)); err != nil {
		c.Logger().Warn("could not mark task assigned", slog.Any("error", err))
		return
	}
	if t.Metadata == nil {
		t.Metadata = make(map[string]any)
	}
	t.Metadata["classification_confidence"] = classification.Confidence
	t.Metadata["classification_reasoning"] = classification.Reasoning

	if c.taskStore == nil {
		return
	}
	if _, err := c.taskStore.Update(ctx, t); err != nil {
		c.Logger().Warn("could not persist task assignment",
			slog.String("task_id", t.ID),
			slog.Any("error", err),
		)
	}
}

// Cancel forwards the cancellation to the agent currently handling the task,
// falling back to the default cancellation behavior when no agent owns it.
func (c *Coordinator) Cancel(ctx context.Context, reqCtx *agent_execution.RequestContext, bus *event.Bus) error {
	if reqCtx.Task != nil {
		c.mu.RLock()
		domain := c.activeDomains[reqCtx.Task.ID]
		executor := c.registry[domain]
		c.mu.RUnlock()

		if executor != nil {
			return executor.Cancel(ctx, reqCtx, bus)
		}
	}
	return c.BaseExecutor.Cancel(ctx, reqCtx, bus)
}

// Confidence reports the best confidence any registered agent has for the
// input. The coordinator itself can always route, so the floor is the
// default confidence.
func (c *Coordinator) Confidence(userInput string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	best := agent_execution.DefaultConfidence
	for _, executor := range c.registry {
		if conf := executor.Confidence(userInput); conf > best {
			best = conf
		}
	}
	return best
}

// AgentStats returns the stats of every registered agent keyed by domain.
func (c *Coordinator) AgentStats() map[string]agent_execution.Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]agent_execution.Stats, len(c.registry))
	for domain, executor := range c.registry {
		out[domain] = executor.Stats()
	}
	return out
}

// onContextEvent follows handoff events so the task-to-domain tracking
// points at the agent that currently owns each task.
func (c *Coordinator) onContextEvent(ctx context.Context, ev orchestra.Event) {
	handoff, ok := ev.(*orchestra.AgentHandoffEvent)
	if !ok {
		return
	}

	c.mu.Lock()
	if _, tracked := c.activeDomains[handoff.TaskID]; tracked {
		c.activeDomains[handoff.TaskID] = handoff.ToAgent
	}
	c.mu.Unlock()
}
