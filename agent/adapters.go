// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/go-json-experiment/json"

	"github.com/go-a2a/orchestra"
	"github.com/go-a2a/orchestra/server/agent_execution"
	"github.com/go-a2a/orchestra/server/event"
)

// Stock domain names.
const (
	DomainOrchestrator = "orchestrator"
	DomainCropping     = "cropping_agent"
	DomainBackground   = "background_agent"
	DomainThumbnail    = "thumbnail_generator"
	DomainVideo        = "video_agent"
)

// Processor produces the response text for a user message. Concrete
// implementations wrap model-backed agents; they are external to this core.
type Processor interface {
	Process(ctx context.Context, userInput string, history []orchestra.HistoryEntry, additional map[string]any) (string, error)
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, userInput string, history []orchestra.HistoryEntry, additional map[string]any) (string, error)

// Process implements [Processor].
func (f ProcessorFunc) Process(ctx context.Context, userInput string, history []orchestra.HistoryEntry, additional map[string]any) (string, error) {
	return f(ctx, userInput, history, additional)
}

// DefaultHandoffPatterns maps each stock domain to the keywords that signal
// a response wants that domain to take over.
func DefaultHandoffPatterns() map[string][]string {
	return map[string][]string{
		DomainCropping:     {"crop", "cut out", "focus on", "resize"},
		DomainBackground:   {"background", "remove background", "replace background", "transparent"},
		DomainThumbnail:    {"thumbnail", "cover image", "youtube cover"},
		DomainVideo:        {"video", "movie", "animate", "motion"},
		DomainOrchestrator: {"help", "start over", "general"},
	}
}

// defaultConfidenceKeywords maps each stock domain to the keywords its
// confidence heuristic looks for.
var defaultConfidenceKeywords = map[string][]string{
	DomainCropping:     {"crop", "cut", "resize", "focus", "coordinates"},
	DomainBackground:   {"background", "remove", "replace", "transparent", "scene"},
	DomainThumbnail:    {"thumbnail", "cover", "text", "overlay", "clickbait"},
	DomainVideo:        {"video", "movie", "animate", "motion", "sora"},
	DomainOrchestrator: {"help", "hello", "start", "general"},
}

// stockDomainOrder fixes the order handoff patterns are checked in.
var stockDomainOrder = []string{
	DomainCropping,
	DomainBackground,
	DomainThumbnail,
	DomainVideo,
	DomainOrchestrator,
}

// DomainAgent wraps a Processor as an agent executor for one domain. It
// publishes a working status, runs the processor, applies any structured
// response data to the conversation's shared data, and finishes with either
// a handoff (never to its own domain) or an artifact plus a terminal
// completed status.
type DomainAgent struct {
	*agent_execution.BaseExecutor

	domain             string
	processor          Processor
	confidenceKeywords []string
	handoffPatterns    map[string][]string
	handoffOrder       []string
}

var _ agent_execution.AgentExecutor = (*DomainAgent)(nil)

// DomainAgentConfig holds configuration for a DomainAgent.
type DomainAgentConfig struct {
	// Domain is the domain this agent serves. Required.
	Domain string

	// Name is the agent's display name. Defaults to the domain.
	Name string

	// Processor produces response text. Required.
	Processor Processor

	// SupportedDomains defaults to {Domain}.
	SupportedDomains []string

	// ConfidenceKeywords drive the confidence heuristic. Defaults to the
	// stock list for known domains.
	ConfidenceKeywords []string

	// HandoffPatterns drive keyword handoff detection. Defaults to
	// DefaultHandoffPatterns.
	HandoffPatterns map[string][]string

	Logger *slog.Logger
}

// NewDomainAgent creates a domain agent.
func NewDomainAgent(config DomainAgentConfig) (*DomainAgent, error) {
	if config.Domain == "" {
		return nil, fmt.Errorf("domain is required")
	}
	if config.Processor == nil {
		return nil, fmt.Errorf("processor is required")
	}
	if config.Name == "" {
		config.Name = config.Domain
	}
	if len(config.SupportedDomains) == 0 {
		config.SupportedDomains = []string{config.Domain}
	}
	if config.ConfidenceKeywords == nil {
		config.ConfidenceKeywords = defaultConfidenceKeywords[config.Domain]
	}
	if config.HandoffPatterns == nil {
		config.HandoffPatterns = DefaultHandoffPatterns()
	}

	return &DomainAgent{
		BaseExecutor:       agent_execution.NewBaseExecutor(config.Name, config.SupportedDomains, config.Logger),
		domain:             config.Domain,
		processor:          config.Processor,
		confidenceKeywords: config.ConfidenceKeywords,
		handoffPatterns:    config.HandoffPatterns,
		handoffOrder:       handoffOrder(config.HandoffPatterns),
	}, nil
}

// handoffOrder fixes the check order of handoff patterns: stock domains
// first, then any custom domains sorted by name.
func handoffOrder(patterns map[string][]string) []string {
	order := make([]string, 0, len(patterns))
	for _, domain := range stockDomainOrder {
		if _, ok := patterns[domain]; ok {
			order = append(order, domain)
		}
	}
	extra := make([]string, 0)
	for domain := range patterns {
		if !slices.Contains(order, domain) {
			extra = append(extra, domain)
		}
	}
	slices.Sort(extra)
	return append(order, extra...)
}

// Domain returns the domain this agent serves.
func (a *DomainAgent) Domain() string { return a.domain }

// Execute implements [agent_execution.AgentExecutor].
func (a *DomainAgent) Execute(ctx context.Context, reqCtx *agent_execution.RequestContext, bus *event.Bus) error {
	return a.Guard(ctx, reqCtx, bus, a.run)
}

func (a *DomainAgent) run(ctx context.Context, reqCtx *agent_execution.RequestContext, bus *event.Bus) error {
	task := reqCtx.Task
	if task == nil {
		task = orchestra.NewTask(reqCtx.Message)
		reqCtx.Task = task
		if err := bus.Publish(ctx, &orchestra.TaskCreatedEvent{
			EventMeta: orchestra.NewEventMeta(reqCtx.Context.ID, a.Name()),
			Task:      task.Clone(),
		}); err != nil {
			return err
		}
	}

	working := &orchestra.TaskStatusUpdateEvent{
		EventMeta: orchestra.NewEventMeta(reqCtx.Context.ID, a.Name()),
		TaskID:    task.ID,
		Status: orchestra.TaskStatus{
			State:   orchestra.TaskStateWorking,
			Message: orchestra.NewAgentTextMessage(fmt.Sprintf("Processing your request with %s...", a.Name()), reqCtx.Context.ID, task.ID, a.Name()),
		},
	}
	if err := bus.Publish(ctx, working); err != nil {
		return err
	}

	additional := map[string]any{
		agent_execution.SharedKeyCart:     reqCtx.Cart(),
		agent_execution.SharedKeyCustomer: reqCtx.CustomerData(),
	}

	response, err := a.processor.Process(ctx, reqCtx.UserInput(), reqCtx.ConversationHistory(10), additional)
	if err != nil {
		return fmt.Errorf("processor for %s: %w", a.domain, err)
	}

	structured := parseStructuredResponse(response)
	if structured != nil {
		a.applyStructuredData(reqCtx, structured)
	}

	cleaned := sanitizeResponse(response, structured)

	if handoff := a.detectHandoff(structured, cleaned); handoff != nil {
		return a.publishHandoff(ctx, reqCtx, bus, task, handoff)
	}

	if cleaned != "" {
		artifact := orchestra.NewTextArtifact(a.Name()+"_response", "Response from "+a.Name(), cleaned, task.ID)
		if err := bus.Publish(ctx, &orchestra.TaskArtifactUpdateEvent{
			EventMeta: orchestra.NewEventMeta(reqCtx.Context.ID, a.Name()),
			TaskID:    task.ID,
			Artifact:  artifact,
			LastChunk: true,
		}); err != nil {
			return err
		}
	}

	return bus.Publish(ctx, &orchestra.TaskStatusUpdateEvent{
		EventMeta: orchestra.NewEventMeta(reqCtx.Context.ID, a.Name()),
		TaskID:    task.ID,
		Status: orchestra.TaskStatus{
			State:    orchestra.TaskStateCompleted,
			Message:  orchestra.NewAgentTextMessage(cleaned, reqCtx.Context.ID, task.ID, a.Name()),
			Progress: 1.0,
		},
		Final: true,
	})
}

// publishHandoff emits the handoff event followed by the terminal
// waiting_for_handoff status.
func (a *DomainAgent) publishHandoff(ctx context.Context, reqCtx *agent_execution.RequestContext, bus *event.Bus, task *orchestra.Task, handoff *orchestra.HandoffRequest) error {
	if err := bus.Publish(ctx, &orchestra.AgentHandoffEvent{
		EventMeta: orchestra.NewEventMeta(reqCtx.Context.ID, a.Name()),
		TaskID:    task.ID,
		FromAgent: a.domain,
		ToAgent:   handoff.TargetAgent,
		Reason:    handoff.Reason,
		Data:      handoff.ContextData,
	}); err != nil {
		return err
	}

	text := fmt.Sprintf("Handing off to %s: %s", handoff.TargetAgent, handoff.Reason)
	return bus.Publish(ctx, &orchestra.TaskStatusUpdateEvent{
		EventMeta: orchestra.NewEventMeta(reqCtx.Context.ID, a.Name()),
		TaskID:    task.ID,
		Status: orchestra.TaskStatus{
			State:   orchestra.TaskStateWaitingForHandoff,
			Message: orchestra.NewAgentTextMessage(text, reqCtx.Context.ID, task.ID, a.Name()),
		},
		Final: true,
	})
}

// applyStructuredData copies recognized fields from a structured response
// into the conversation's shared data.
func (a *DomainAgent) applyStructuredData(reqCtx *agent_execution.RequestContext, structured map[string]any) {
	if cart, ok := structured[agent_execution.SharedKeyCart].([]any); ok {
		reqCtx.SetCart(cart)
	}
	if discount, ok := structured["discount_percentage"]; ok {
		customer := reqCtx.CustomerData()
		customer["discount_percentage"] = discount
		reqCtx.SetCustomerData(customer)
	}
	if metadata, ok := structured["metadata"].(map[string]any); ok {
		for key, value := range metadata {
			reqCtx.SetSharedValue(fmt.Sprintf("agent_%s_%s", a.Name(), key), value)
		}
	}
}

// detectHandoff checks for an explicit handoff in structured data, then for
// handoff keywords in the response text. An agent never proposes handing
// off to its own domain.
func (a *DomainAgent) detectHandoff(structured map[string]any, responseText string) *orchestra.HandoffRequest {
	if structured != nil {
		if raw, ok := structured["handoff"].(map[string]any); ok {
			target, _ := raw["to_agent"].(string)
			reason, _ := raw["reason"].(string)
			if target != "" && target != a.domain {
				data, _ := raw["data"].(map[string]any)
				return &orchestra.HandoffRequest{
					TargetAgent: target,
					Reason:      reason,
					ContextData: data,
				}
			}
		}
	}

	lower := strings.ToLower(responseText)
	for _, domain := range a.handoffOrder {
		if domain == a.domain {
			continue
		}
		keywords := a.handoffPatterns[domain]
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				return &orchestra.HandoffRequest{
					TargetAgent: domain,
					Reason:      fmt.Sprintf("Detected request for %s functionality", domain),
					ContextData: map[string]any{"trigger_keywords": keywords},
				}
			}
		}
	}
	return nil
}

// Confidence scores the input against the agent's domain keywords:
// no matches is low confidence, a single match medium, two or more high.
func (a *DomainAgent) Confidence(userInput string) float64 {
	lower := strings.ToLower(userInput)
	matches := 0
	for _, kw := range a.confidenceKeywords {
		if strings.Contains(lower, kw) {
			matches++
		}
	}

	switch {
	case matches == 0:
		return 0.1
	case matches >= 2:
		return 0.9
	default:
		return 0.6
	}
}

// NewOrchestratorAgent creates the general-purpose fallback agent.
func NewOrchestratorAgent(p Processor, logger *slog.Logger) (*DomainAgent, error) {
	return NewDomainAgent(DomainAgentConfig{
		Domain:           DomainOrchestrator,
		Name:             "OrchestratorAgent",
		Processor:        p,
		SupportedDomains: []string{DomainOrchestrator, "general", "routing"},
		Logger:           logger,
	})
}

// NewCroppingAgent creates the cropping specialist agent.
func NewCroppingAgent(p Processor, logger *slog.Logger) (*DomainAgent, error) {
	return NewDomainAgent(DomainAgentConfig{
		Domain:           DomainCropping,
		Name:             "CroppingAgent",
		Processor:        p,
		SupportedDomains: []string{DomainCropping, "crop", "resize"},
		Logger:           logger,
	})
}

// NewBackgroundAgent creates the background specialist agent.
func NewBackgroundAgent(p Processor, logger *slog.Logger) (*DomainAgent, error) {
	return NewDomainAgent(DomainAgentConfig{
		Domain:           DomainBackground,
		Name:             "BackgroundAgent",
		Processor:        p,
		SupportedDomains: []string{DomainBackground, "background", "remove_bg"},
		Logger:           logger,
	})
}

// NewThumbnailGeneratorAgent creates the thumbnail generator agent.
func NewThumbnailGeneratorAgent(p Processor, logger *slog.Logger) (*DomainAgent, error) {
	return NewDomainAgent(DomainAgentConfig{
		Domain:           DomainThumbnail,
		Name:             "ThumbnailGenerator",
		Processor:        p,
		SupportedDomains: []string{DomainThumbnail, "thumbnail", "cover"},
		Logger:           logger,
	})
}

// NewVideoAgent creates the video specialist agent.
func NewVideoAgent(p Processor, logger *slog.Logger) (*DomainAgent, error) {
	return NewDomainAgent(DomainAgentConfig{
		Domain:           DomainVideo,
		Name:             "VideoAgent",
		Processor:        p,
		SupportedDomains: []string{DomainVideo, "video", "animation"},
		Logger:           logger,
	})
}

// parseStructuredResponse decodes a JSON object response, returning nil for
// plain-text responses.
func parseStructuredResponse(response string) map[string]any {
	trimmed := strings.TrimSpace(response)
	if !strings.HasPrefix(trimmed, "{") {
		return nil
	}

	var structured map[string]any
	if err := json.Unmarshal([]byte(trimmed), &structured); err != nil {
		return nil
	}
	return structured
}

// sanitizeResponse extracts the user-facing text from a response: for
// structured responses the first recognized text field, otherwise the
// trimmed raw text.
func sanitizeResponse(response string, structured map[string]any) string {
	if structured != nil {
		for _, field := range []string{"answer", "response", "message", "content", "result"} {
			if text, ok := structured[field].(string); ok && strings.TrimSpace(text) != "" {
				return strings.TrimSpace(text)
			}
		}
	}
	return strings.TrimSpace(response)
}
