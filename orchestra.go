// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package orchestra provides the core types for a multi-agent orchestration
// layer built on the A2A protocol: tasks tracked through a lifecycle state
// machine, conversation contexts with shared data, and the typed events that
// report progress between agents and their consumers.
package orchestra

import (
	"maps"
	"time"
)

// Version is the current version of the orchestration protocol.
const Version = "0.1.0"

// TaskState represents the state of a Task.
type TaskState string

const (
	// TaskStateCreated indicates the task has been created but not yet assigned.
	TaskStateCreated TaskState = "created"

	// TaskStateAssigned indicates the task has been assigned to an agent.
	TaskStateAssigned TaskState = "assigned"

	// TaskStateWorking indicates the task is being worked on.
	TaskStateWorking TaskState = "working"

	// TaskStateInputRequired indicates the task is paused waiting for user input.
	TaskStateInputRequired TaskState = "input_required"

	// TaskStateWaitingForHandoff indicates the task is paused waiting for
	// another agent to pick it up.
	TaskStateWaitingForHandoff TaskState = "waiting_for_handoff"

	// TaskStateCompleted indicates the task has been completed.
	TaskStateCompleted TaskState = "completed"

	// TaskStateFailed indicates the task has failed.
	TaskStateFailed TaskState = "failed"

	// TaskStateCancelled indicates the task has been cancelled.
	TaskStateCancelled TaskState = "cancelled"
)

// IsTerminal reports whether the state admits no further transitions.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateFailed, TaskStateCancelled:
		return true
	}
	return false
}

// IsPaused reports whether the state is a non-terminal pause state that can
// resume to working on the next inbound message.
func (s TaskState) IsPaused() bool {
	return s == TaskStateInputRequired || s == TaskStateWaitingForHandoff
}

// TaskPriority represents the priority of a Task.
type TaskPriority string

const (
	// TaskPriorityLow is the lowest task priority.
	TaskPriorityLow TaskPriority = "low"

	// TaskPriorityNormal is the default task priority.
	TaskPriorityNormal TaskPriority = "normal"

	// TaskPriorityHigh is an elevated task priority.
	TaskPriorityHigh TaskPriority = "high"

	// TaskPriorityUrgent is the highest task priority.
	TaskPriorityUrgent TaskPriority = "urgent"
)

// MessageType identifies the payload kind of a Message.
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeJSON     MessageType = "json"
	MessageTypeMarkdown MessageType = "markdown"
	MessageTypeError    MessageType = "error"
	MessageTypeInfo     MessageType = "info"
)

// Message represents a message from an agent to a user or to another agent.
type Message struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	AgentID   string         `json:"agentId"`
	TaskID    string         `json:"taskId,omitempty"`
	ContextID string         `json:"contextId"`
	Timestamp time.Time      `json:"timestamp"`
	Type      MessageType    `json:"messageType"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// HistoryEntry is a single entry in a conversation history.
// Entries are append-only and retain insertion order.
type HistoryEntry struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Context represents one logical conversation: its ordered history and the
// shared mutable data agents use to cooperate (cart contents, customer
// profile, per-agent scratch data).
type Context struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId,omitempty"`
	SessionID string         `json:"sessionId"`
	History   []HistoryEntry `json:"conversationHistory"`
	Shared    map[string]any `json:"sharedData"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// AppendHistory appends an entry to the conversation history and refreshes
// the updated timestamp. History is never reordered or truncated.
func (c *Context) AppendHistory(role, content string) {
	now := time.Now().UTC()
	c.History = append(c.History, HistoryEntry{
		Role:      role,
		Content:   content,
		Timestamp: now,
	})
	c.UpdatedAt = now
}

// SharedValue returns the shared data stored under key, or nil if absent.
func (c *Context) SharedValue(key string) any {
	if c.Shared == nil {
		return nil
	}
	return c.Shared[key]
}

// SetSharedValue stores a value in the shared data bag and refreshes the
// updated timestamp. Writes are last-writer-wins; there is no optimistic
// concurrency check across executors.
func (c *Context) SetSharedValue(key string, value any) {
	if c.Shared == nil {
		c.Shared = make(map[string]any)
	}
	c.Shared[key] = value
	c.UpdatedAt = time.Now().UTC()
}

// Task represents one unit of work within a Context.
type Task struct {
	ID            string         `json:"id"`
	ContextID     string         `json:"contextId"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	State         TaskState      `json:"state"`
	Priority      TaskPriority   `json:"priority"`
	AssignedAgent string         `json:"assignedAgent,omitempty"`
	CreatedBy     string         `json:"createdBy,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Artifacts     []*Artifact    `json:"artifacts,omitempty"`
}

// UpdateState moves the task into newState and refreshes the updated
// timestamp. Transitions out of a terminal state are rejected.
func (t *Task) UpdateState(newState TaskState, message string) error {
	if t.State.IsTerminal() && newState != t.State {
		return &TaskTerminalError{TaskID: t.ID, State: t.State}
	}
	t.State = newState
	t.UpdatedAt = time.Now().UTC()
	if message != "" {
		if t.Metadata == nil {
			t.Metadata = make(map[string]any)
		}
		t.Metadata[MetadataLastMessage] = message
	}
	return nil
}

// Clone returns a deep copy of the task. Stores and event publishers work on
// copies so later task mutations do not leak into buffered events or other
// callers.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.Metadata = maps.Clone(t.Metadata)
	if t.Artifacts != nil {
		c.Artifacts = make([]*Artifact, len(t.Artifacts))
		for i, artifact := range t.Artifacts {
			c.Artifacts[i] = artifact.Clone()
		}
	}
	return &c
}

// MetadataLastMessage is the task metadata key holding the text of the most
// recent status message.
const MetadataLastMessage = "last_message"

// TaskStatus carries the lifecycle state of a task at a point in time,
// with an optional human-readable message and progress fraction.
type TaskStatus struct {
	State        TaskState `json:"state"`
	Message      *Message  `json:"message,omitempty"`
	Progress     float64   `json:"progress"`
	ErrorDetails string    `json:"errorDetails,omitempty"`
}

// ArtifactType identifies the payload kind of an Artifact.
type ArtifactType string

const (
	ArtifactTypeText  ArtifactType = "text"
	ArtifactTypeJSON  ArtifactType = "json"
	ArtifactTypeImage ArtifactType = "image"
	ArtifactTypeFile  ArtifactType = "file"
	ArtifactTypeURL   ArtifactType = "url"
)

// Artifact represents an output generated during task execution.
type Artifact struct {
	ID          string         `json:"id"`
	TaskID      string         `json:"taskId"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Type        ArtifactType   `json:"artifactType"`
	Content     any            `json:"content"`
	Size        int            `json:"size,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Clone returns a deep copy of the artifact.
func (a *Artifact) Clone() *Artifact {
	if a == nil {
		return nil
	}
	c := *a
	c.Metadata = maps.Clone(a.Metadata)
	return &c
}

// AgentCapabilities describes optional features an agent supports.
type AgentCapabilities struct {
	Streaming        bool `json:"streaming"`
	HandoffSupported bool `json:"handoffSupported"`
	ContextSharing   bool `json:"contextSharing"`
}

// AgentCard represents metadata about an agent, including its capabilities
// and the domains it serves. Discovery endpoints report these.
type AgentCard struct {
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	Version      string            `json:"version"`
	Domains      []string          `json:"domains"`
	Capabilities AgentCapabilities `json:"capabilities"`
}

// IntentClassification is the result of classifying a user message for
// routing: the chosen domain, confidence in [0, 1], and the reasoning behind
// the choice.
type IntentClassification struct {
	Domain     string  `json:"domain"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// HandoffRequest asks that a task be transferred to another domain's agent.
type HandoffRequest struct {
	TaskID      string         `json:"taskId"`
	TargetAgent string         `json:"targetAgent"`
	Reason      string         `json:"reason"`
	ContextData map[string]any `json:"contextData,omitempty"`
}
