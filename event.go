// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package orchestra

import (
	"time"

	"github.com/google/uuid"
)

// EventType is the closed set of event tags published to the event bus.
type EventType string

const (
	// EventTypeTaskCreated is published when a new task enters the system.
	EventTypeTaskCreated EventType = "task_created"

	// EventTypeTaskStatusUpdate is published whenever a task's status changes.
	EventTypeTaskStatusUpdate EventType = "task_status_update"

	// EventTypeTaskArtifactUpdate is published when a task produces or
	// extends an artifact.
	EventTypeTaskArtifactUpdate EventType = "task_artifact_update"

	// EventTypeAgentHandoff is published when an agent requests that a task
	// be transferred to another agent.
	EventTypeAgentHandoff EventType = "agent_handoff"

	// EventTypeAgentRegistration is published when an agent registers with
	// the system.
	EventTypeAgentRegistration EventType = "agent_registration"

	// EventTypeAgentHeartbeat is published periodically by live agents.
	EventTypeAgentHeartbeat EventType = "agent_heartbeat"

	// EventTypeSystemError is published for failures that are not tied to a
	// single task.
	EventTypeSystemError EventType = "system_error"
)

// EventMeta is the envelope shared by all event kinds. Events are immutable
// once published; the bus stamps Sequence at publish time and consumers
// de-duplicate by ID.
type EventMeta struct {
	ID          string         `json:"id"`
	ContextID   string         `json:"contextId"`
	Timestamp   time.Time      `json:"timestamp"`
	SourceAgent string         `json:"sourceAgent,omitempty"`
	Sequence    uint64         `json:"sequence,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Meta returns the event envelope. It is a pointer so the bus can stamp the
// per-context sequence number during publish.
func (m *EventMeta) Meta() *EventMeta { return m }

// NewEventMeta creates an event envelope with a fresh id and the current time.
func NewEventMeta(contextID, sourceAgent string) EventMeta {
	return EventMeta{
		ID:          uuid.NewString(),
		ContextID:   contextID,
		Timestamp:   time.Now().UTC(),
		SourceAgent: sourceAgent,
	}
}

// Event represents any event that can be published to the event bus.
type Event interface {
	// Meta returns the envelope shared by all event kinds.
	Meta() *EventMeta
	// Kind returns the event type tag for discrimination.
	Kind() EventType
}

// TaskCreatedEvent is published when a new task enters the system.
type TaskCreatedEvent struct {
	EventMeta
	Task *Task `json:"task"`
}

// Kind implements [Event].
func (*TaskCreatedEvent) Kind() EventType { return EventTypeTaskCreated }

// TaskStatusUpdateEvent is published when a task's status changes.
// Final marks the last status update an executor will publish for the task.
type TaskStatusUpdateEvent struct {
	EventMeta
	TaskID string     `json:"taskId"`
	Status TaskStatus `json:"status"`
	Final  bool       `json:"final"`
}

// Kind implements [Event].
func (*TaskStatusUpdateEvent) Kind() EventType { return EventTypeTaskStatusUpdate }

// TaskArtifactUpdateEvent is published when a task artifact is created or
// extended. Append distinguishes chunk appends from whole replacements and
// LastChunk marks the end of a chunked artifact.
type TaskArtifactUpdateEvent struct {
	EventMeta
	TaskID    string    `json:"taskId"`
	Artifact  *Artifact `json:"artifact"`
	Append    bool      `json:"append"`
	LastChunk bool      `json:"lastChunk"`
}

// Kind implements [Event].
func (*TaskArtifactUpdateEvent) Kind() EventType { return EventTypeTaskArtifactUpdate }

// AgentHandoffEvent is published when an agent requests that a task be
// transferred to another agent.
type AgentHandoffEvent struct {
	EventMeta
	TaskID    string         `json:"taskId"`
	FromAgent string         `json:"fromAgent"`
	ToAgent   string         `json:"toAgent"`
	Reason    string         `json:"handoffReason"`
	Data      map[string]any `json:"handoffData,omitempty"`
}

// Kind implements [Event].
func (*AgentHandoffEvent) Kind() EventType { return EventTypeAgentHandoff }

// AgentRegistrationEvent is published when an agent registers with the system.
type AgentRegistrationEvent struct {
	EventMeta
	Card AgentCard `json:"agentCard"`
}

// Kind implements [Event].
func (*AgentRegistrationEvent) Kind() EventType { return EventTypeAgentRegistration }

// AgentHeartbeatEvent is published periodically by live agents.
type AgentHeartbeatEvent struct {
	EventMeta
	Agent string `json:"agent"`
}

// Kind implements [Event].
func (*AgentHeartbeatEvent) Kind() EventType { return EventTypeAgentHeartbeat }

// SystemErrorEvent reports a failure not tied to a single task.
type SystemErrorEvent struct {
	EventMeta
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Kind implements [Event].
func (*SystemErrorEvent) Kind() EventType { return EventTypeSystemError }

// Ensure event types implement Event.
var (
	_ Event = (*TaskCreatedEvent)(nil)
	_ Event = (*TaskStatusUpdateEvent)(nil)
	_ Event = (*TaskArtifactUpdateEvent)(nil)
	_ Event = (*AgentHandoffEvent)(nil)
	_ Event = (*AgentRegistrationEvent)(nil)
	_ Event = (*AgentHeartbeatEvent)(nil)
	_ Event = (*SystemErrorEvent)(nil)
)

// IsFinalEvent reports whether the event terminates its task's event stream.
// A final event is a TaskStatusUpdateEvent with Final set.
func IsFinalEvent(event Event) bool {
	if e, ok := event.(*TaskStatusUpdateEvent); ok {
		return e.Final
	}
	return false
}
