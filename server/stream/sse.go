// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"fmt"
	"io"
	"time"

	"github.com/go-json-experiment/json"

	"github.com/go-a2a/orchestra"
)

// Frame is the wire shape of one event on an SSE or WebSocket stream.
type Frame struct {
	SessionID  string              `json:"sessionId,omitempty"`
	ContextID  string              `json:"contextId"`
	Type       orchestra.EventType `json:"type"`
	Timestamp  string              `json:"timestamp"`
	TaskID     string              `json:"taskId,omitempty"`
	State      orchestra.TaskState `json:"status,omitempty"`
	IsComplete bool                `json:"isComplete,omitempty"`
	Content    string              `json:"content,omitempty"`
	Agent      string              `json:"agent,omitempty"`
	Artifact   *FrameArtifact      `json:"artifact,omitempty"`
	Error      string              `json:"error,omitempty"`
}

// FrameArtifact is the artifact projection carried in a Frame.
type FrameArtifact struct {
	Name    string                 `json:"name"`
	Type    orchestra.ArtifactType `json:"type"`
	Content any                    `json:"content"`
}

// NewFrame projects a bus event into its stream wire shape.
func NewFrame(sessionID string, ev orchestra.Event) Frame {
	meta := ev.Meta()
	frame := Frame{
		SessionID: sessionID,
		ContextID: meta.ContextID,
		Type:      ev.Kind(),
		Timestamp: meta.Timestamp.Format(time.RFC3339Nano),
	}

	switch e := ev.(type) {
	case *orchestra.TaskCreatedEvent:
		if e.Task != nil {
			frame.TaskID = e.Task.ID
		}
	case *orchestra.TaskStatusUpdateEvent:
		frame.TaskID = e.TaskID
		frame.State = e.Status.State
		frame.IsComplete = e.Final
		if e.Status.Message != nil {
			frame.Content = e.Status.Message.Content
			frame.Agent = e.Status.Message.AgentID
		}
	case *orchestra.TaskArtifactUpdateEvent:
		frame.TaskID = e.TaskID
		if e.Artifact != nil {
			frame.Artifact = &FrameArtifact{
				Name:    e.Artifact.Name,
				Type:    e.Artifact.Type,
				Content: e.Artifact.Content,
			}
		}
	case *orchestra.AgentHandoffEvent:
		frame.TaskID = e.TaskID
		frame.Agent = e.ToAgent
		frame.Content = e.Reason
	case *orchestra.SystemErrorEvent:
		frame.Error = e.Message
	}

	return frame
}

// WriteSSE writes the frame as one server-sent event.
func WriteSSE(w io.Writer, frame Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal stream frame: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write stream frame: %w", err)
	}
	return nil
}
