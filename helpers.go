// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package orchestra

import (
	"time"
	"unicode/utf8"

	"github.com/go-json-experiment/json"
	"github.com/google/uuid"
)

// taskTitleLimit bounds the auto-generated task title length.
const taskTitleLimit = 50

// NewTask creates a task for the given inbound message. The task starts in
// the created state with normal priority and records the originating message
// id in its metadata.
func NewTask(message *Message) *Task {
	now := time.Now().UTC()
	title := message.Content
	if len(title) > taskTitleLimit {
		// Back up to a rune boundary so the cut never splits a multibyte
		// character.
		cut := taskTitleLimit
		for cut > 0 && !utf8.RuneStart(title[cut]) {
			cut--
		}
		title = title[:cut] + "..."
	}
	return &Task{
		ID:          uuid.NewString(),
		ContextID:   message.ContextID,
		Title:       "Task for: " + title,
		Description: message.Content,
		State:       TaskStateCreated,
		Priority:    TaskPriorityNormal,
		CreatedBy:   message.AgentID,
		CreatedAt:   now,
		UpdatedAt:   now,
		Metadata: map[string]any{
			"original_message_id": message.ID,
		},
	}
}

// NewContext creates a conversation context for a session. initialData, if
// non-nil, seeds the shared data bag.
func NewContext(sessionID, userID string, initialData map[string]any) *Context {
	now := time.Now().UTC()
	shared := initialData
	if shared == nil {
		shared = make(map[string]any)
	}
	return &Context{
		ID:        uuid.NewString(),
		UserID:    userID,
		SessionID: sessionID,
		Shared:    shared,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewAgentTextMessage creates a text message attributed to agentID.
func NewAgentTextMessage(content, contextID, taskID, agentID string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Content:   content,
		AgentID:   agentID,
		TaskID:    taskID,
		ContextID: contextID,
		Timestamp: time.Now().UTC(),
		Type:      MessageTypeText,
	}
}

// NewTextArtifact creates a text artifact for a task. Size is the UTF-8 byte
// length of the text.
func NewTextArtifact(name, description, text, taskID string) *Artifact {
	return &Artifact{
		ID:          uuid.NewString(),
		TaskID:      taskID,
		Name:        name,
		Description: description,
		Type:        ArtifactTypeText,
		Content:     text,
		Size:        len(text),
		CreatedAt:   time.Now().UTC(),
	}
}

// NewJSONArtifact creates a JSON artifact for a task. Size reflects the
// encoded length of the data; a value that cannot be encoded yields size 0.
func NewJSONArtifact(name, description string, data map[string]any, taskID string) *Artifact {
	size := 0
	if encoded, err := json.Marshal(data); err == nil {
		size = len(encoded)
	}
	return &Artifact{
		ID:          uuid.NewString(),
		TaskID:      taskID,
		Name:        name,
		Description: description,
		Type:        ArtifactTypeJSON,
		Content:     data,
		Size:        size,
		CreatedAt:   time.Now().UTC(),
	}
}
