// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/go-json-experiment/json"

	"github.com/go-a2a/orchestra"
)

// JSONColumn stores an arbitrary JSON-encodable value in a single database
// column. It backs the metadata, artifact, history and shared-data fields of
// the persisted models.
type JSONColumn[T any] struct {
	Data T
}

// Value implements the driver.Valuer interface for database storage.
func (c JSONColumn[T]) Value() (driver.Value, error) {
	return json.Marshal(c.Data)
}

// Scan implements the sql.Scanner interface for database retrieval.
func (c *JSONColumn[T]) Scan(value any) error {
	if value == nil {
		var zero T
		c.Data = zero
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONColumn", value)
	}

	return json.Unmarshal(raw, &c.Data)
}

// TaskModel is the GORM model for persisted tasks.
type TaskModel struct {
	ID            string                               `gorm:"primaryKey;size:36"`
	ContextID     string                               `gorm:"index;size:36;column:context_id"`
	Title         string                               `gorm:"size:255"`
	Description   string                               `gorm:"type:text"`
	State         string                               `gorm:"index;size:32"`
	Priority      string                               `gorm:"size:16"`
	AssignedAgent string                               `gorm:"size:128;column:assigned_agent"`
	CreatedBy     string                               `gorm:"size:128;column:created_by"`
	CreatedAt     time.Time                            `gorm:"index;column:created_at"`
	UpdatedAt     time.Time                            `gorm:"column:updated_at"`
	Metadata      JSONColumn[map[string]any]           `gorm:"type:json"`
	Artifacts     JSONColumn[[]*orchestra.Artifact]    `gorm:"type:json"`
}

// TableName returns the table name for TaskModel.
func (TaskModel) TableName() string { return "tasks" }

// NewTaskModelFromTask converts a task to its database model.
func NewTaskModelFromTask(task *orchestra.Task) *TaskModel {
	return &TaskModel{
		ID:            task.ID,
		ContextID:     task.ContextID,
		Title:         task.Title,
		Description:   task.Description,
		State:         string(task.State),
		Priority:      string(task.Priority),
		AssignedAgent: task.AssignedAgent,
		CreatedBy:     task.CreatedBy,
		CreatedAt:     task.CreatedAt,
		UpdatedAt:     task.UpdatedAt,
		Metadata:      JSONColumn[map[string]any]{Data: task.Metadata},
		Artifacts:     JSONColumn[[]*orchestra.Artifact]{Data: task.Artifacts},
	}
}

// ToTask converts the database model back to a task.
func (m *TaskModel) ToTask() *orchestra.Task {
	return &orchestra.Task{
		ID:            m.ID,
		ContextID:     m.ContextID,
		Title:         m.Title,
		Description:   m.Description,
		State:         orchestra.TaskState(m.State),
		Priority:      orchestra.TaskPriority(m.Priority),
		AssignedAgent: m.AssignedAgent,
		CreatedBy:     m.CreatedBy,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
		Metadata:      m.Metadata.Data,
		Artifacts:     m.Artifacts.Data,
	}
}

// ContextModel is the GORM model for persisted contexts.
type ContextModel struct {
	ID        string                                 `gorm:"primaryKey;size:36"`
	UserID    string                                 `gorm:"index;size:128;column:user_id"`
	SessionID string                                 `gorm:"index;size:128;column:session_id"`
	History   JSONColumn[[]orchestra.HistoryEntry]   `gorm:"type:json"`
	Shared    JSONColumn[map[string]any]             `gorm:"type:json;column:shared_data"`
	CreatedAt time.Time                              `gorm:"index;column:created_at"`
	UpdatedAt time.Time                              `gorm:"column:updated_at"`
}

// TableName returns the table name for ContextModel.
func (ContextModel) TableName() string { return "contexts" }

// NewContextModelFromContext converts a context to its database model.
func NewContextModelFromContext(c *orchestra.Context) *ContextModel {
	return &ContextModel{
		ID:        c.ID,
		UserID:    c.UserID,
		SessionID: c.SessionID,
		History:   JSONColumn[[]orchestra.HistoryEntry]{Data: c.History},
		Shared:    JSONColumn[map[string]any]{Data: c.Shared},
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// ToContext converts the database model back to a context.
func (m *ContextModel) ToContext() *orchestra.Context {
	return &orchestra.Context{
		ID:        m.ID,
		UserID:    m.UserID,
		SessionID: m.SessionID,
		History:   m.History.Data,
		Shared:    m.Shared.Data,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
