// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"time"

	"github.com/go-a2a/orchestra"
)

// TaskFilter restricts the tasks returned by TaskStore.List.
// Zero-valued fields match everything.
type TaskFilter struct {
	// ContextID restricts the list to tasks owned by a context.
	ContextID string

	// State restricts the list to tasks in a lifecycle state.
	State orchestra.TaskState
}

// TaskStore is the storage interface for Task entities.
//
// Update and Delete treat an unknown id as a silent no-op: Update returns the
// input unchanged and Delete returns false. Callers that need existence
// guarantees must check with Get first.
type TaskStore interface {
	// Create persists a new task.
	Create(ctx context.Context, task *orchestra.Task) (*orchestra.Task, error)

	// Get returns the task with the given id, or nil if absent.
	Get(ctx context.Context, taskID string) (*orchestra.Task, error)

	// Update persists changes to an existing task, refreshing its UpdatedAt
	// timestamp. Unknown ids are a silent no-op.
	Update(ctx context.Context, task *orchestra.Task) (*orchestra.Task, error)

	// List returns tasks matching the filter, newest created first,
	// capped at limit when limit is positive.
	List(ctx context.Context, filter TaskFilter, limit int) ([]*orchestra.Task, error)

	// Delete removes a task, reporting whether it existed.
	Delete(ctx context.Context, taskID string) (bool, error)

	// CleanupOlderThan removes tasks created before now-maxAge and returns
	// the count removed.
	CleanupOlderThan(ctx context.Context, maxAge time.Duration) (int, error)
}

// ContextStore is the storage interface for Context entities. It has the
// same silent-no-op semantics as TaskStore.
type ContextStore interface {
	// Create persists a new context.
	Create(ctx context.Context, c *orchestra.Context) (*orchestra.Context, error)

	// Get returns the context with the given id, or nil if absent.
	Get(ctx context.Context, contextID string) (*orchestra.Context, error)

	// Update persists changes to an existing context, refreshing its
	// UpdatedAt timestamp. Unknown ids are a silent no-op.
	Update(ctx context.Context, c *orchestra.Context) (*orchestra.Context, error)

	// List returns contexts, optionally filtered by owning user, newest
	// created first, capped at limit when limit is positive.
	List(ctx context.Context, userID string, limit int) ([]*orchestra.Context, error)

	// Delete removes a context, reporting whether it existed.
	Delete(ctx context.Context, contextID string) (bool, error)

	// CleanupOlderThan removes contexts created before now-maxAge and
	// returns the count removed.
	CleanupOlderThan(ctx context.Context, maxAge time.Duration) (int, error)
}
