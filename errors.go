// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package orchestra

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyMessage is returned when a request carries no message text.
	ErrEmptyMessage = errors.New("message cannot be empty")

	// ErrEmptySessionID is returned when a request carries no session id.
	ErrEmptySessionID = errors.New("session id cannot be empty")
)

// TaskNotFoundError is returned when a task id does not resolve to a task.
type TaskNotFoundError struct {
	TaskID string
}

// Error implements the error interface.
func (e TaskNotFoundError) Error() string {
	return fmt.Sprintf("task %s not found", e.TaskID)
}

// ContextNotFoundError is returned when an explicitly supplied context id
// does not resolve to a context.
type ContextNotFoundError struct {
	ContextID string
}

// Error implements the error interface.
func (e ContextNotFoundError) Error() string {
	return fmt.Sprintf("context %s not found", e.ContextID)
}

// TaskTerminalError is returned when a state transition is attempted on a
// task that is already in a terminal state.
type TaskTerminalError struct {
	TaskID string
	State  TaskState
}

// Error implements the error interface.
func (e TaskTerminalError) Error() string {
	return fmt.Sprintf("task %s is terminal (%s); no further transitions", e.TaskID, e.State)
}

// ValidationError is returned for malformed or missing request fields.
// It is surfaced synchronously to the caller and never becomes a task.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
