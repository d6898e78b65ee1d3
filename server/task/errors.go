// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"errors"
	"fmt"
)

var (
	// ErrNilEntity is returned when a nil task or context is passed to a store.
	ErrNilEntity = errors.New("entity cannot be nil")

	// ErrEmptyID is returned when an empty id is passed to a store.
	ErrEmptyID = errors.New("id cannot be empty")
)

// StoreError wraps a storage-backend failure with the operation and entity id
// involved.
type StoreError struct {
	Op  string
	ID  string
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %s: %v", e.Op, e.ID, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError creates a StoreError.
func NewStoreError(op, id string, err error) *StoreError {
	return &StoreError{Op: op, ID: id, Err: err}
}
