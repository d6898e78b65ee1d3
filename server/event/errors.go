// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package event

import "errors"

var (
	// ErrBusClosed is returned when attempting to use a closed bus.
	ErrBusClosed = errors.New("event bus is closed")

	// ErrInvalidBufferSize is returned when attempting to create a bus with
	// a negative buffer size.
	ErrInvalidBufferSize = errors.New("max buffer size must be greater than 0")

	// ErrNilEvent is returned when attempting to publish a nil event.
	ErrNilEvent = errors.New("event cannot be nil")
)
