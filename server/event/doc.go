// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package event provides the event bus that decouples agent executors from
// their consumers. Events are retained in a bounded, time-expiring buffer and
// fanned out to type- and context-scoped subscribers; polling consumers use
// Query against the same buffer.
package event
