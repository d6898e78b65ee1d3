// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent_execution defines the capability surface every task-handling
// agent implements, and a reusable base with execution metrics and error
// containment: a failing or panicking executor is translated into a terminal
// failed status event, never an error surfaced to the request handler.
package agent_execution
