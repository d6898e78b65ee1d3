// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent provides the coordinator that classifies inbound messages
// and dispatches them to registered domain agents, the keyword classifier it
// falls back on, and adapters that wrap text-producing processors as domain
// agents.
package agent
