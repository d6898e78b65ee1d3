// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package stream delivers a context's bus events as an ordered push stream,
// suitable for SSE and WebSocket consumers. A stream combines a live bus
// subscription with a polling fallback over the bus buffer, de-duplicates by
// event id, and enforces an overall wait budget.
package stream
