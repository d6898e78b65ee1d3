// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package handler implements the request handler: the entry point that turns
// an inbound user message into a tracked, asynchronously executing task and
// keeps the task store reconciled with status events from the bus.
package handler
