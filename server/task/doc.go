// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package task provides storage for Task and Context entities, plus the push
// notification config store and sender driven by the request handler.
// Both stores ship an in-memory implementation and a GORM-backed database
// implementation behind the same interface.
package task
