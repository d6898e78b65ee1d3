// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package agent_execution

import (
	"maps"
	"strings"
	"time"

	"github.com/go-a2a/orchestra"
)

// Shared-data keys agents use to cooperate on a conversation.
const (
	SharedKeyCart     = "cart"
	SharedKeyCustomer = "customer"
)

// RequestContext bundles everything an agent executor needs to process one
// request: the inbound message, the owning conversation context, and the
// current task if one exists yet.
type RequestContext struct {
	// Message is the inbound message being processed.
	Message *orchestra.Message

	// Context is the conversation this request belongs to.
	Context *orchestra.Context

	// Task is the current task, or nil if none exists yet. The request
	// handler fills it in once the task is created.
	Task *orchestra.Task

	// AdditionalData carries request-scoped data for the executor.
	AdditionalData map[string]any

	// StartTime records when this request context was created.
	StartTime time.Time
}

// NewRequestContext creates a request context for a message and conversation.
func NewRequestContext(message *orchestra.Message, c *orchestra.Context) *RequestContext {
	return &RequestContext{
		Message:        message,
		Context:        c,
		AdditionalData: make(map[string]any),
		StartTime:      time.Now().UTC(),
	}
}

// WithTask sets the current task.
func (rc *RequestContext) WithTask(task *orchestra.Task) *RequestContext {
	rc.Task = task
	return rc
}

// WithAdditionalData merges data into the request-scoped data bag.
func (rc *RequestContext) WithAdditionalData(data map[string]any) *RequestContext {
	if rc.AdditionalData == nil {
		rc.AdditionalData = make(map[string]any)
	}
	maps.Copy(rc.AdditionalData, data)
	return rc
}

// UserInput returns the trimmed message content.
func (rc *RequestContext) UserInput() string {
	return strings.TrimSpace(rc.Message.Content)
}

// ConversationHistory returns the trailing limit entries of the conversation
// history, or the whole history when limit is not positive.
func (rc *RequestContext) ConversationHistory(limit int) []orchestra.HistoryEntry {
	history := rc.Context.History
	if limit > 0 && len(history) > limit {
		return history[len(history)-limit:]
	}
	return history
}

// SharedValue returns a value from the conversation's shared data bag.
func (rc *RequestContext) SharedValue(key string) any {
	return rc.Context.SharedValue(key)
}

// SetSharedValue stores a value in the conversation's shared data bag.
// Writes are last-writer-wins across concurrent executors.
func (rc *RequestContext) SetSharedValue(key string, value any) {
	rc.Context.SetSharedValue(key, value)
}

// Cart returns the shopping cart from shared data, or nil if absent.
func (rc *RequestContext) Cart() []any {
	cart, _ := rc.SharedValue(SharedKeyCart).([]any)
	return cart
}

// SetCart stores the shopping cart in shared data.
func (rc *RequestContext) SetCart(cart []any) {
	rc.SetSharedValue(SharedKeyCart, cart)
}

// CustomerData returns the customer profile from shared data, or an empty
// map if absent.
func (rc *RequestContext) CustomerData() map[string]any {
	if data, ok := rc.SharedValue(SharedKeyCustomer).(map[string]any); ok {
		return data
	}
	return map[string]any{}
}

// SetCustomerData stores the customer profile in shared data.
func (rc *RequestContext) SetCustomerData(data map[string]any) {
	rc.SetSharedValue(SharedKeyCustomer, data)
}
