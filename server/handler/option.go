// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Option represents an option for configuring the [DefaultRequestHandler].
type Option func(*DefaultRequestHandler)

// WithLogger sets the [*slog.Logger] for the [DefaultRequestHandler].
func WithLogger(logger *slog.Logger) Option {
	return func(h *DefaultRequestHandler) {
		h.logger = logger
	}
}

// WithTracer sets the [trace.Tracer] for the [DefaultRequestHandler].
func WithTracer(tracer trace.Tracer) Option {
	return func(h *DefaultRequestHandler) {
		h.tracer = tracer
	}
}

// noopTracer is the default tracer when none is configured.
var noopTracer = noop.NewTracerProvider().Tracer("github.com/go-a2a/orchestra/server/handler")
