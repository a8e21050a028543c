// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package observability provides the tracing seam for the heddle engine.
// Implementations export spans to a backend; the no-op tracer keeps the
// hot path allocation-free when tracing is disabled.
package observability

import (
	"context"
	"sync"
	"time"
)

// Span represents one traced operation.
// Thread-safe: attributes may be set from concurrent goroutines.
type Span struct {
	mu sync.Mutex

	Name      string
	StartTime time.Time
	EndTime   time.Time

	attributes map[string]interface{}
}

// SetAttribute records a key/value attribute on the span.
func (s *Span) SetAttribute(key string, value interface{}) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attributes == nil {
		s.attributes = make(map[string]interface{})
	}
	s.attributes[key] = value
}

// Attributes returns a copy of the span's attributes.
func (s *Span) Attributes() map[string]interface{} {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]interface{}, len(s.attributes))
	for k, v := range s.attributes {
		out[k] = v
	}
	return out
}

// Tracer instruments engine operations.
//
// Thread-safe: all methods can be called concurrently.
type Tracer interface {
	// StartSpan creates a new span and returns a context carrying it.
	StartSpan(ctx context.Context, name string) (context.Context, *Span)

	// EndSpan completes a span and exports it. Call via defer.
	EndSpan(span *Span)

	// RecordMetric records a point-in-time metric value with labels.
	RecordMetric(name string, value float64, labels map[string]string)

	// Flush forces export of buffered data. Called on shutdown.
	Flush(ctx context.Context) error
}

type contextKey string

const spanContextKey contextKey = "heddle.span"

// SpanFromContext retrieves the current span from context, if any.
func SpanFromContext(ctx context.Context) *Span {
	if span, ok := ctx.Value(spanContextKey).(*Span); ok {
		return span
	}
	return nil
}

// ContextWithSpan returns a new context with the span attached.
func ContextWithSpan(ctx context.Context, span *Span) context.Context {
	return context.WithValue(ctx, spanContextKey, span)
}

// NoOpTracer discards all spans and metrics.
type NoOpTracer struct{}

// NewNoOpTracer returns a tracer that records nothing.
func NewNoOpTracer() *NoOpTracer { return &NoOpTracer{} }

// StartSpan implements Tracer.
func (t *NoOpTracer) StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	span := &Span{Name: name, StartTime: time.Now()}
	return ContextWithSpan(ctx, span), span
}

// EndSpan implements Tracer.
func (t *NoOpTracer) EndSpan(span *Span) {
	if span != nil {
		span.EndTime = time.Now()
	}
}

// RecordMetric implements Tracer.
func (t *NoOpTracer) RecordMetric(string, float64, map[string]string) {}

// Flush implements Tracer.
func (t *NoOpTracer) Flush(context.Context) error { return nil }

var _ Tracer = (*NoOpTracer)(nil)
