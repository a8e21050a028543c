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

package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/teradata-labs/heddle/pkg/observability"
	"github.com/teradata-labs/heddle/pkg/shuttle"
)

// Span and metric names emitted by the instrumented provider.
const (
	SpanCompletion      = "llm.completion"
	MetricCalls         = "llm.calls"
	MetricErrors        = "llm.errors"
	MetricInputTokens   = "llm.tokens.input"
	MetricOutputTokens  = "llm.tokens.output"
	MetricLatencyMillis = "llm.latency_ms"
)

// InstrumentedProvider wraps any Provider with span and metric
// instrumentation. The wrapper is transparent: it changes nothing about
// the request or response.
type InstrumentedProvider struct {
	provider Provider
	tracer   observability.Tracer
}

// NewInstrumentedProvider wraps a provider with observability.
func NewInstrumentedProvider(provider Provider, tracer observability.Tracer) *InstrumentedProvider {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	return &InstrumentedProvider{provider: provider, tracer: tracer}
}

// Name returns the underlying provider name.
func (p *InstrumentedProvider) Name() string { return p.provider.Name() }

// Model returns the underlying model identifier.
func (p *InstrumentedProvider) Model() string { return p.provider.Model() }

// Chat delegates to the underlying provider, recording a span and
// per-call metrics.
func (p *InstrumentedProvider) Chat(ctx context.Context, messages []Message, tools []shuttle.Tool) (*Response, error) {
	_, span := p.tracer.StartSpan(ctx, SpanCompletion)
	defer p.tracer.EndSpan(span)

	span.SetAttribute("llm.provider", p.provider.Name())
	span.SetAttribute("llm.model", p.provider.Model())
	span.SetAttribute("llm.messages.count", len(messages))
	span.SetAttribute("llm.tools.count", len(tools))

	labels := map[string]string{
		"provider": p.provider.Name(),
		"model":    p.provider.Model(),
	}

	start := time.Now()
	resp, err := p.provider.Chat(ctx, messages, tools)
	elapsed := time.Since(start)

	span.SetAttribute("llm.duration_ms", elapsed.Milliseconds())
	p.tracer.RecordMetric(MetricCalls, 1, labels)
	p.tracer.RecordMetric(MetricLatencyMillis, float64(elapsed.Milliseconds()), labels)

	if err != nil {
		span.SetAttribute("error.type", fmt.Sprintf("%T", err))
		span.SetAttribute("error.message", err.Error())
		p.tracer.RecordMetric(MetricErrors, 1, labels)
		return nil, err
	}

	span.SetAttribute("llm.tokens.input", resp.Usage.InputTokens)
	span.SetAttribute("llm.tokens.output", resp.Usage.OutputTokens)
	span.SetAttribute("llm.stop_reason", resp.StopReason)
	p.tracer.RecordMetric(MetricInputTokens, float64(resp.Usage.InputTokens), labels)
	p.tracer.RecordMetric(MetricOutputTokens, float64(resp.Usage.OutputTokens), labels)

	return resp, nil
}

var _ Provider = (*InstrumentedProvider)(nil)
