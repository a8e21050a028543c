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

package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/teradata-labs/heddle/pkg/history"
	"github.com/teradata-labs/heddle/pkg/llm"
	"github.com/teradata-labs/heddle/pkg/shuttle"
	"github.com/teradata-labs/heddle/pkg/types"
)

// DefaultParseRetries is how many corrective round-trips the planner
// makes when the model emits output that does not parse as a plan.
const DefaultParseRetries = 2

// DefaultObservationLimit truncates rendered observations in the
// prompt. Long tool payloads drown the plan otherwise.
const DefaultObservationLimit = 2000

// ReActPlanner drives a plan/act/observe loop over an LLM. The model
// is prompted to emit a single JSON object per turn: either the next
// action(s) or a final response. Native tool calls are honored when the
// provider returns them.
type ReActPlanner struct {
	provider         llm.Provider
	tools            []shuttle.Tool
	filter           history.Filter
	systemPrompt     string
	parseRetries     int
	observationLimit int
	maxEntries       int
	logger           *zap.Logger
}

// ReActOption configures a ReActPlanner.
type ReActOption func(*ReActPlanner)

// WithHistoryFilter sets the projection applied to history before
// prompt rendering.
func WithHistoryFilter(filter history.Filter) ReActOption {
	return func(p *ReActPlanner) { p.filter = filter }
}

// WithSystemPrompt prepends extra role instructions to the built-in
// planning contract.
func WithSystemPrompt(prompt string) ReActOption {
	return func(p *ReActPlanner) { p.systemPrompt = prompt }
}

// WithParseRetries sets the corrective retry budget for unparseable
// model output.
func WithParseRetries(n int) ReActOption {
	return func(p *ReActPlanner) { p.parseRetries = n }
}

// WithObservationLimit caps the rendered length of each observation.
func WithObservationLimit(n int) ReActOption {
	return func(p *ReActPlanner) { p.observationLimit = n }
}

// WithMaxHistoryEntries keeps only the last n projected entries in the
// prompt. Zero disables the cap.
func WithMaxHistoryEntries(n int) ReActOption {
	return func(p *ReActPlanner) { p.maxEntries = n }
}

// WithLogger sets the planner logger.
func WithLogger(logger *zap.Logger) ReActOption {
	return func(p *ReActPlanner) { p.logger = logger }
}

// NewReActPlanner creates a planner over the provider and tool set.
func NewReActPlanner(provider llm.Provider, tools []shuttle.Tool, opts ...ReActOption) *ReActPlanner {
	p := &ReActPlanner{
		provider:         provider,
		tools:            tools,
		filter:           history.WorkerFilter{},
		parseRetries:     DefaultParseRetries,
		observationLimit: DefaultObservationLimit,
		logger:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan renders the visible history, asks the model for the next step,
// and classifies the reply. Unparseable output is retried with a
// corrective message; if the budget runs out an UnrecognizedOutcome is
// returned so the engine can record a parse-error observation.
func (p *ReActPlanner) Plan(ctx context.Context, task string, hist []types.Message) (Outcome, error) {
	visible := hist
	if p.filter != nil {
		visible = p.filter.Apply(hist, history.FilterContext{PhaseID: history.PhaseIDFrom(ctx)})
	}
	if p.maxEntries > 0 && len(visible) > p.maxEntries {
		visible = visible[len(visible)-p.maxEntries:]
	}

	messages := []llm.Message{
		{Role: "system", Content: p.buildSystemPrompt()},
		{Role: "user", Content: p.buildUserPrompt(task, visible)},
	}

	var lastRaw string
	for attempt := 0; attempt <= p.parseRetries; attempt++ {
		resp, err := p.provider.Chat(ctx, messages, p.tools)
		if err != nil {
			return nil, fmt.Errorf("planning call: %w", err)
		}

		// Native function calling wins over text parsing.
		if len(resp.ToolCalls) > 0 {
			actions := make([]types.Action, 0, len(resp.ToolCalls))
			for _, tc := range resp.ToolCalls {
				actions = append(actions, types.Action{ToolName: tc.Name, ToolArgs: tc.Input})
			}
			if len(actions) == 1 {
				return ActionOutcome{Action: actions[0]}, nil
			}
			return ActionsOutcome{Actions: actions}, nil
		}

		outcome, parseErr := ParseOutcome(resp.Content)
		if parseErr == nil {
			return outcome, nil
		}
		lastRaw = resp.Content
		p.logger.Debug("plan output did not parse, retrying",
			zap.Int("attempt", attempt),
			zap.Error(parseErr))

		messages = append(messages,
			llm.Message{Role: "assistant", Content: resp.Content},
			llm.Message{Role: "user", Content: "Your previous reply could not be parsed: " + parseErr.Error() +
				". Reply again with exactly one JSON object and no surrounding prose."})
	}

	return UnrecognizedOutcome{Raw: lastRaw}, nil
}

func (p *ReActPlanner) buildSystemPrompt() string {
	var b strings.Builder
	if p.systemPrompt != "" {
		b.WriteString(p.systemPrompt)
		b.WriteString("\n\n")
	}
	b.WriteString("You decide the next step of a task. Reply with exactly one JSON object, no prose, in one of these shapes:\n")
	b.WriteString(`{"action": {"tool_name": "...", "tool_args": {...}}}` + "\n")
	b.WriteString(`{"actions": [{"tool_name": "...", "tool_args": {...}}, ...]}` + "\n")
	b.WriteString(`{"final_response": {"operation": "display_message", "payload": {"message": "..."}, "human_readable_summary": "..."}}` + "\n\n")
	b.WriteString("When the task is done, call the complete_task tool or return a final_response.\n")

	if len(p.tools) > 0 {
		b.WriteString("\nAvailable tools:\n")
		for _, tool := range p.tools {
			b.WriteString("- ")
			b.WriteString(tool.Name())
			b.WriteString(": ")
			b.WriteString(tool.Description())
			if schema := tool.InputSchema(); schema != nil {
				if raw, err := schema.ToJSON(); err == nil {
					b.WriteString(" args=")
					b.Write(raw)
				}
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (p *ReActPlanner) buildUserPrompt(task string, visible []types.Message) string {
	var b strings.Builder
	b.WriteString("Task: ")
	b.WriteString(task)
	if len(visible) > 0 {
		b.WriteString("\n\nExecution so far:\n")
		b.WriteString(RenderHistory(visible, p.observationLimit))
	}
	b.WriteString("\n\nWhat is the next step?")
	return b.String()
}

// RenderHistory formats memory entries for prompt inclusion, truncating
// each rendered entry at limit characters (0 disables truncation).
func RenderHistory(entries []types.Message, limit int) string {
	var b strings.Builder
	for _, entry := range entries {
		line := renderEntry(entry)
		if limit > 0 && len(line) > limit {
			line = line[:limit] + "... (truncated)"
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func renderEntry(entry types.Message) string {
	switch entry.Type {
	case types.TypeAction:
		args, _ := json.Marshal(entry.Args)
		return fmt.Sprintf("[action] %s %s", entry.Tool, args)
	case types.TypeObservation:
		return "[observation] " + renderContent(entry.Content)
	case types.TypeError:
		return "[error] " + renderContent(entry.Content)
	case types.TypeGlobalObservation:
		return "[shared] " + renderContent(entry.Content)
	default:
		return "[" + string(entry.Type) + "] " + renderContent(entry.Content)
	}
}

func renderContent(content interface{}) string {
	switch v := content.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(raw)
	}
}

// ParseOutcome classifies a raw model reply into an Outcome. Code
// fences and surrounding prose are tolerated as long as exactly one
// top-level JSON object can be located.
func ParseOutcome(raw string) (Outcome, error) {
	jsonText := extractJSON(raw)
	if jsonText == "" {
		return nil, fmt.Errorf("no JSON object found")
	}

	var envelope struct {
		Action        *types.Action   `json:"action"`
		Actions       []types.Action  `json:"actions"`
		FinalResponse *finalResponseJ `json:"final_response"`
	}
	if err := json.Unmarshal([]byte(jsonText), &envelope); err != nil {
		return nil, fmt.Errorf("decoding plan: %w", err)
	}

	switch {
	case envelope.FinalResponse != nil:
		return FinalOutcome{Response: envelope.FinalResponse.toResponse()}, nil
	case len(envelope.Actions) > 0:
		return ActionsOutcome{Actions: envelope.Actions}, nil
	case envelope.Action != nil:
		return ActionOutcome{Action: *envelope.Action}, nil
	}

	// A bare action object without the envelope is a common model slip.
	var bare types.Action
	if err := json.Unmarshal([]byte(jsonText), &bare); err == nil && bare.ToolName != "" {
		return ActionOutcome{Action: bare}, nil
	}
	return nil, fmt.Errorf("JSON object matched no known plan shape")
}

type finalResponseJ struct {
	Operation            string                 `json:"operation"`
	Payload              map[string]interface{} `json:"payload"`
	HumanReadableSummary string                 `json:"human_readable_summary"`
}

func (f *finalResponseJ) toResponse() *types.FinalResponse {
	operation := f.Operation
	if operation == "" {
		operation = types.OpDisplayMessage
	}
	payload := f.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return &types.FinalResponse{
		Operation:            operation,
		Payload:              payload,
		HumanReadableSummary: f.HumanReadableSummary,
	}
}

// extractJSON locates the first balanced top-level JSON object in raw,
// stripping markdown code fences if present.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

var _ Planner = (*ReActPlanner)(nil)
