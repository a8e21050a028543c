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
	"github.com/teradata-labs/heddle/pkg/types"
)

// ExecutePlanTool is the synthetic action name under which a strategic
// planner hands a phase plan back to its manager.
const ExecutePlanTool = "execute_plan"

// ExecuteScriptTool is the synthetic action name under which a script
// planner hands a deterministic script back to its manager.
const ExecuteScriptTool = "execute_script"

// WorkerCatalogEntry describes one delegable worker for plan prompts.
type WorkerCatalogEntry struct {
	Name        string
	Description string
	Tools       []string
}

// StrategicPlanner asks the model for an ordered phase plan over the
// manager's worker set and returns it as a single execute_plan action.
// The manager recognizes the embedded plan and runs phase-sequential
// delegation.
type StrategicPlanner struct {
	provider            llm.Provider
	workers             []WorkerCatalogEntry
	filter              history.Filter
	historyWithDirector bool
	logger              *zap.Logger
}

// StrategicOption customizes a StrategicPlanner.
type StrategicOption func(*StrategicPlanner)

// WithDirectorContextHistory controls prompt assembly when a director
// briefing is present in history. By default the briefing replaces the
// phase-outcome projection; enabling this keeps both.
func WithDirectorContextHistory(enabled bool) StrategicOption {
	return func(p *StrategicPlanner) { p.historyWithDirector = enabled }
}

// NewStrategicPlanner creates a phase planner over the worker catalog.
func NewStrategicPlanner(provider llm.Provider, workers []WorkerCatalogEntry, logger *zap.Logger, opts ...StrategicOption) *StrategicPlanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &StrategicPlanner{
		provider: provider,
		workers:  workers,
		filter:   history.ManagerFilter{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan implements Planner.
func (p *StrategicPlanner) Plan(ctx context.Context, task string, hist []types.Message) (Outcome, error) {
	visible := p.filter.Apply(hist, history.FilterContext{PhaseID: history.PhaseIDFrom(ctx)})
	director := latestDirectorContext(hist)
	if director != "" && !p.historyWithDirector {
		visible = nil
	}

	messages := []llm.Message{
		{Role: "system", Content: p.buildSystemPrompt()},
		{Role: "user", Content: buildManagerPrompt(task, director, visible)},
	}
	resp, err := p.provider.Chat(ctx, messages, nil)
	if err != nil {
		return nil, fmt.Errorf("strategic planning call: %w", err)
	}

	jsonText := extractJSON(resp.Content)
	if jsonText == "" {
		return UnrecognizedOutcome{Raw: resp.Content}, nil
	}

	var envelope struct {
		FinalResponse *finalResponseJ      `json:"final_response"`
		Plan          *types.StrategicPlan `json:"plan"`
		types.StrategicPlan
	}
	if err := json.Unmarshal([]byte(jsonText), &envelope); err != nil {
		return UnrecognizedOutcome{Raw: resp.Content}, nil
	}
	if envelope.FinalResponse != nil {
		return FinalOutcome{Response: envelope.FinalResponse.toResponse()}, nil
	}

	plan := envelope.Plan
	if plan == nil && (len(envelope.Phases) > 0 || envelope.PrimaryWorker != "") {
		plan = &envelope.StrategicPlan
	}
	if plan == nil {
		return UnrecognizedOutcome{Raw: resp.Content}, nil
	}

	p.logger.Debug("strategic plan produced",
		zap.String("primary_worker", plan.PrimaryWorker),
		zap.Int("phases", len(plan.Phases)))

	return ActionOutcome{Action: types.Action{
		ToolName: ExecutePlanTool,
		ToolArgs: map[string]interface{}{"strategic_plan": planToMap(plan)},
	}}, nil
}

func (p *StrategicPlanner) buildSystemPrompt() string {
	var b strings.Builder
	b.WriteString("You are a delegation planner. Break the task into ordered phases, each assigned to exactly one worker.\n")
	b.WriteString("Reply with exactly one JSON object:\n")
	b.WriteString(`{"plan": {"primary_worker": "...", "task_type": "...", "phases": [{"name": "...", "worker": "...", "goals": "...", "notes": "..."}], "rationale": "..."}}` + "\n")
	b.WriteString("If the request needs no delegation, reply with a final_response object instead.\n")
	writeWorkerCatalog(&b, p.workers)
	return b.String()
}

// ScriptPlanner asks the model for a deterministic script over the
// manager's workers: named steps with concrete tools and args, each
// either direct (run as-is) or guided (delegated as a suggestion).
type ScriptPlanner struct {
	provider llm.Provider
	workers  []WorkerCatalogEntry
	filter   history.Filter
	logger   *zap.Logger
}

// NewScriptPlanner creates a script planner over the worker catalog.
func NewScriptPlanner(provider llm.Provider, workers []WorkerCatalogEntry, logger *zap.Logger) *ScriptPlanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScriptPlanner{
		provider: provider,
		workers:  workers,
		filter:   history.ManagerFilter{},
		logger:   logger,
	}
}

// Plan implements Planner.
func (p *ScriptPlanner) Plan(ctx context.Context, task string, hist []types.Message) (Outcome, error) {
	visible := p.filter.Apply(hist, history.FilterContext{PhaseID: history.PhaseIDFrom(ctx)})

	messages := []llm.Message{
		{Role: "system", Content: p.buildSystemPrompt()},
		{Role: "user", Content: buildManagerPrompt(task, latestDirectorContext(hist), visible)},
	}
	resp, err := p.provider.Chat(ctx, messages, nil)
	if err != nil {
		return nil, fmt.Errorf("script planning call: %w", err)
	}

	jsonText := extractJSON(resp.Content)
	if jsonText == "" {
		return UnrecognizedOutcome{Raw: resp.Content}, nil
	}

	var envelope struct {
		FinalResponse *finalResponseJ `json:"final_response"`
		types.ScriptPlan
	}
	if err := json.Unmarshal([]byte(jsonText), &envelope); err != nil {
		return UnrecognizedOutcome{Raw: resp.Content}, nil
	}
	if envelope.FinalResponse != nil {
		return FinalOutcome{Response: envelope.FinalResponse.toResponse()}, nil
	}
	if len(envelope.Script) == 0 {
		return UnrecognizedOutcome{Raw: resp.Content}, nil
	}

	p.logger.Debug("script plan produced", zap.Int("steps", len(envelope.Script)))

	steps := make([]interface{}, 0, len(envelope.Script))
	for _, step := range envelope.Script {
		steps = append(steps, scriptStepToMap(step))
	}
	return ActionOutcome{Action: types.Action{
		ToolName: ExecuteScriptTool,
		ToolArgs: map[string]interface{}{
			"thought": envelope.Thought,
			"script":  steps,
		},
	}}, nil
}

func (p *ScriptPlanner) buildSystemPrompt() string {
	var b strings.Builder
	b.WriteString("You are a script planner. Produce a deterministic ordered script of tool steps.\n")
	b.WriteString("Reply with exactly one JSON object:\n")
	b.WriteString(`{"thought": "...", "script": [{"name": "...", "worker": "...", "tool_name": "...", "args": {...}, "execution_mode": "direct", "notes": "..."}]}` + "\n")
	b.WriteString("execution_mode is \"direct\" to run the tool as given, \"guided\" to let the worker refine the step.\n")
	writeWorkerCatalog(&b, p.workers)
	return b.String()
}

func buildManagerPrompt(task, director string, visible []types.Message) string {
	var b strings.Builder
	b.WriteString("Task: ")
	b.WriteString(task)
	if director != "" {
		b.WriteString("\n\nContext:\n")
		b.WriteString(director)
	}
	if len(visible) > 0 {
		b.WriteString("\n\nPrevious phase outcome:\n")
		b.WriteString(RenderHistory(visible, DefaultObservationLimit))
	}
	return b.String()
}

// latestDirectorContext finds the most recent briefing the parent
// injected into this agent's memory.
func latestDirectorContext(hist []types.Message) string {
	for i := len(hist) - 1; i >= 0; i-- {
		if hist[i].Type != types.TypeDirectorContext {
			continue
		}
		if text, ok := hist[i].Content.(string); ok {
			return text
		}
	}
	return ""
}

func writeWorkerCatalog(b *strings.Builder, workers []WorkerCatalogEntry) {
	if len(workers) == 0 {
		return
	}
	b.WriteString("\nAvailable workers:\n")
	for _, w := range workers {
		b.WriteString("- ")
		b.WriteString(w.Name)
		if w.Description != "" {
			b.WriteString(": ")
			b.WriteString(w.Description)
		}
		if len(w.Tools) > 0 {
			b.WriteString(" (tools: ")
			b.WriteString(strings.Join(w.Tools, ", "))
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
}

// planToMap round-trips a plan through JSON so it can travel inside
// action args the way every other tool argument does.
func planToMap(plan *types.StrategicPlan) map[string]interface{} {
	raw, err := json.Marshal(plan)
	if err != nil {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

func scriptStepToMap(step types.ScriptStep) map[string]interface{} {
	raw, err := json.Marshal(step)
	if err != nil {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

var (
	_ Planner = (*StrategicPlanner)(nil)
	_ Planner = (*ScriptPlanner)(nil)
)
