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

// Package policy holds the engine's pluggable strategy objects. They
// are the sole location of when-to-stop and when-to-pause decisions;
// agents consult them but never embed the logic themselves.
package policy

import (
	"strings"

	"github.com/teradata-labs/heddle/pkg/types"
)

// CompletionDetector decides whether the task at hand is finished.
type CompletionDetector interface {
	// IsComplete inspects the most recent tool result and the current
	// turn of history. Entries before the last task boundary are never
	// considered: checking full history causes spurious early
	// termination on multi-turn sessions.
	IsComplete(result interface{}, history []types.Message) bool
}

// CompletionOptions parameterizes the default detector.
type CompletionOptions struct {
	// TerminalOperations are FinalResponse operations that, combined
	// with an indicator substring in the summary, signal completion.
	TerminalOperations []string

	// IndicatorSubstrings are case-insensitive markers of completion in
	// summaries and observation contents.
	IndicatorSubstrings []string
}

// DefaultCompletionOptions mirrors the engine's stock configuration.
func DefaultCompletionOptions() CompletionOptions {
	return CompletionOptions{
		TerminalOperations:  []string{types.OpDisplayMessage, types.OpDisplayTable, types.OpModelOps},
		IndicatorSubstrings: []string{"task complete", "task completed", "all done"},
	}
}

// DefaultCompletionDetector implements CompletionDetector.
type DefaultCompletionDetector struct {
	opts CompletionOptions
}

// NewCompletionDetector creates the default detector. Zero-value
// options fall back to DefaultCompletionOptions.
func NewCompletionDetector(opts CompletionOptions) *DefaultCompletionDetector {
	if len(opts.TerminalOperations) == 0 && len(opts.IndicatorSubstrings) == 0 {
		opts = DefaultCompletionOptions()
	}
	return &DefaultCompletionDetector{opts: opts}
}

// IsComplete implements CompletionDetector.
func (d *DefaultCompletionDetector) IsComplete(result interface{}, history []types.Message) bool {
	if d.resultSignalsCompletion(result) {
		return true
	}
	return d.turnSignalsCompletion(CurrentTurn(history))
}

func (d *DefaultCompletionDetector) resultSignalsCompletion(result interface{}) bool {
	switch v := result.(type) {
	case nil:
		return false
	case *types.FinalResponse:
		if v == nil {
			return false
		}
		return d.terminalOperation(v.Operation) && d.containsIndicator(v.HumanReadableSummary)
	case map[string]interface{}:
		if flag, _ := v["completed"].(bool); flag {
			return true
		}
		if validation, ok := v["response_validation"].(map[string]interface{}); ok {
			if flag, _ := validation["complete"].(bool); flag {
				return true
			}
		}
		op, _ := v["operation"].(string)
		summary, _ := v["human_readable_summary"].(string)
		return op != "" && d.terminalOperation(op) && d.containsIndicator(summary)
	default:
		return false
	}
}

// turnSignalsCompletion scans the current turn for a complete_task
// action or an observation that carries a completion marker.
func (d *DefaultCompletionDetector) turnSignalsCompletion(turn []types.Message) bool {
	for _, msg := range turn {
		switch msg.Type {
		case types.TypeAction:
			if msg.Tool == types.CompleteTaskTool {
				return true
			}
		case types.TypeObservation:
			if obs, ok := msg.Content.(map[string]interface{}); ok {
				if flag, _ := obs["completed"].(bool); flag {
					return true
				}
			}
			if text, ok := msg.Content.(string); ok && d.containsIndicator(text) {
				return true
			}
		}
	}
	return false
}

func (d *DefaultCompletionDetector) terminalOperation(op string) bool {
	for _, terminal := range d.opts.TerminalOperations {
		if op == terminal {
			return true
		}
	}
	return false
}

func (d *DefaultCompletionDetector) containsIndicator(text string) bool {
	lowered := strings.ToLower(text)
	for _, indicator := range d.opts.IndicatorSubstrings {
		if indicator != "" && strings.Contains(lowered, strings.ToLower(indicator)) {
			return true
		}
	}
	return false
}

// CurrentTurn returns the entries after the most recent task boundary.
func CurrentTurn(history []types.Message) []types.Message {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Type == types.TypeTask {
			return history[i+1:]
		}
	}
	return history
}

var _ CompletionDetector = (*DefaultCompletionDetector)(nil)
