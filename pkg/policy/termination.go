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

package policy

import (
	"github.com/teradata-labs/heddle/pkg/planner"
	"github.com/teradata-labs/heddle/pkg/types"
)

// TerminationPolicy decides when the worker loop must stop.
type TerminationPolicy interface {
	// ShouldTerminate is consulted once per iteration with the planner's
	// latest outcome. Completion is never evaluated while the planner
	// has just returned actions: it runs after those actions execute,
	// so an actively working planner is not cut off prematurely.
	ShouldTerminate(iteration int, outcome planner.Outcome, history []types.Message) bool
}

// TerminationOptions parameterizes the default policy.
type TerminationOptions struct {
	// MaxIterations caps the loop. A cap of zero terminates on the
	// first iteration.
	MaxIterations int

	// TerminalTools optionally lists tools whose appearance in the
	// outcome terminates the run.
	TerminalTools []string

	// Detector, when set, allows termination once the task is complete
	// and the planner produced no new actions.
	Detector CompletionDetector
}

// DefaultMaxIterations bounds a worker run unless configured otherwise.
const DefaultMaxIterations = 10

// DefaultTerminationPolicy implements TerminationPolicy.
type DefaultTerminationPolicy struct {
	opts TerminationOptions
}

// NewTerminationPolicy creates the default policy. A negative max
// iteration count falls back to DefaultMaxIterations.
func NewTerminationPolicy(opts TerminationOptions) *DefaultTerminationPolicy {
	if opts.MaxIterations < 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	return &DefaultTerminationPolicy{opts: opts}
}

// ShouldTerminate implements TerminationPolicy.
func (p *DefaultTerminationPolicy) ShouldTerminate(iteration int, outcome planner.Outcome, history []types.Message) bool {
	if iteration > p.opts.MaxIterations {
		return true
	}
	if planner.Final(outcome) != nil {
		return true
	}

	actions := planner.Actions(outcome)
	for _, action := range actions {
		if p.terminalTool(action.ToolName) {
			return true
		}
	}

	// Actions pending execution: completion is checked after they run.
	if len(actions) > 0 {
		return false
	}

	if p.opts.Detector != nil && p.opts.Detector.IsComplete(nil, history) {
		return true
	}
	return false
}

func (p *DefaultTerminationPolicy) terminalTool(name string) bool {
	for _, tool := range p.opts.TerminalTools {
		if name == tool {
			return true
		}
	}
	return false
}

var _ TerminationPolicy = (*DefaultTerminationPolicy)(nil)
