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
	"fmt"

	"github.com/teradata-labs/heddle/pkg/types"
)

// LoopPreventionPolicy detects a stagnating planner.
type LoopPreventionPolicy interface {
	// DetectStagnation inspects the recent action and observation
	// entries. A non-empty reason means the run should abort.
	DetectStagnation(actions, observations []types.Message, history []types.Message) string
}

// LoopGuardOptions parameterizes the default policy.
type LoopGuardOptions struct {
	// ActionWindow is how many recent actions to inspect.
	ActionWindow int

	// ObservationWindow is how many recent observations to inspect.
	ObservationWindow int

	// RepetitionThreshold is how many identical consecutive
	// action/observation pairs constitute a loop.
	RepetitionThreshold int

	// Detector, when set, flags the highest-priority stagnation case:
	// the task already looks complete but the planner keeps going.
	Detector CompletionDetector
}

// Default loop-guard windows and threshold.
const (
	DefaultActionWindow        = 5
	DefaultObservationWindow   = 5
	DefaultRepetitionThreshold = 3
)

// DefaultLoopGuard implements LoopPreventionPolicy.
type DefaultLoopGuard struct {
	opts LoopGuardOptions
}

// NewLoopGuard creates the default policy with zero values replaced by
// the documented defaults.
func NewLoopGuard(opts LoopGuardOptions) *DefaultLoopGuard {
	if opts.ActionWindow <= 0 {
		opts.ActionWindow = DefaultActionWindow
	}
	if opts.ObservationWindow <= 0 {
		opts.ObservationWindow = DefaultObservationWindow
	}
	if opts.RepetitionThreshold <= 0 {
		opts.RepetitionThreshold = DefaultRepetitionThreshold
	}
	return &DefaultLoopGuard{opts: opts}
}

// DetectStagnation implements LoopPreventionPolicy.
func (g *DefaultLoopGuard) DetectStagnation(actions, observations []types.Message, history []types.Message) string {
	if g.opts.Detector != nil && g.opts.Detector.IsComplete(nil, history) {
		return "task already appears complete but planning continued"
	}

	threshold := g.opts.RepetitionThreshold
	// A window smaller than the repetition threshold can never fire.
	if g.opts.ActionWindow < threshold || g.opts.ObservationWindow < threshold {
		return ""
	}

	recentActions := tail(actions, g.opts.ActionWindow)
	recentObservations := tail(observations, g.opts.ObservationWindow)
	if len(recentActions) < threshold || len(recentObservations) < threshold {
		return ""
	}

	if identicalActionTail(recentActions, threshold) && identicalObservationTail(recentObservations, threshold) {
		last := recentActions[len(recentActions)-1]
		return fmt.Sprintf("last %d invocations of %q produced identical results", threshold, last.Tool)
	}
	return ""
}

func tail(msgs []types.Message, n int) []types.Message {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}

func identicalActionTail(actions []types.Message, threshold int) bool {
	last := actions[len(actions)-threshold:]
	first := types.ActionSignature(last[0].Tool, last[0].Args)
	for _, msg := range last[1:] {
		if types.ActionSignature(msg.Tool, msg.Args) != first {
			return false
		}
	}
	return true
}

func identicalObservationTail(observations []types.Message, threshold int) bool {
	last := observations[len(observations)-threshold:]
	first := fmt.Sprintf("%v", last[0].Content)
	for _, msg := range last[1:] {
		if fmt.Sprintf("%v", msg.Content) != first {
			return false
		}
	}
	return true
}

var _ LoopPreventionPolicy = (*DefaultLoopGuard)(nil)
