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

import "github.com/teradata-labs/heddle/pkg/types"

// FollowUpPolicy decides whether a manager runs the remaining phases of
// a plan after the primary worker finished.
type FollowUpPolicy interface {
	ShouldFollowUp(primaryResult interface{}, totalPhases, completedPhases int, history []types.Message) bool
}

// FollowUpOptions parameterizes the default policy.
type FollowUpOptions struct {
	// Enabled switches follow-ups on.
	Enabled bool

	// StopOnCompletion skips follow-ups once the task looks complete.
	StopOnCompletion bool

	// MaxRemainingPhases caps how many phases may still be pending for
	// a follow-up to run. Zero means no cap.
	MaxRemainingPhases int

	// Detector evaluates completion when StopOnCompletion is set.
	Detector CompletionDetector
}

// DefaultFollowUpPolicy implements FollowUpPolicy.
type DefaultFollowUpPolicy struct {
	opts FollowUpOptions
}

// NewFollowUpPolicy creates the default policy.
func NewFollowUpPolicy(opts FollowUpOptions) *DefaultFollowUpPolicy {
	return &DefaultFollowUpPolicy{opts: opts}
}

// ShouldFollowUp implements FollowUpPolicy.
func (p *DefaultFollowUpPolicy) ShouldFollowUp(primaryResult interface{}, totalPhases, completedPhases int, history []types.Message) bool {
	if !p.opts.Enabled {
		return false
	}
	remaining := totalPhases - completedPhases
	if remaining <= 0 {
		return false
	}
	if p.opts.MaxRemainingPhases > 0 && remaining > p.opts.MaxRemainingPhases {
		return false
	}
	if p.opts.StopOnCompletion && p.opts.Detector != nil && p.opts.Detector.IsComplete(primaryResult, history) {
		return false
	}
	return true
}

var _ FollowUpPolicy = (*DefaultFollowUpPolicy)(nil)
