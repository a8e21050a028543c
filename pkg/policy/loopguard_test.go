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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/teradata-labs/heddle/pkg/types"
)

func repeatedPair(n int, tool, obs string) (actions, observations []types.Message) {
	for i := 0; i < n; i++ {
		actions = append(actions, types.Message{
			Type: types.TypeAction,
			Tool: tool,
			Args: map[string]interface{}{"table": "users"},
		})
		observations = append(observations, types.Message{
			Type:    types.TypeObservation,
			Content: obs,
		})
	}
	return actions, observations
}

func TestLoopGuardDetectsIdenticalRepetition(t *testing.T) {
	g := NewLoopGuard(LoopGuardOptions{})
	actions, observations := repeatedPair(3, "describe_table", "same rows")

	reason := g.DetectStagnation(actions, observations, nil)
	assert.Contains(t, reason, "describe_table")
}

func TestLoopGuardBelowThreshold(t *testing.T) {
	g := NewLoopGuard(LoopGuardOptions{})
	actions, observations := repeatedPair(2, "describe_table", "same rows")

	assert.Empty(t, g.DetectStagnation(actions, observations, nil))
}

func TestLoopGuardDifferentObservationsDoNotFire(t *testing.T) {
	g := NewLoopGuard(LoopGuardOptions{})
	actions, observations := repeatedPair(3, "describe_table", "same rows")
	observations[2].Content = "different rows"

	assert.Empty(t, g.DetectStagnation(actions, observations, nil),
		"identical actions with progressing observations are retries, not a loop")
}

func TestLoopGuardDifferentArgsDoNotFire(t *testing.T) {
	g := NewLoopGuard(LoopGuardOptions{})
	actions, observations := repeatedPair(3, "describe_table", "same rows")
	actions[2].Args = map[string]interface{}{"table": "orders"}

	assert.Empty(t, g.DetectStagnation(actions, observations, nil))
}

func TestLoopGuardWindowSmallerThanThresholdNeverFires(t *testing.T) {
	g := NewLoopGuard(LoopGuardOptions{
		ActionWindow:        2,
		ObservationWindow:   2,
		RepetitionThreshold: 3,
	})
	actions, observations := repeatedPair(6, "describe_table", "same rows")

	assert.Empty(t, g.DetectStagnation(actions, observations, nil))
}

func TestLoopGuardCompletionHasPriority(t *testing.T) {
	g := NewLoopGuard(LoopGuardOptions{Detector: NewCompletionDetector(CompletionOptions{})})
	history := []types.Message{
		{Type: types.TypeTask, Content: "task"},
		{Type: types.TypeAction, Tool: types.CompleteTaskTool},
	}

	reason := g.DetectStagnation(nil, nil, history)
	assert.Contains(t, reason, "complete")
}
