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

	"github.com/teradata-labs/heddle/pkg/planner"
	"github.com/teradata-labs/heddle/pkg/types"
)

func TestTerminationIterationCap(t *testing.T) {
	p := NewTerminationPolicy(TerminationOptions{MaxIterations: 3})
	outcome := planner.ActionOutcome{Action: types.Action{ToolName: "list_tables"}}

	assert.False(t, p.ShouldTerminate(3, outcome, nil))
	assert.True(t, p.ShouldTerminate(4, outcome, nil))
}

func TestTerminationZeroCapTerminatesImmediately(t *testing.T) {
	p := NewTerminationPolicy(TerminationOptions{MaxIterations: 0})
	outcome := planner.ActionOutcome{Action: types.Action{ToolName: "list_tables"}}

	assert.True(t, p.ShouldTerminate(1, outcome, nil))
}

func TestTerminationOnFinalOutcome(t *testing.T) {
	p := NewTerminationPolicy(TerminationOptions{MaxIterations: 10})
	outcome := planner.FinalOutcome{Response: types.NewMessageResponse("done", "done")}

	assert.True(t, p.ShouldTerminate(1, outcome, nil))
}

func TestTerminationOnTerminalTool(t *testing.T) {
	p := NewTerminationPolicy(TerminationOptions{
		MaxIterations: 10,
		TerminalTools: []string{"finish_session"},
	})

	outcome := planner.ActionsOutcome{Actions: []types.Action{
		{ToolName: "list_tables"},
		{ToolName: "finish_session"},
	}}
	assert.True(t, p.ShouldTerminate(1, outcome, nil))
}

func TestTerminationDefersCompletionWhileActionsPending(t *testing.T) {
	detector := NewCompletionDetector(CompletionOptions{})
	p := NewTerminationPolicy(TerminationOptions{MaxIterations: 10, Detector: detector})

	completedTurn := []types.Message{
		{Type: types.TypeTask, Content: "task"},
		{Type: types.TypeObservation, Content: map[string]interface{}{"completed": true}},
	}
	outcome := planner.ActionOutcome{Action: types.Action{ToolName: "list_tables"}}
	assert.False(t, p.ShouldTerminate(2, outcome, completedTurn),
		"actions pending execution defer the completion check")

	assert.True(t, p.ShouldTerminate(2, planner.UnrecognizedOutcome{}, completedTurn),
		"no new actions and a completed turn terminates")
}

func TestTerminationNegativeCapFallsBack(t *testing.T) {
	p := NewTerminationPolicy(TerminationOptions{MaxIterations: -1})
	outcome := planner.ActionOutcome{Action: types.Action{ToolName: "list_tables"}}

	assert.False(t, p.ShouldTerminate(DefaultMaxIterations, outcome, nil))
	assert.True(t, p.ShouldTerminate(DefaultMaxIterations+1, outcome, nil))
}
