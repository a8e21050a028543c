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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teradata-labs/heddle/pkg/history"
	"github.com/teradata-labs/heddle/pkg/llm"
	"github.com/teradata-labs/heddle/pkg/types"
)

var demoCatalog = []WorkerCatalogEntry{
	{Name: "sql-worker", Description: "runs SQL", Tools: []string{"list_tables", "run_query"}},
	{Name: "model-worker", Description: "trains models"},
}

func TestStrategicPlannerProducesExecutePlanAction(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.Response{textResponse(`{
		"plan": {
			"primary_worker": "sql-worker",
			"task_type": "analysis",
			"phases": [
				{"name": "inspect", "worker": "sql-worker", "goals": "list the tables"},
				{"name": "train", "worker": "model-worker", "goals": "train on results"}
			],
			"rationale": "two stage"
		}
	}`)}}
	p := NewStrategicPlanner(provider, demoCatalog, zaptest.NewLogger(t))

	outcome, err := p.Plan(context.Background(), "analyze and train", nil)
	require.NoError(t, err)
	action, ok := outcome.(ActionOutcome)
	require.True(t, ok)
	assert.Equal(t, ExecutePlanTool, action.Action.ToolName)

	planMap, ok := action.Action.ToolArgs["strategic_plan"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "sql-worker", planMap["primary_worker"])
	phases, ok := planMap["phases"].([]interface{})
	require.True(t, ok)
	assert.Len(t, phases, 2)
}

func TestStrategicPlannerAcceptsBarePlan(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.Response{textResponse(`{
		"primary_worker": "sql-worker",
		"phases": [{"name": "only", "worker": "sql-worker", "goals": "do it"}]
	}`)}}
	p := NewStrategicPlanner(provider, demoCatalog, nil)

	outcome, err := p.Plan(context.Background(), "task", nil)
	require.NoError(t, err)
	action := outcome.(ActionOutcome)
	planMap := action.Action.ToolArgs["strategic_plan"].(map[string]interface{})
	assert.Equal(t, "sql-worker", planMap["primary_worker"])
}

func TestStrategicPlannerFinalResponsePassthrough(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.Response{textResponse(`{
		"final_response": {"payload": {"message": "nothing to delegate"}, "human_readable_summary": "no-op"}
	}`)}}
	p := NewStrategicPlanner(provider, demoCatalog, nil)

	outcome, err := p.Plan(context.Background(), "hello", nil)
	require.NoError(t, err)
	final, ok := outcome.(FinalOutcome)
	require.True(t, ok)
	assert.Equal(t, "nothing to delegate", final.Response.Payload["message"])
}

func TestStrategicPlannerUnrecognizedOutput(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.Response{textResponse("no plan here")}}
	p := NewStrategicPlanner(provider, demoCatalog, nil)

	outcome, err := p.Plan(context.Background(), "task", nil)
	require.NoError(t, err)
	assert.IsType(t, UnrecognizedOutcome{}, outcome)
}

func TestStrategicPlannerCatalogInPrompt(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.Response{textResponse(`{
		"primary_worker": "sql-worker",
		"phases": [{"name": "p", "worker": "sql-worker", "goals": "g"}]
	}`)}}
	p := NewStrategicPlanner(provider, demoCatalog, nil)

	_, err := p.Plan(context.Background(), "task", nil)
	require.NoError(t, err)

	system := provider.calls[0][0].Content
	assert.Contains(t, system, "sql-worker")
	assert.Contains(t, system, "model-worker")
	assert.Contains(t, system, "list_tables")
}

func TestStrategicPlannerProjectsPreviousPhaseSynthesis(t *testing.T) {
	hist := []types.Message{
		{Type: types.TypeSynthesis, PhaseID: 0, Content: "tables inspected"},
		{Type: types.TypeSynthesis, PhaseID: 1, Content: "model trained"},
	}
	planReply := `{
		"primary_worker": "sql-worker",
		"phases": [{"name": "p", "worker": "sql-worker", "goals": "g"}]
	}`

	provider := &scriptedProvider{responses: []*llm.Response{textResponse(planReply)}}
	p := NewStrategicPlanner(provider, demoCatalog, nil)
	_, err := p.Plan(history.WithPhaseID(context.Background(), 1), "task", hist)
	require.NoError(t, err)
	prompt := provider.calls[0][1].Content
	assert.Contains(t, prompt, "tables inspected")
	assert.NotContains(t, prompt, "model trained")

	provider = &scriptedProvider{responses: []*llm.Response{textResponse(planReply)}}
	p = NewStrategicPlanner(provider, demoCatalog, nil)
	_, err = p.Plan(context.Background(), "task", hist)
	require.NoError(t, err)
	assert.NotContains(t, provider.calls[0][1].Content, "tables inspected",
		"without a phase cursor there is no previous phase to project")
}

func TestStrategicPlannerDirectorContextReplacesHistory(t *testing.T) {
	hist := []types.Message{
		{Type: types.TypeDirectorContext, Content: "== Director Goal ==\nship the report"},
		{Type: types.TypeSynthesis, PhaseID: 0, Content: "tables inspected"},
	}
	planReply := `{
		"primary_worker": "sql-worker",
		"phases": [{"name": "p", "worker": "sql-worker", "goals": "g"}]
	}`

	provider := &scriptedProvider{responses: []*llm.Response{textResponse(planReply)}}
	p := NewStrategicPlanner(provider, demoCatalog, nil)
	_, err := p.Plan(history.WithPhaseID(context.Background(), 1), "task", hist)
	require.NoError(t, err)
	prompt := provider.calls[0][1].Content
	assert.Contains(t, prompt, "ship the report")
	assert.NotContains(t, prompt, "tables inspected")

	provider = &scriptedProvider{responses: []*llm.Response{textResponse(planReply)}}
	p = NewStrategicPlanner(provider, demoCatalog, nil, WithDirectorContextHistory(true))
	_, err = p.Plan(history.WithPhaseID(context.Background(), 1), "task", hist)
	require.NoError(t, err)
	prompt = provider.calls[0][1].Content
	assert.Contains(t, prompt, "ship the report")
	assert.Contains(t, prompt, "tables inspected", "opt-in keeps briefing and history together")
}

func TestScriptPlannerProducesExecuteScriptAction(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.Response{textResponse(`{
		"thought": "two deterministic steps",
		"script": [
			{"name": "list", "worker": "sql-worker", "tool_name": "list_tables", "args": {}, "execution_mode": "direct"},
			{"name": "train", "worker": "model-worker", "tool_name": "train_model", "args": {"epochs": 3}, "execution_mode": "guided"}
		]
	}`)}}
	p := NewScriptPlanner(provider, demoCatalog, zaptest.NewLogger(t))

	outcome, err := p.Plan(context.Background(), "run the pipeline", nil)
	require.NoError(t, err)
	action, ok := outcome.(ActionOutcome)
	require.True(t, ok)
	assert.Equal(t, ExecuteScriptTool, action.Action.ToolName)
	assert.Equal(t, "two deterministic steps", action.Action.ToolArgs["thought"])

	steps, ok := action.Action.ToolArgs["script"].([]interface{})
	require.True(t, ok)
	require.Len(t, steps, 2)
	first := steps[0].(map[string]interface{})
	assert.Equal(t, "list_tables", first["tool_name"])
	assert.Equal(t, string(types.ModeDirect), first["execution_mode"])
}

func TestScriptPlannerEmptyScriptIsUnrecognized(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.Response{textResponse(`{"thought": "nothing", "script": []}`)}}
	p := NewScriptPlanner(provider, demoCatalog, nil)

	outcome, err := p.Plan(context.Background(), "task", nil)
	require.NoError(t, err)
	assert.IsType(t, UnrecognizedOutcome{}, outcome)
}

func TestScriptPlannerFinalResponsePassthrough(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.Response{textResponse(`{
		"final_response": {"payload": {"message": "done already"}}
	}`)}}
	p := NewScriptPlanner(provider, demoCatalog, nil)

	outcome, err := p.Plan(context.Background(), "task", nil)
	require.NoError(t, err)
	assert.IsType(t, FinalOutcome{}, outcome)
}
