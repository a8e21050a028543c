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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teradata-labs/heddle/pkg/llm"
	"github.com/teradata-labs/heddle/pkg/shuttle"
	"github.com/teradata-labs/heddle/pkg/types"
)

// scriptedProvider replays canned responses in order and records every
// conversation it was sent.
type scriptedProvider struct {
	responses []*llm.Response
	err       error
	calls     [][]llm.Message
}

func (s *scriptedProvider) Chat(_ context.Context, messages []llm.Message, _ []shuttle.Tool) (*llm.Response, error) {
	s.calls = append(s.calls, messages)
	if s.err != nil {
		return nil, s.err
	}
	i := len(s.calls) - 1
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return s.responses[i], nil
}

func (s *scriptedProvider) Name() string  { return "scripted" }
func (s *scriptedProvider) Model() string { return "scripted-model" }

func textResponse(content string) *llm.Response {
	return &llm.Response{Content: content}
}

func TestParseOutcome(t *testing.T) {
	t.Run("single action", func(t *testing.T) {
		outcome, err := ParseOutcome(`{"action": {"tool_name": "list_tables", "tool_args": {"schema": "demo"}}}`)
		require.NoError(t, err)
		action, ok := outcome.(ActionOutcome)
		require.True(t, ok)
		assert.Equal(t, "list_tables", action.Action.ToolName)
		assert.Equal(t, "demo", action.Action.ToolArgs["schema"])
	})

	t.Run("action batch", func(t *testing.T) {
		outcome, err := ParseOutcome(`{"actions": [{"tool_name": "a"}, {"tool_name": "b"}]}`)
		require.NoError(t, err)
		batch, ok := outcome.(ActionsOutcome)
		require.True(t, ok)
		require.Len(t, batch.Actions, 2)
		assert.Equal(t, "b", batch.Actions[1].ToolName)
	})

	t.Run("final response", func(t *testing.T) {
		outcome, err := ParseOutcome(`{"final_response": {"operation": "display_message", "payload": {"message": "done"}, "human_readable_summary": "done"}}`)
		require.NoError(t, err)
		final, ok := outcome.(FinalOutcome)
		require.True(t, ok)
		assert.Equal(t, types.OpDisplayMessage, final.Response.Operation)
		assert.Equal(t, "done", final.Response.Payload["message"])
	})

	t.Run("final response defaults", func(t *testing.T) {
		outcome, err := ParseOutcome(`{"final_response": {"human_readable_summary": "ok"}}`)
		require.NoError(t, err)
		final := outcome.(FinalOutcome)
		assert.Equal(t, types.OpDisplayMessage, final.Response.Operation)
		assert.NotNil(t, final.Response.Payload)
	})

	t.Run("bare action without envelope", func(t *testing.T) {
		outcome, err := ParseOutcome(`{"tool_name": "describe_table", "tool_args": {"table": "users"}}`)
		require.NoError(t, err)
		action := outcome.(ActionOutcome)
		assert.Equal(t, "describe_table", action.Action.ToolName)
	})

	t.Run("code fence with prose", func(t *testing.T) {
		raw := "Here is the plan:\n```json\n{\"action\": {\"tool_name\": \"list_tables\"}}\n```"
		outcome, err := ParseOutcome(raw)
		require.NoError(t, err)
		assert.Equal(t, "list_tables", outcome.(ActionOutcome).Action.ToolName)
	})

	t.Run("braces inside string values", func(t *testing.T) {
		outcome, err := ParseOutcome(`{"action": {"tool_name": "run_query", "tool_args": {"sql": "SELECT '{' FROM t"}}}`)
		require.NoError(t, err)
		assert.Equal(t, "run_query", outcome.(ActionOutcome).Action.ToolName)
	})

	t.Run("no JSON at all", func(t *testing.T) {
		_, err := ParseOutcome("I think the next step should be listing tables.")
		assert.Error(t, err)
	})

	t.Run("JSON with no plan shape", func(t *testing.T) {
		_, err := ParseOutcome(`{"thought": "hmm"}`)
		assert.Error(t, err)
	})
}

func TestReActPlannerNativeToolCalls(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.Response{{
		ToolCalls: []llm.ToolCall{
			{Name: "list_tables", Input: map[string]interface{}{"schema": "demo"}},
		},
	}}}
	p := NewReActPlanner(provider, nil, WithLogger(zaptest.NewLogger(t)))

	outcome, err := p.Plan(context.Background(), "list the tables", nil)
	require.NoError(t, err)
	action, ok := outcome.(ActionOutcome)
	require.True(t, ok, "a single native tool call maps to a single action")
	assert.Equal(t, "list_tables", action.Action.ToolName)
}

func TestReActPlannerNativeToolCallBatch(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.Response{{
		ToolCalls: []llm.ToolCall{{Name: "a"}, {Name: "b"}},
	}}}
	p := NewReActPlanner(provider, nil)

	outcome, err := p.Plan(context.Background(), "task", nil)
	require.NoError(t, err)
	batch, ok := outcome.(ActionsOutcome)
	require.True(t, ok)
	assert.Len(t, batch.Actions, 2)
}

func TestReActPlannerRetriesUnparseableOutput(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.Response{
		textResponse("sure, let me think about that"),
		textResponse(`{"action": {"tool_name": "list_tables"}}`),
	}}
	p := NewReActPlanner(provider, nil, WithLogger(zaptest.NewLogger(t)))

	outcome, err := p.Plan(context.Background(), "task", nil)
	require.NoError(t, err)
	assert.Equal(t, "list_tables", outcome.(ActionOutcome).Action.ToolName)

	require.Len(t, provider.calls, 2)
	retry := provider.calls[1]
	assert.Contains(t, retry[len(retry)-1].Content, "could not be parsed",
		"the retry turn carries a corrective message")
}

func TestReActPlannerExhaustedRetriesReturnUnrecognized(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.Response{textResponse("still prose")}}
	p := NewReActPlanner(provider, nil, WithParseRetries(1))

	outcome, err := p.Plan(context.Background(), "task", nil)
	require.NoError(t, err)
	raw, ok := outcome.(UnrecognizedOutcome)
	require.True(t, ok)
	assert.Equal(t, "still prose", raw.Raw)
	assert.Len(t, provider.calls, 2, "initial attempt plus one retry")
}

func TestReActPlannerProviderError(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("rate limited")}
	p := NewReActPlanner(provider, nil)

	_, err := p.Plan(context.Background(), "task", nil)
	assert.ErrorContains(t, err, "rate limited")
}

func TestReActPlannerPromptIncludesToolsAndHistory(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.Response{
		textResponse(`{"action": {"tool_name": "describe_table"}}`),
	}}
	tool := shuttle.NewMockTool("describe_table")
	p := NewReActPlanner(provider, []shuttle.Tool{tool})

	history := []types.Message{
		{Type: types.TypeTask, Content: "describe users"},
		{Type: types.TypeAction, Tool: "list_tables", Args: map[string]interface{}{}},
		{Type: types.TypeObservation, Content: map[string]interface{}{"tables": []string{"users"}}},
	}
	_, err := p.Plan(context.Background(), "describe users", history)
	require.NoError(t, err)

	require.Len(t, provider.calls, 1)
	system := provider.calls[0][0].Content
	user := provider.calls[0][1].Content
	assert.Contains(t, system, "describe_table")
	assert.Contains(t, user, "describe users")
	assert.Contains(t, user, "[action] list_tables")
	assert.Contains(t, user, "[observation]")
}

func TestReActPlannerCapsHistoryEntries(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.Response{
		textResponse(`{"action": {"tool_name": "list_tables"}}`),
	}}
	p := NewReActPlanner(provider, nil, WithMaxHistoryEntries(2))

	history := []types.Message{
		{Type: types.TypeTask, Content: "task"},
		{Type: types.TypeObservation, Content: "first result"},
		{Type: types.TypeObservation, Content: "second result"},
		{Type: types.TypeObservation, Content: "third result"},
	}
	_, err := p.Plan(context.Background(), "task", history)
	require.NoError(t, err)

	user := provider.calls[0][1].Content
	assert.NotContains(t, user, "first result")
	assert.Contains(t, user, "second result")
	assert.Contains(t, user, "third result")
}

func TestRenderHistoryTruncatesObservations(t *testing.T) {
	long := make([]byte, 100)
	for i := range long {
		long[i] = 'x'
	}
	entries := []types.Message{{Type: types.TypeObservation, Content: string(long)}}

	rendered := RenderHistory(entries, 20)
	assert.Contains(t, rendered, "... (truncated)")
	assert.Less(t, len(rendered), 60)

	full := RenderHistory(entries, 0)
	assert.NotContains(t, full, "truncated", "zero limit disables truncation")
}
