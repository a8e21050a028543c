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

// Package agent implements the execution tree of the heddle engine:
// workers running the plan/act/observe loop over tools, and managers
// delegating phases, scripts, and parallel fan-outs to their workers.
package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/teradata-labs/heddle/pkg/types"
)

// ProgressHandler receives human-facing progress notifications while a
// run is executing. Handlers must be lightweight; they are invoked
// inline on the run path.
type ProgressHandler func(stage string, detail map[string]interface{})

// RunInput bundles everything a delegation hands to a worker or child
// manager.
type RunInput struct {
	// Task is the goal statement for this run.
	Task string

	// Plan is the strategic plan driving a manager run, when one was
	// produced upstream.
	Plan *types.StrategicPlan

	// Script switches a worker into deterministic script mode.
	Script []types.ScriptStep

	// ScriptMetadata carries the script planner's annotations.
	ScriptMetadata map[string]interface{}

	// SuggestedPlan is a manager hint the worker's planner may refine.
	SuggestedPlan *types.StrategicPlan

	// ExecutionContext is injected into the worker's memory before the
	// loop starts.
	ExecutionContext map[string]interface{}

	// Progress receives stage notifications. May be nil.
	Progress ProgressHandler
}

func (in RunInput) notify(stage string, detail map[string]interface{}) {
	if in.Progress != nil {
		in.Progress(stage, detail)
	}
}

// Runner is anything a manager can delegate to: a worker or a child
// manager.
type Runner interface {
	// Name is the registration key in the manager's worker map.
	Name() string

	// Run executes the task to a terminal response. The returned
	// response is never nil when the error is nil; engine-level failures
	// surface as responses with payload.error=true, not as Go errors.
	Run(ctx context.Context, rctx *RequestContext, in RunInput) (*types.FinalResponse, error)
}

// statusOf maps a terminal response to the normalized event status.
func statusOf(result *types.FinalResponse) string {
	switch {
	case result == nil:
		return types.StatusError
	case result.Operation == types.OpAwaitApproval:
		return types.StatusPending
	case result.IsError():
		return types.StatusError
	default:
		return types.StatusSuccess
	}
}

// formatResult renders a response for inclusion in a follow-up task or
// an aggregation section.
func formatResult(result *types.FinalResponse) string {
	if result == nil {
		return "(no result)"
	}
	if result.HumanReadableSummary != "" {
		return result.HumanReadableSummary
	}
	if msg, ok := result.Payload["message"].(string); ok && msg != "" {
		return msg
	}
	raw, err := json.Marshal(result.Payload)
	if err != nil {
		return fmt.Sprintf("%v", result.Payload)
	}
	return string(raw)
}

// payloadToResponse shapes a raw tool payload into a user-facing
// response: a table when the payload carries tabular data, a message
// when it carries text, a generic rendering otherwise.
func payloadToResponse(payload map[string]interface{}, summary string) *types.FinalResponse {
	if payload == nil {
		return types.NewMessageResponse("(empty result)", summary)
	}
	headers, hasHeaders := payload["headers"]
	rows, hasRows := payload["rows"]
	if hasHeaders && hasRows {
		title, _ := payload["title"].(string)
		return &types.FinalResponse{
			Operation: types.OpDisplayTable,
			Payload: map[string]interface{}{
				"title":   title,
				"headers": headers,
				"rows":    rows,
			},
			HumanReadableSummary: summary,
		}
	}
	if msg, ok := payload["message"].(string); ok && msg != "" {
		return types.NewMessageResponse(msg, summary)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return types.NewMessageResponse(fmt.Sprintf("%v", payload), summary)
	}
	return types.NewMessageResponse(string(raw), summary)
}
