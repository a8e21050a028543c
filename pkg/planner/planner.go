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

// Package planner defines the planning seam of the engine. A planner
// receives the task and the full memory history each call and returns a
// tagged outcome: a final response, one action, a list of actions, or
// nothing the engine recognizes. The engine treats planners as opaque.
package planner

import (
	"context"

	"github.com/teradata-labs/heddle/pkg/types"
)

// Outcome is the tagged union of planner results.
type Outcome interface{ isOutcome() }

// FinalOutcome wraps a terminal FinalResponse.
type FinalOutcome struct {
	Response *types.FinalResponse
}

// ActionOutcome wraps a single action.
type ActionOutcome struct {
	Action types.Action
}

// ActionsOutcome wraps an ordered list of actions to run concurrently.
type ActionsOutcome struct {
	Actions []types.Action
}

// UnrecognizedOutcome carries raw planner output the engine could not
// classify. The raw value is kept for diagnostics.
type UnrecognizedOutcome struct {
	Raw interface{}
}

func (FinalOutcome) isOutcome()        {}
func (ActionOutcome) isOutcome()       {}
func (ActionsOutcome) isOutcome()      {}
func (UnrecognizedOutcome) isOutcome() {}

// Actions normalizes an outcome into a flat action list. Final and
// unrecognized outcomes normalize to nil.
func Actions(o Outcome) []types.Action {
	switch v := o.(type) {
	case ActionOutcome:
		return []types.Action{v.Action}
	case ActionsOutcome:
		return v.Actions
	default:
		return nil
	}
}

// Final extracts the FinalResponse from an outcome, or nil.
func Final(o Outcome) *types.FinalResponse {
	if v, ok := o.(FinalOutcome); ok {
		return v.Response
	}
	return nil
}

// Planner produces the next outcome for a task given the visible
// history. Planners are stateless with respect to turns; they filter
// history as they see fit.
type Planner interface {
	Plan(ctx context.Context, task string, history []types.Message) (Outcome, error)
}

// Func adapts a function to the Planner interface.
type Func func(ctx context.Context, task string, history []types.Message) (Outcome, error)

// Plan implements Planner.
func (f Func) Plan(ctx context.Context, task string, history []types.Message) (Outcome, error) {
	return f(ctx, task, history)
}
