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

// Package history provides role-specific projections of memory history
// for prompt assembly. Filters are pure: they never mutate the input
// slice, and filtering an already-filtered history with the same filter
// and context is a no-op.
package history

import "github.com/teradata-labs/heddle/pkg/types"

// FilterContext carries the phase cursor a filter may need.
type FilterContext struct {
	// PhaseID is the current phase index of the calling manager.
	PhaseID int
}

// Filter projects a full history into the subset relevant for one role.
type Filter interface {
	Apply(history []types.Message, fctx FilterContext) []types.Message
}

// DefaultMaxConversationEntries bounds the orchestrator's view of the
// conversation.
const DefaultMaxConversationEntries = 8

// OrchestratorFilter keeps only conversation entries, returning at most
// the last MaxEntries of them.
type OrchestratorFilter struct {
	// MaxEntries caps the result; zero means DefaultMaxConversationEntries.
	MaxEntries int
}

// Apply implements Filter.
func (f OrchestratorFilter) Apply(history []types.Message, _ FilterContext) []types.Message {
	limit := f.MaxEntries
	if limit <= 0 {
		limit = DefaultMaxConversationEntries
	}
	out := make([]types.Message, 0, limit)
	for _, msg := range history {
		if msg.Type == types.TypeUserMessage || msg.Type == types.TypeAssistantMessage {
			out = append(out, msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// ManagerFilter keeps only synthesis entries from the previous phase.
// For phase 0 there is no previous phase and the projection is empty.
type ManagerFilter struct{}

// Apply implements Filter.
func (ManagerFilter) Apply(history []types.Message, fctx FilterContext) []types.Message {
	if fctx.PhaseID <= 0 {
		return nil
	}
	previous := fctx.PhaseID - 1
	var out []types.Message
	for _, msg := range history {
		if msg.Type == types.TypeSynthesis && msg.PhaseID == previous {
			out = append(out, msg)
		}
	}
	return out
}

// WorkerFilter is the turn-isolation mechanism: it locates the most
// recent task entry and keeps the subsequent action, observation, error,
// and global_observation entries. Everything at or before the task
// boundary is dropped so prior-turn completion signals cannot leak.
type WorkerFilter struct {
	// ExcludeTraces drops error entries from the projection.
	ExcludeTraces bool

	// ExcludeGlobals drops global_observation entries shared by sibling
	// agents.
	ExcludeGlobals bool
}

// Apply implements Filter.
func (f WorkerFilter) Apply(history []types.Message, _ FilterContext) []types.Message {
	start := 0
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Type == types.TypeTask {
			start = i + 1
			break
		}
	}
	var out []types.Message
	for _, msg := range history[start:] {
		switch msg.Type {
		case types.TypeAction, types.TypeObservation:
			out = append(out, msg)
		case types.TypeError:
			if !f.ExcludeTraces {
				out = append(out, msg)
			}
		case types.TypeGlobalObservation:
			if !f.ExcludeGlobals {
				out = append(out, msg)
			}
		}
	}
	return out
}

// DefaultFilter is the identity projection.
type DefaultFilter struct{}

// Apply implements Filter.
func (DefaultFilter) Apply(history []types.Message, _ FilterContext) []types.Message {
	return history
}

var (
	_ Filter = OrchestratorFilter{}
	_ Filter = ManagerFilter{}
	_ Filter = WorkerFilter{}
	_ Filter = DefaultFilter{}
)
