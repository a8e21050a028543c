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

package agent

import (
	"context"

	"github.com/teradata-labs/heddle/pkg/types"
)

// RequestContext is the task-local scope of one run invocation: the
// job identity, granted approvals, the active plan, and the phase
// cursors. It travels with the run across every suspension point.
//
// Concurrent child executions must receive a Snapshot, never the
// parent's instance, so sibling runs cannot leak state into each other.
type RequestContext struct {
	JobID     string
	Approvals map[string]bool

	StrategicPlan    *types.StrategicPlan
	DirectorContext  string
	DataModelContext string

	OrchestratorPhaseIndex int
	ManagerStepIndex       int
}

// NewRequestContext creates a context for a job.
func NewRequestContext(jobID string) *RequestContext {
	return &RequestContext{
		JobID:     jobID,
		Approvals: make(map[string]bool),
	}
}

// PhaseIndex reports the delegation cursor the parent assigned: the
// manager step when set, otherwise the orchestrator phase.
func (rc *RequestContext) PhaseIndex() int {
	if rc == nil {
		return 0
	}
	if rc.ManagerStepIndex > 0 {
		return rc.ManagerStepIndex
	}
	return rc.OrchestratorPhaseIndex
}

// Snapshot deep-copies the context for a concurrent child execution.
func (rc *RequestContext) Snapshot() *RequestContext {
	if rc == nil {
		return NewRequestContext("")
	}
	out := *rc
	out.Approvals = make(map[string]bool, len(rc.Approvals))
	for k, v := range rc.Approvals {
		out.Approvals[k] = v
	}
	return &out
}

type requestContextKey struct{}

// WithRequestContext attaches the request context to a context.Context
// so tools and policy hooks downstream of the agent can reach it.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// RequestContextFrom retrieves the request context, or nil.
func RequestContextFrom(ctx context.Context) *RequestContext {
	if rc, ok := ctx.Value(requestContextKey{}).(*RequestContext); ok {
		return rc
	}
	return nil
}
