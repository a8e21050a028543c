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

// HITLScope selects which tools are gated behind human approval.
type HITLScope string

const (
	// ScopeAll gates every tool.
	ScopeAll HITLScope = "all"

	// ScopeWrites gates only the enumerated write tools.
	ScopeWrites HITLScope = "writes"
)

// ApprovalContext carries the per-request approval state a HITL check
// needs: granted approvals and the job's executed-action signatures.
type ApprovalContext struct {
	// JobID identifies the job whose executed-action set applies.
	JobID string

	// Approvals maps tool name to a granted approval for this request.
	Approvals map[string]bool

	// HasExecuted reports whether the signature is already in the
	// job's executed set. Nil means no signature history is available.
	HasExecuted func(signature string) bool
}

// HITLPolicy gates selected tool executions behind an approval
// round-trip with the user.
type HITLPolicy interface {
	RequiresApproval(toolName string, args map[string]interface{}, actx ApprovalContext) bool
	CreateApprovalRequest(toolName string, args map[string]interface{}, actx ApprovalContext) *types.FinalResponse
}

// HITLOptions parameterizes the default policy.
type HITLOptions struct {
	// Enabled switches the policy on. Disabled means nothing requires
	// approval.
	Enabled bool

	// Scope is "all" or "writes".
	Scope HITLScope

	// WriteTools enumerates the tools gated under ScopeWrites.
	WriteTools []string
}

// DefaultHITLPolicy implements HITLPolicy.
type DefaultHITLPolicy struct {
	opts       HITLOptions
	writeTools map[string]struct{}
}

// NewHITLPolicy creates the default policy.
func NewHITLPolicy(opts HITLOptions) *DefaultHITLPolicy {
	if opts.Scope == "" {
		opts.Scope = ScopeWrites
	}
	writes := make(map[string]struct{}, len(opts.WriteTools))
	for _, tool := range opts.WriteTools {
		writes[tool] = struct{}{}
	}
	return &DefaultHITLPolicy{opts: opts, writeTools: writes}
}

// RequiresApproval implements HITLPolicy. A granted approval for the
// tool, or a previously executed identical signature, bypasses the
// gate.
func (p *DefaultHITLPolicy) RequiresApproval(toolName string, args map[string]interface{}, actx ApprovalContext) bool {
	if !p.opts.Enabled {
		return false
	}
	if !p.inScope(toolName) {
		return false
	}
	if actx.Approvals[toolName] {
		return false
	}
	if actx.HasExecuted != nil && actx.HasExecuted(types.ActionSignature(toolName, args)) {
		return false
	}
	return true
}

// CreateApprovalRequest implements HITLPolicy.
func (p *DefaultHITLPolicy) CreateApprovalRequest(toolName string, args map[string]interface{}, actx ApprovalContext) *types.FinalResponse {
	message := fmt.Sprintf("Approval required before running %s.", toolName)
	reason := "tool gated by approval policy"
	if p.opts.Scope == ScopeWrites {
		reason = "tool modifies state and approval scope is set to writes"
	}
	return &types.FinalResponse{
		Operation: types.OpAwaitApproval,
		Payload: map[string]interface{}{
			"tool":    toolName,
			"args":    args,
			"message": message,
			"reason":  reason,
		},
		HumanReadableSummary: message,
	}
}

func (p *DefaultHITLPolicy) inScope(toolName string) bool {
	switch p.opts.Scope {
	case ScopeAll:
		return true
	case ScopeWrites:
		_, ok := p.writeTools[toolName]
		return ok
	default:
		return false
	}
}

var _ HITLPolicy = (*DefaultHITLPolicy)(nil)
