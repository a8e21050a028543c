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

// CheckpointPolicy pauses a long run at a safe point so the user can
// review progress before the engine continues.
type CheckpointPolicy interface {
	ShouldCheckpoint(result interface{}, iteration int, lastTool string) bool
	CreateCheckpointResponse(result interface{}) *types.FinalResponse
}

// CheckpointOptions parameterizes the default policy.
type CheckpointOptions struct {
	// IterationThreshold triggers a checkpoint once reached. Zero
	// disables iteration-based checkpointing.
	IterationThreshold int

	// Operations are FinalResponse operations that force a checkpoint.
	Operations []string

	// Tools are tool names whose execution forces a checkpoint.
	Tools []string
}

// DefaultCheckpointPolicy implements CheckpointPolicy.
type DefaultCheckpointPolicy struct {
	opts       CheckpointOptions
	operations map[string]struct{}
	tools      map[string]struct{}
}

// NewCheckpointPolicy creates the default policy.
func NewCheckpointPolicy(opts CheckpointOptions) *DefaultCheckpointPolicy {
	ops := make(map[string]struct{}, len(opts.Operations))
	for _, op := range opts.Operations {
		ops[op] = struct{}{}
	}
	tools := make(map[string]struct{}, len(opts.Tools))
	for _, tool := range opts.Tools {
		tools[tool] = struct{}{}
	}
	return &DefaultCheckpointPolicy{opts: opts, operations: ops, tools: tools}
}

// ShouldCheckpoint implements CheckpointPolicy.
func (p *DefaultCheckpointPolicy) ShouldCheckpoint(result interface{}, iteration int, lastTool string) bool {
	if p.opts.IterationThreshold > 0 && iteration >= p.opts.IterationThreshold {
		return true
	}
	if op := resultOperation(result); op != "" {
		if _, ok := p.operations[op]; ok {
			return true
		}
	}
	if lastTool != "" {
		if _, ok := p.tools[lastTool]; ok {
			return true
		}
	}
	return false
}

// CreateCheckpointResponse implements CheckpointPolicy. The payload
// carries checkpoint=true so the host can resume the run later.
func (p *DefaultCheckpointPolicy) CreateCheckpointResponse(result interface{}) *types.FinalResponse {
	return &types.FinalResponse{
		Operation: types.OpDisplayMessage,
		Payload: map[string]interface{}{
			"message":    fmt.Sprintf("Execution paused at a checkpoint. Latest result: %v", result),
			"checkpoint": true,
			"result":     result,
		},
		HumanReadableSummary: "Execution paused at a checkpoint.",
	}
}

func resultOperation(result interface{}) string {
	switch v := result.(type) {
	case *types.FinalResponse:
		if v != nil {
			return v.Operation
		}
	case map[string]interface{}:
		op, _ := v["operation"].(string)
		return op
	}
	return ""
}

var _ CheckpointPolicy = (*DefaultCheckpointPolicy)(nil)
