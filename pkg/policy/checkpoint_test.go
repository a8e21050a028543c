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
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/heddle/pkg/types"
)

func TestCheckpointIterationThreshold(t *testing.T) {
	p := NewCheckpointPolicy(CheckpointOptions{IterationThreshold: 5})

	assert.False(t, p.ShouldCheckpoint(nil, 4, ""))
	assert.True(t, p.ShouldCheckpoint(nil, 5, ""))
}

func TestCheckpointZeroThresholdDisabled(t *testing.T) {
	p := NewCheckpointPolicy(CheckpointOptions{})

	assert.False(t, p.ShouldCheckpoint(nil, 100, ""))
}

func TestCheckpointOnOperation(t *testing.T) {
	p := NewCheckpointPolicy(CheckpointOptions{Operations: []string{types.OpModelOps}})

	result := map[string]interface{}{"operation": types.OpModelOps}
	assert.True(t, p.ShouldCheckpoint(result, 1, ""))
	assert.False(t, p.ShouldCheckpoint(map[string]interface{}{"operation": "other"}, 1, ""))
}

func TestCheckpointOnTool(t *testing.T) {
	p := NewCheckpointPolicy(CheckpointOptions{Tools: []string{"train_model"}})

	assert.True(t, p.ShouldCheckpoint(nil, 1, "train_model"))
	assert.False(t, p.ShouldCheckpoint(nil, 1, "list_tables"))
}

func TestCreateCheckpointResponse(t *testing.T) {
	p := NewCheckpointPolicy(CheckpointOptions{})
	result := map[string]interface{}{"rows_trained": 100}

	resp := p.CreateCheckpointResponse(result)
	require.NotNil(t, resp)
	assert.Equal(t, types.OpDisplayMessage, resp.Operation)
	assert.Equal(t, true, resp.Payload["checkpoint"])
	assert.Equal(t, result, resp.Payload["result"])
}

func TestFollowUpPolicy(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		p := NewFollowUpPolicy(FollowUpOptions{})
		assert.False(t, p.ShouldFollowUp(nil, 3, 1, nil))
	})

	t.Run("no remaining phases", func(t *testing.T) {
		p := NewFollowUpPolicy(FollowUpOptions{Enabled: true})
		assert.False(t, p.ShouldFollowUp(nil, 3, 3, nil))
	})

	t.Run("remaining phases over cap", func(t *testing.T) {
		p := NewFollowUpPolicy(FollowUpOptions{Enabled: true, MaxRemainingPhases: 1})
		assert.False(t, p.ShouldFollowUp(nil, 5, 1, nil))
		assert.True(t, p.ShouldFollowUp(nil, 5, 4, nil))
	})

	t.Run("stop on completion", func(t *testing.T) {
		p := NewFollowUpPolicy(FollowUpOptions{
			Enabled:          true,
			StopOnCompletion: true,
			Detector:         NewCompletionDetector(CompletionOptions{}),
		})
		completed := map[string]interface{}{"completed": true}
		assert.False(t, p.ShouldFollowUp(completed, 3, 1, nil))
		assert.True(t, p.ShouldFollowUp(map[string]interface{}{"success": true}, 3, 1, nil))
	})
}
