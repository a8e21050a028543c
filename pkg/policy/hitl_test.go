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

func TestHITLDisabledRequiresNothing(t *testing.T) {
	p := NewHITLPolicy(HITLOptions{Enabled: false, Scope: ScopeAll})

	assert.False(t, p.RequiresApproval("drop_table", nil, ApprovalContext{}))
}

func TestHITLScopeAll(t *testing.T) {
	p := NewHITLPolicy(HITLOptions{Enabled: true, Scope: ScopeAll})

	assert.True(t, p.RequiresApproval("list_tables", nil, ApprovalContext{}))
}

func TestHITLScopeWrites(t *testing.T) {
	p := NewHITLPolicy(HITLOptions{
		Enabled:    true,
		Scope:      ScopeWrites,
		WriteTools: []string{"add_column", "drop_table"},
	})

	assert.True(t, p.RequiresApproval("add_column", nil, ApprovalContext{}))
	assert.False(t, p.RequiresApproval("list_tables", nil, ApprovalContext{}))
}

func TestHITLGrantedApprovalBypasses(t *testing.T) {
	p := NewHITLPolicy(HITLOptions{Enabled: true, Scope: ScopeAll})
	actx := ApprovalContext{Approvals: map[string]bool{"add_column": true}}

	assert.False(t, p.RequiresApproval("add_column", nil, actx))
	assert.True(t, p.RequiresApproval("drop_table", nil, actx))
}

func TestHITLExecutedSignatureBypasses(t *testing.T) {
	p := NewHITLPolicy(HITLOptions{Enabled: true, Scope: ScopeAll})
	args := map[string]interface{}{"table": "users", "name": "age"}
	executed := types.ActionSignature("add_column", args)
	actx := ApprovalContext{
		HasExecuted: func(signature string) bool { return signature == executed },
	}

	assert.False(t, p.RequiresApproval("add_column", args, actx),
		"an identical already-executed invocation needs no second approval")
	assert.True(t, p.RequiresApproval("add_column", map[string]interface{}{"table": "orders"}, actx))
}

func TestHITLCreateApprovalRequest(t *testing.T) {
	p := NewHITLPolicy(HITLOptions{Enabled: true, Scope: ScopeWrites, WriteTools: []string{"add_column"}})
	args := map[string]interface{}{"table": "users"}

	resp := p.CreateApprovalRequest("add_column", args, ApprovalContext{})
	require.NotNil(t, resp)
	assert.Equal(t, types.OpAwaitApproval, resp.Operation)
	assert.Equal(t, "add_column", resp.Payload["tool"])
	assert.Equal(t, args, resp.Payload["args"])
	assert.NotEmpty(t, resp.Payload["message"])
	assert.NotEmpty(t, resp.Payload["reason"])
}
