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

package shuttle

import (
	"context"
	"sync"
	"sync/atomic"
)

// MockTool is a configurable tool for tests.
type MockTool struct {
	ToolName        string
	ToolDescription string
	Schema          *JSONSchema

	// ExecuteFunc overrides the default behavior when set.
	ExecuteFunc func(ctx context.Context, args map[string]interface{}) (*Result, error)

	// ReturnData is returned on success when ExecuteFunc is nil.
	ReturnData interface{}

	// ReturnErr is returned when ExecuteFunc is nil and it is non-nil.
	ReturnErr error

	mu        sync.Mutex
	callCount atomic.Int64
	calls     []map[string]interface{}
}

// NewMockTool creates a mock tool with a permissive object schema.
func NewMockTool(name string) *MockTool {
	return &MockTool{
		ToolName:        name,
		ToolDescription: "mock tool " + name,
		Schema:          NewObjectSchema("mock args", map[string]*JSONSchema{}, nil),
	}
}

// Name implements Tool.
func (m *MockTool) Name() string { return m.ToolName }

// Description implements Tool.
func (m *MockTool) Description() string { return m.ToolDescription }

// InputSchema implements Tool.
func (m *MockTool) InputSchema() *JSONSchema { return m.Schema }

// Execute implements Tool.
func (m *MockTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	m.callCount.Add(1)
	m.mu.Lock()
	copied := make(map[string]interface{}, len(args))
	for k, v := range args {
		copied[k] = v
	}
	m.calls = append(m.calls, copied)
	m.mu.Unlock()

	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, args)
	}
	if m.ReturnErr != nil {
		return nil, m.ReturnErr
	}
	return &Result{Success: true, Data: m.ReturnData}, nil
}

// CallCount returns how many times Execute ran.
func (m *MockTool) CallCount() int { return int(m.callCount.Load()) }

// Calls returns a copy of the recorded argument maps.
func (m *MockTool) Calls() []map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]map[string]interface{}, len(m.calls))
	copy(out, m.calls)
	return out
}

var _ Tool = (*MockTool)(nil)
