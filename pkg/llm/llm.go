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

// Package llm defines the provider seam between planners and concrete
// model backends. Providers are pluggable; planners depend only on the
// Provider interface.
package llm

import (
	"context"
	"strings"

	"github.com/teradata-labs/heddle/pkg/shuttle"
)

// ToolCall represents a tool invocation requested by the model.
type ToolCall struct {
	// ID is the provider-assigned identifier for this call.
	ID string

	// Name is the tool name.
	Name string

	// Input contains the tool parameters.
	Input map[string]interface{}
}

// Message is a single entry of a model conversation.
type Message struct {
	// Role is the message sender (system, user, assistant, tool).
	Role string

	// Content is the message text.
	Content string

	// ToolCalls contains tool invocations (when Role is assistant).
	ToolCalls []ToolCall

	// ToolUseID matches a tool result back to the tool_use block that
	// requested it (when Role is tool).
	ToolUseID string
}

// Usage tracks model token consumption.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Response represents a model completion.
type Response struct {
	// Content is the text response (when no tool calls were made).
	Content string

	// ToolCalls contains requested tool executions.
	ToolCalls []ToolCall

	// StopReason indicates why the model stopped.
	StopReason string

	// Usage tracks token usage.
	Usage Usage

	// Metadata contains provider-specific fields.
	Metadata map[string]interface{}
}

// Provider defines the interface model backends implement.
//
// Chat accepts context.Context rather than any engine-specific context
// so providers stay free of agent-layer dependencies.
type Provider interface {
	// Chat sends a conversation to the model and returns the response.
	Chat(ctx context.Context, messages []Message, tools []shuttle.Tool) (*Response, error)

	// Name returns the provider name.
	Name() string

	// Model returns the model identifier.
	Model() string
}

// SanitizeToolName converts a tool name to provider-compatible form.
// Namespaced tool names use colon separators, which several providers
// reject; colons become underscores.
func SanitizeToolName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, ch := range name {
		if ch == ':' {
			b.WriteRune('_')
		} else {
			b.WriteRune(ch)
		}
	}
	return b.String()
}

// ReverseToolName maps a sanitized tool name back to its original.
// Returns the sanitized name unchanged when no mapping exists.
func ReverseToolName(nameMap map[string]string, sanitized string) string {
	if original, ok := nameMap[sanitized]; ok {
		return original
	}
	return sanitized
}
