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

// Package shuttle defines the executable tool contract of the engine.
// Tools shuttle data and execution between the planner and the backend,
// like a shuttle carries thread back and forth across a loom.
package shuttle

import (
	"context"
	"encoding/json"
)

// Tool is a single agent capability. A tool instance must tolerate
// concurrent Execute calls, or its host must serialize them.
type Tool interface {
	// Name returns the tool's unique snake_case identifier.
	Name() string

	// Description returns a human-readable description for LLM context.
	Description() string

	// InputSchema returns the JSON Schema for the tool's arguments.
	InputSchema() *JSONSchema

	// Execute runs the tool with the given arguments.
	Execute(ctx context.Context, args map[string]interface{}) (*Result, error)
}

// OutputSchemaProvider is implemented by tools that also declare the
// shape of their result.
type OutputSchemaProvider interface {
	OutputSchema() *JSONSchema
}

// Result is the outcome of a tool execution.
type Result struct {
	// Success indicates whether the tool executed successfully.
	Success bool `json:"success"`

	// Data contains the result payload; the format varies by tool.
	Data interface{} `json:"data,omitempty"`

	// Error carries structured failure information when Success is false.
	Error *Error `json:"error,omitempty"`

	// Metadata contains tool-specific metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// ExecutionTimeMs is the wall-clock execution time.
	ExecutionTimeMs int64 `json:"execution_time_ms,omitempty"`
}

// Error is a structured tool execution error.
type Error struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error message.
	Message string `json:"message"`

	// Details provides additional error context.
	Details map[string]interface{} `json:"details,omitempty"`

	// Retryable indicates whether the operation can be retried.
	Retryable bool `json:"retryable"`

	// Suggestion proposes a fix for the planner to act on.
	Suggestion string `json:"suggestion,omitempty"`
}

// JSONSchema is a JSON Schema fragment for tool arguments.
type JSONSchema struct {
	Type        string                 `json:"type"`
	Description string                 `json:"description,omitempty"`
	Properties  map[string]*JSONSchema `json:"properties,omitempty"`
	Required    []string               `json:"required,omitempty"`
	Items       *JSONSchema            `json:"items,omitempty"`
	Enum        []interface{}          `json:"enum,omitempty"`
	Default     interface{}            `json:"default,omitempty"`
}

// ToJSON converts the schema to JSON bytes.
func (s *JSONSchema) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}

// NewObjectSchema creates an object schema with the given properties.
func NewObjectSchema(description string, properties map[string]*JSONSchema, required []string) *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: description,
		Properties:  properties,
		Required:    required,
	}
}

// NewStringSchema creates a string schema.
func NewStringSchema(description string) *JSONSchema {
	return &JSONSchema{Type: "string", Description: description}
}

// NewNumberSchema creates a number schema.
func NewNumberSchema(description string) *JSONSchema {
	return &JSONSchema{Type: "number", Description: description}
}

// NewBooleanSchema creates a boolean schema.
func NewBooleanSchema(description string) *JSONSchema {
	return &JSONSchema{Type: "boolean", Description: description}
}

// NewArraySchema creates an array schema.
func NewArraySchema(description string, items *JSONSchema) *JSONSchema {
	return &JSONSchema{Type: "array", Description: description, Items: items}
}

// WithEnum adds enum values to the schema.
func (s *JSONSchema) WithEnum(values ...interface{}) *JSONSchema {
	s.Enum = values
	return s
}

// WithDefault adds a default value to the schema.
func (s *JSONSchema) WithDefault(value interface{}) *JSONSchema {
	s.Default = value
	return s
}
