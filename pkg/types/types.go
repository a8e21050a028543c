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

// Package types contains the shared data model of the heddle engine.
// It has no dependencies on other heddle packages so that every layer
// (memory, policies, agents, planners) can exchange values through it.
package types

import "time"

// Action is a request to invoke a tool. Actions are immutable once
// created: planners produce them, agents consume them.
type Action struct {
	// ToolName is the snake_case tool identifier.
	ToolName string `json:"tool_name"`

	// ToolArgs holds the tool arguments keyed by parameter name.
	ToolArgs map[string]interface{} `json:"tool_args"`
}

// Operation tags describe how a FinalResponse payload should be rendered.
const (
	OpDisplayMessage = "display_message"
	OpDisplayTable   = "display_table"
	OpAwaitApproval  = "await_approval"
	OpModelOps       = "model_ops"
)

// FinalResponse is a structured result returned up the agent tree.
type FinalResponse struct {
	// Operation selects the payload shape (display_message, display_table,
	// await_approval, model_ops, or a domain-specific tag).
	Operation string `json:"operation"`

	// Payload carries structured data keyed by operation.
	Payload map[string]interface{} `json:"payload"`

	// HumanReadableSummary is a short description for end users.
	HumanReadableSummary string `json:"human_readable_summary"`
}

// NewMessageResponse builds a display_message response.
func NewMessageResponse(message, summary string) *FinalResponse {
	return &FinalResponse{
		Operation:            OpDisplayMessage,
		Payload:              map[string]interface{}{"message": message},
		HumanReadableSummary: summary,
	}
}

// NewErrorResponse builds a terminal error response. The payload always
// carries error=true so callers can distinguish failures uniformly.
func NewErrorResponse(message, summary string) *FinalResponse {
	return &FinalResponse{
		Operation: OpDisplayMessage,
		Payload: map[string]interface{}{
			"message": message,
			"error":   true,
		},
		HumanReadableSummary: summary,
	}
}

// IsError reports whether the response payload is flagged as an error.
func (r *FinalResponse) IsError() bool {
	if r == nil || r.Payload == nil {
		return false
	}
	flag, _ := r.Payload["error"].(bool)
	return flag
}

// MessageType enumerates the tags a memory entry can carry.
type MessageType string

const (
	// Conversation entries translated from the namespace conversation feed.
	TypeUserMessage      MessageType = "user_message"
	TypeAssistantMessage MessageType = "assistant_message"

	// Execution trace entries.
	TypeTask        MessageType = "task"
	TypeAction      MessageType = "action"
	TypeObservation MessageType = "observation"
	TypeError       MessageType = "error"

	// Completion entries.
	TypeFinal     MessageType = "final"
	TypeSynthesis MessageType = "synthesis"

	// Planning entries.
	TypeStrategicPlan     MessageType = "strategic_plan"
	TypeSuggestedPlan     MessageType = "suggested_plan"
	TypeScriptPlan        MessageType = "script_plan"
	TypeScriptInstruction MessageType = "script_instruction"

	// Context entries.
	TypeDirectorContext MessageType = "director_context"
	TypeInjectedContext MessageType = "injected_context"

	// Delegation entries.
	TypeDelegation MessageType = "delegation"

	// Global broadcast entries.
	TypeGlobalObservation MessageType = "global_observation"
)

// Message is an append-only memory entry. Only Type and Content are
// required; the remaining fields qualify the entry for history filters
// and prompt assembly.
type Message struct {
	Type    MessageType `json:"type"`
	Content interface{} `json:"content"`

	Timestamp   time.Time              `json:"timestamp,omitempty"`
	TurnID      string                 `json:"turn_id,omitempty"`
	PhaseID     int                    `json:"phase_id,omitempty"`
	Tool        string                 `json:"tool,omitempty"`
	Args        map[string]interface{} `json:"args,omitempty"`
	FromManager string                 `json:"from_manager,omitempty"`
	FromWorker  string                 `json:"from_worker,omitempty"`
	Summary     string                 `json:"summary,omitempty"`
}

// Phase is one step of a strategic plan, executed by exactly one worker.
type Phase struct {
	Name   string `json:"name"`
	Worker string `json:"worker"`
	Goals  string `json:"goals"`
	Notes  string `json:"notes,omitempty"`
}

// StrategicPlan is the phase-ordered planning artifact a strategic
// planner produces for a manager.
type StrategicPlan struct {
	PrimaryWorker string  `json:"primary_worker"`
	TaskType      string  `json:"task_type,omitempty"`
	Phases        []Phase `json:"phases"`
	Rationale     string  `json:"rationale,omitempty"`
}

// SingleStep returns a copy of the plan containing only phase i, so a
// worker never sees phases that are not its own.
func (p *StrategicPlan) SingleStep(i int) *StrategicPlan {
	if p == nil || i < 0 || i >= len(p.Phases) {
		return nil
	}
	return &StrategicPlan{
		PrimaryWorker: p.Phases[i].Worker,
		TaskType:      p.TaskType,
		Phases:        []Phase{p.Phases[i]},
		Rationale:     p.Rationale,
	}
}

// ExecutionMode selects how a script step runs on its worker.
type ExecutionMode string

const (
	// ModeDirect executes the named tool deterministically.
	ModeDirect ExecutionMode = "direct"

	// ModeGuided delegates the step as a suggested plan the worker's
	// planner may refine.
	ModeGuided ExecutionMode = "guided"
)

// ScriptStep is one entry of a manager-generated script.
type ScriptStep struct {
	Name          string                 `json:"name"`
	Worker        string                 `json:"worker"`
	ToolName      string                 `json:"tool_name"`
	Args          map[string]interface{} `json:"args,omitempty"`
	ExecutionMode ExecutionMode          `json:"execution_mode"`
	Notes         string                 `json:"notes,omitempty"`
}

// ScriptPlan is a deterministic plan: an ordered script of steps plus
// the planner's reasoning.
type ScriptPlan struct {
	Thought string       `json:"thought,omitempty"`
	Script  []ScriptStep `json:"script"`
}

// Status values for normalized event results and aggregated runs.
const (
	StatusSuccess = "success"
	StatusPending = "pending"
	StatusError   = "error"
)

// Script aggregation statuses.
const (
	ScriptStatusSuccess = "SUCCESS"
	ScriptStatusFailed  = "FAILED"
)

// CompleteTaskTool is the reserved tool name that signals task
// completion from inside an action batch.
const CompleteTaskTool = "complete_task"

// Error kinds surfaced as error_type on structured error payloads and
// inside FinalResponse payloads with error=true.
const (
	ErrValidation       = "ValidationError"
	ErrToolNotFound     = "ToolNotFound"
	ErrExecution        = "ExecutionError"
	ErrPolicyDenied     = "PolicyDenied"
	ErrApprovalRequired = "ApprovalRequired"
	ErrStagnation       = "Stagnation"
	ErrIterationCap     = "IterationCap"
	ErrPlanParse        = "PlanParseError"
)
