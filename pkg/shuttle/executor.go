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
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/heddle/pkg/observability"
	"github.com/teradata-labs/heddle/pkg/types"
)

// PolicyEngine is the pre-execution deny filter. It can inspect
// data-model state to reject impossible actions (for example a
// relationship referencing a nonexistent column) before the tool runs.
type PolicyEngine interface {
	// Check returns a non-nil error to deny the action. The error
	// message is surfaced as the denial reason.
	Check(ctx context.Context, toolName string, args map[string]interface{}) error
}

// SignatureRecorder records executed-action signatures for approval
// bypass. Implemented by the job store.
type SignatureRecorder interface {
	AddExecutedAction(ctx context.Context, jobID, signature string) error
}

// DeniedListener is notified when the policy engine rejects an action.
type DeniedListener func(toolName string, args map[string]interface{}, reason string)

// EnvDefault fills a schema-expected argument from the process
// environment when the planner omitted it or supplied a placeholder.
type EnvDefault struct {
	// Key is the argument name the tool's schema expects.
	Key string

	// EnvVar is the environment variable providing the value.
	EnvVar string

	// Valid reports whether an environment value is usable. Nil means
	// any non-empty value is accepted.
	Valid func(value string) bool
}

// Executor runs tools with validation, policy filtering, and signature
// tracking.
type Executor struct {
	registry     *Registry
	policyEngine PolicyEngine
	recorder     SignatureRecorder
	envDefaults  []EnvDefault
	onDenied     DeniedListener
	tracer       observability.Tracer
	logger       *zap.Logger
}

// NewExecutor creates a tool executor over the registry.
func NewExecutor(registry *Registry, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		registry: registry,
		tracer:   observability.NewNoOpTracer(),
		logger:   logger,
	}
}

// SetPolicyEngine configures the pre-execution deny filter.
func (e *Executor) SetPolicyEngine(engine PolicyEngine) { e.policyEngine = engine }

// SetSignatureRecorder configures executed-action signature recording.
func (e *Executor) SetSignatureRecorder(recorder SignatureRecorder) { e.recorder = recorder }

// SetEnvDefaults configures environment-derived argument defaults.
func (e *Executor) SetEnvDefaults(defaults []EnvDefault) { e.envDefaults = defaults }

// SetDeniedListener registers a callback for policy denials.
func (e *Executor) SetDeniedListener(listener DeniedListener) { e.onDenied = listener }

// SetTracer configures span instrumentation.
func (e *Executor) SetTracer(tracer observability.Tracer) {
	if tracer != nil {
		e.tracer = tracer
	}
}

// Execute resolves, validates, and runs one action. Failures are
// returned as structured payloads, never as Go errors: the planner
// must see every failure as an observation so it can self-correct.
//
// The returned map always carries "success"; on failure it adds
// error=true, error_message, error_type, and tool.
func (e *Executor) Execute(ctx context.Context, jobID string, action types.Action) map[string]interface{} {
	ctx, span := e.tracer.StartSpan(ctx, "shuttle.execute")
	defer e.tracer.EndSpan(span)
	span.SetAttribute("tool", action.ToolName)

	tool, ok := e.registry.Get(action.ToolName)
	if !ok {
		return errorPayload(action.ToolName, types.ErrToolNotFound,
			fmt.Sprintf("tool not found: %s", action.ToolName))
	}

	args := e.applyEnvDefaults(tool, action.ToolArgs)

	if err := ValidateArgs(tool.InputSchema(), args); err != nil {
		return errorPayload(action.ToolName, types.ErrValidation, err.Error())
	}

	if e.policyEngine != nil {
		if err := e.policyEngine.Check(ctx, action.ToolName, args); err != nil {
			if e.onDenied != nil {
				e.onDenied(action.ToolName, args, err.Error())
			}
			payload := errorPayload(action.ToolName, types.ErrPolicyDenied, err.Error())
			payload["policy_denied"] = true
			return payload
		}
	}

	start := time.Now()
	result, err := tool.Execute(ctx, args)
	elapsed := time.Since(start)
	span.SetAttribute("duration_ms", elapsed.Milliseconds())

	if err != nil {
		e.logger.Warn("tool execution failed",
			zap.String("tool", action.ToolName),
			zap.Error(err))
		return errorPayload(action.ToolName, types.ErrExecution, err.Error())
	}
	if result != nil && !result.Success && result.Error != nil {
		return errorPayload(action.ToolName, types.ErrExecution, result.Error.Message)
	}

	if e.recorder != nil && jobID != "" {
		signature := types.ActionSignature(action.ToolName, args)
		if err := e.recorder.AddExecutedAction(ctx, jobID, signature); err != nil {
			e.logger.Warn("recording executed action failed",
				zap.String("job_id", jobID),
				zap.String("tool", action.ToolName),
				zap.Error(err))
		}
	}

	payload := map[string]interface{}{"success": true}
	if result != nil {
		switch data := result.Data.(type) {
		case map[string]interface{}:
			for k, v := range data {
				payload[k] = v
			}
		case nil:
		default:
			payload["data"] = data
		}
		if result.Metadata != nil {
			payload["metadata"] = result.Metadata
		}
	}
	return payload
}

// applyEnvDefaults returns a copy of args with environment-derived
// values filled in where the schema expects a key the planner omitted
// or stubbed out with a placeholder.
func (e *Executor) applyEnvDefaults(tool Tool, args map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		out[k] = v
	}
	schema := tool.InputSchema()
	if schema == nil || len(e.envDefaults) == 0 {
		return out
	}
	for _, def := range e.envDefaults {
		if _, expected := schema.Properties[def.Key]; !expected {
			continue
		}
		if !needsDefault(out[def.Key]) {
			continue
		}
		value := os.Getenv(def.EnvVar)
		if value == "" {
			continue
		}
		if def.Valid != nil && !def.Valid(value) {
			continue
		}
		out[def.Key] = value
	}
	return out
}

// needsDefault reports whether the planner-supplied value is missing or
// an obvious placeholder.
func needsDefault(value interface{}) bool {
	if value == nil {
		return true
	}
	s, ok := value.(string)
	if !ok {
		return false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	lowered := strings.ToLower(s)
	return strings.HasPrefix(s, "<") || strings.Contains(lowered, "placeholder") || lowered == "unknown"
}

func errorPayload(toolName, errorType, message string) map[string]interface{} {
	return map[string]interface{}{
		"success":       false,
		"error":         true,
		"error_message": message,
		"error_type":    errorType,
		"tool":          toolName,
	}
}

// IsErrorPayload reports whether an execution payload represents a
// failure.
func IsErrorPayload(payload map[string]interface{}) bool {
	if payload == nil {
		return false
	}
	flag, _ := payload["error"].(bool)
	return flag
}
