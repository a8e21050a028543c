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
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/heddle/pkg/events"
	"github.com/teradata-labs/heddle/pkg/history"
	"github.com/teradata-labs/heddle/pkg/jobs"
	"github.com/teradata-labs/heddle/pkg/memory"
	"github.com/teradata-labs/heddle/pkg/observability"
	"github.com/teradata-labs/heddle/pkg/planner"
	"github.com/teradata-labs/heddle/pkg/policy"
	"github.com/teradata-labs/heddle/pkg/shuttle"
	"github.com/teradata-labs/heddle/pkg/types"
)

// Worker runs the plan/act/observe loop over a tool set. One worker
// instance serves one agent key; it is safe to run concurrently with
// sibling workers in the same namespace because all shared state lives
// behind the memory store and the job store.
type Worker struct {
	name        string
	description string
	planner     planner.Planner
	tools       *shuttle.Registry
	executor    *shuttle.Executor
	memory      memory.View
	bus         *events.Bus
	jobStore    jobs.Store

	termination policy.TerminationPolicy
	completion  policy.CompletionDetector
	loopGuard   policy.LoopPreventionPolicy
	hitl        policy.HITLPolicy
	checkpoint  policy.CheckpointPolicy

	maxIterations int
	tracer        observability.Tracer
	logger        *zap.Logger
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithWorkerDescription sets the catalog description.
func WithWorkerDescription(description string) WorkerOption {
	return func(w *Worker) { w.description = description }
}

// WithBus sets the lifecycle event bus.
func WithBus(bus *events.Bus) WorkerOption {
	return func(w *Worker) { w.bus = bus }
}

// WithJobStore wires plan, approval, and signature persistence.
func WithJobStore(store jobs.Store) WorkerOption {
	return func(w *Worker) { w.jobStore = store }
}

// WithTermination overrides the termination policy.
func WithTermination(p policy.TerminationPolicy) WorkerOption {
	return func(w *Worker) { w.termination = p }
}

// WithCompletionDetector overrides the completion detector.
func WithCompletionDetector(d policy.CompletionDetector) WorkerOption {
	return func(w *Worker) { w.completion = d }
}

// WithLoopGuard overrides the loop prevention policy.
func WithLoopGuard(g policy.LoopPreventionPolicy) WorkerOption {
	return func(w *Worker) { w.loopGuard = g }
}

// WithHITL overrides the approval policy.
func WithHITL(p policy.HITLPolicy) WorkerOption {
	return func(w *Worker) { w.hitl = p }
}

// WithCheckpoint overrides the checkpoint policy.
func WithCheckpoint(p policy.CheckpointPolicy) WorkerOption {
	return func(w *Worker) { w.checkpoint = p }
}

// WithMaxIterations bounds the planner loop.
func WithMaxIterations(n int) WorkerOption {
	return func(w *Worker) { w.maxIterations = n }
}

// WithExecutor overrides the tool executor.
func WithExecutor(executor *shuttle.Executor) WorkerOption {
	return func(w *Worker) { w.executor = executor }
}

// WithWorkerTracer sets span instrumentation.
func WithWorkerTracer(tracer observability.Tracer) WorkerOption {
	return func(w *Worker) {
		if tracer != nil {
			w.tracer = tracer
		}
	}
}

// WithWorkerLogger sets the worker logger.
func WithWorkerLogger(logger *zap.Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWorker creates a worker over the planner, tool registry, and
// memory view.
func NewWorker(name string, p planner.Planner, tools *shuttle.Registry, view memory.View, opts ...WorkerOption) *Worker {
	w := &Worker{
		name:          name,
		planner:       p,
		tools:         tools,
		memory:        view,
		maxIterations: policy.DefaultMaxIterations,
		tracer:        observability.NewNoOpTracer(),
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.completion == nil {
		w.completion = policy.NewCompletionDetector(policy.CompletionOptions{})
	}
	if w.termination == nil {
		w.termination = policy.NewTerminationPolicy(policy.TerminationOptions{
			MaxIterations: w.maxIterations,
			Detector:      w.completion,
		})
	}
	if w.loopGuard == nil {
		w.loopGuard = policy.NewLoopGuard(policy.LoopGuardOptions{})
	}
	if w.hitl == nil {
		w.hitl = policy.NewHITLPolicy(policy.HITLOptions{})
	}
	if w.checkpoint == nil {
		w.checkpoint = policy.NewCheckpointPolicy(policy.CheckpointOptions{})
	}
	if w.executor == nil {
		w.executor = shuttle.NewExecutor(tools, w.logger)
		w.executor.SetTracer(w.tracer)
		if w.jobStore != nil {
			w.executor.SetSignatureRecorder(w.jobStore)
		}
	}
	return w
}

// Name implements Runner.
func (w *Worker) Name() string { return w.name }

// Description returns the catalog description.
func (w *Worker) Description() string { return w.description }

// Tools exposes the worker's tool registry for script validation.
func (w *Worker) Tools() *shuttle.Registry { return w.tools }

func (w *Worker) actor() events.Actor {
	return events.Actor{Role: "worker", Name: w.name}
}

func (w *Worker) publish(name string, payload map[string]interface{}) {
	if w.bus != nil {
		w.bus.Publish(name, w.actor(), payload)
	}
}

// Run implements Runner. See the package documentation for the loop
// semantics; the short version is plan, gate, execute, observe, and
// consult the policies in a fixed order every iteration.
func (w *Worker) Run(ctx context.Context, rctx *RequestContext, in RunInput) (*types.FinalResponse, error) {
	ctx, span := w.tracer.StartSpan(ctx, "worker.run")
	defer w.tracer.EndSpan(span)
	span.SetAttribute("worker", w.name)

	if rctx == nil {
		rctx = NewRequestContext("")
	}
	ctx = WithRequestContext(ctx, rctx)
	ctx = history.WithPhaseID(ctx, rctx.PhaseIndex())

	w.publish(events.AgentStart, map[string]interface{}{"task": in.Task})

	turnID := uuid.NewString()
	w.memory.Add(types.Message{
		Type:      types.TypeTask,
		Content:   in.Task,
		Timestamp: time.Now(),
		TurnID:    turnID,
	})
	w.applyExecutionContext(rctx, in)

	var result *types.FinalResponse
	if len(in.Script) > 0 {
		result = w.runScript(ctx, rctx, in, turnID)
	} else {
		result = w.runPlanned(ctx, rctx, in, turnID)
	}

	w.publish(events.AgentEnd, events.NormalizedResult(statusOf(result), result))
	return result, nil
}

// applyExecutionContext injects the delegation context into memory and
// the request context before the loop starts.
func (w *Worker) applyExecutionContext(rctx *RequestContext, in RunInput) {
	if in.SuggestedPlan != nil {
		w.memory.Add(types.Message{
			Type:      types.TypeSuggestedPlan,
			Content:   jsonString(in.SuggestedPlan),
			Timestamp: time.Now(),
		})
	}
	if len(in.ExecutionContext) == 0 {
		return
	}
	w.memory.Add(types.Message{
		Type:      types.TypeInjectedContext,
		Content:   in.ExecutionContext,
		Timestamp: time.Now(),
	})
	if v, ok := in.ExecutionContext["director_context"].(string); ok && v != "" {
		rctx.DirectorContext = v
	}
	if v, ok := in.ExecutionContext["data_model_context"].(string); ok && v != "" {
		rctx.DataModelContext = v
	}
}

// runScript executes a deterministic script, bypassing the planner.
// Steps run in order and the first failure short-circuits.
func (w *Worker) runScript(ctx context.Context, rctx *RequestContext, in RunInput, turnID string) *types.FinalResponse {
	w.memory.Add(types.Message{
		Type:      types.TypeScriptInstruction,
		Content:   map[string]interface{}{"script": in.Script, "metadata": in.ScriptMetadata},
		Timestamp: time.Now(),
		TurnID:    turnID,
	})

	var records []map[string]interface{}
	overall := types.ScriptStatusSuccess
	for _, step := range in.Script {
		action := types.Action{ToolName: step.ToolName, ToolArgs: step.Args}
		w.publish(events.ActionPlanned, map[string]interface{}{
			"tool": action.ToolName,
			"args": action.ToolArgs,
			"step": step.Name,
		})
		in.notify("script_step", map[string]interface{}{"step": step.Name, "tool": step.ToolName})
		w.appendAction(action, turnID)

		payload := w.executeAction(ctx, rctx, action)
		w.appendObservation(action, payload, turnID)

		status := "success"
		if shuttle.IsErrorPayload(payload) {
			status = "failed"
			overall = types.ScriptStatusFailed
		}
		records = append(records, map[string]interface{}{
			"name":   step.Name,
			"tool":   step.ToolName,
			"status": status,
			"result": payload,
		})
		w.publish(events.ActionExecuted, events.NormalizedResult(scriptStatusToEvent(status), payload))

		if status == "failed" {
			break
		}
	}

	summary := fmt.Sprintf("Script finished with status %s (%d of %d steps executed).",
		overall, len(records), len(in.Script))
	response := &types.FinalResponse{
		Operation: types.OpDisplayMessage,
		Payload: map[string]interface{}{
			"message":        summary,
			"overall_status": overall,
			"script_steps":   records,
		},
		HumanReadableSummary: summary,
	}
	if overall == types.ScriptStatusFailed {
		response.Payload["error"] = true
	}
	return response
}

func scriptStatusToEvent(status string) string {
	if status == "failed" {
		return types.StatusError
	}
	return types.StatusSuccess
}

// runPlanned drives the iterative plan/act/observe loop.
func (w *Worker) runPlanned(ctx context.Context, rctx *RequestContext, in RunInput, turnID string) *types.FinalResponse {
	completeTaskExecuted := false

	for iteration := 1; ; iteration++ {
		if err := ctx.Err(); err != nil {
			return w.errorResponse(types.ErrExecution, "run cancelled: "+err.Error())
		}

		history := w.memory.GetHistory()

		// A completed task never re-plans.
		if iteration > 1 {
			if final := w.finalAfterCompleteTask(history); final != nil {
				return final
			}
		}

		outcome, err := w.planner.Plan(ctx, in.Task, history)
		if err != nil {
			w.publish(events.Error, map[string]interface{}{"error": err.Error(), "stage": "plan"})
			return w.errorResponse(types.ErrExecution, "planning failed: "+err.Error())
		}
		if unrecognized, ok := outcome.(planner.UnrecognizedOutcome); ok {
			// Surface the parse failure as an observation so the planner
			// can self-correct on the next iteration.
			w.memory.Add(types.Message{
				Type:      types.TypeError,
				Content:   map[string]interface{}{"error_type": types.ErrPlanParse, "raw": unrecognized.Raw},
				Timestamp: time.Now(),
				TurnID:    turnID,
			})
			w.publish(events.Error, map[string]interface{}{"error_type": types.ErrPlanParse})
			continue
		}

		if w.termination.ShouldTerminate(iteration, outcome, history) {
			if final := planner.Final(outcome); final != nil {
				w.appendFinal(final, turnID)
				return final
			}
			if iteration > w.maxIterations {
				return w.errorResponse(types.ErrIterationCap,
					fmt.Sprintf("run stopped after reaching the iteration cap (%d)", w.maxIterations))
			}
			done := types.NewMessageResponse("Task completed.", "Task completed.")
			w.appendFinal(done, turnID)
			return done
		}

		actions := planner.Actions(outcome)
		if containsCompleteTask(actions) && completeTaskExecuted {
			return types.NewMessageResponse("The task was already completed earlier in this run.",
				"Task already completed.")
		}

		turnActions, turnObservations := partitionTurn(policy.CurrentTurn(history))
		if reason := w.loopGuard.DetectStagnation(turnActions, turnObservations, history); reason != "" {
			return w.stagnationResponse(reason)
		}

		for _, action := range actions {
			w.publish(events.ActionPlanned, map[string]interface{}{
				"tool": action.ToolName,
				"args": action.ToolArgs,
			})
		}

		// Approval gates the whole batch: no action executes if any one
		// needs a human decision.
		approvalCtx := w.approvalContext(ctx, rctx)
		for _, action := range actions {
			if w.hitl.RequiresApproval(action.ToolName, action.ToolArgs, approvalCtx) {
				return w.requestApproval(ctx, rctx, action)
			}
		}

		results := w.executeBatch(ctx, rctx, actions)

		var lastPayload map[string]interface{}
		var lastTool string
		for idx, action := range actions {
			payload := results[idx]
			w.appendAction(action, turnID)
			w.appendObservation(action, payload, turnID)
			w.publish(events.WorkerToolResult, map[string]interface{}{
				"tool":   action.ToolName,
				"result": payload,
			})
			w.publish(events.ActionExecuted, events.NormalizedResult(payloadStatus(payload), payload))

			if action.ToolName == types.CompleteTaskTool {
				completeTaskExecuted = true
				final := payloadToResponse(payload, "Task completed.")
				w.appendFinal(final, turnID)
				return final
			}
			lastPayload = payload
			lastTool = action.ToolName
		}

		if lastPayload != nil && w.completion.IsComplete(lastPayload, w.memory.GetHistory()) {
			final := batchToResponse(actions, results, "Task completed.")
			w.appendFinal(final, turnID)
			return final
		}

		// Re-check after execution: same-action-same-result loops only
		// become visible once the new observations land.
		turnActions, turnObservations = partitionTurn(policy.CurrentTurn(w.memory.GetHistory()))
		if reason := w.loopGuard.DetectStagnation(turnActions, turnObservations, w.memory.GetHistory()); reason != "" {
			return w.stagnationResponse(reason)
		}

		if w.checkpoint.ShouldCheckpoint(lastPayload, iteration, lastTool) {
			return w.checkpoint.CreateCheckpointResponse(lastPayload)
		}

		if awaiting, action := awaitingApproval(actions, results); awaiting {
			return w.requestApproval(ctx, rctx, action)
		}
	}
}

// finalAfterCompleteTask returns the terminal response recorded by a
// prior complete_task in the current turn, if one exists.
func (w *Worker) finalAfterCompleteTask(history []types.Message) *types.FinalResponse {
	turn := policy.CurrentTurn(history)
	var lastAction *types.Message
	var lastObservation *types.Message
	for i := range turn {
		switch turn[i].Type {
		case types.TypeAction:
			lastAction = &turn[i]
		case types.TypeObservation:
			lastObservation = &turn[i]
		}
	}
	if lastAction == nil || lastAction.Tool != types.CompleteTaskTool {
		return nil
	}
	if lastObservation != nil {
		if payload, ok := lastObservation.Content.(map[string]interface{}); ok {
			return payloadToResponse(payload, "Task completed.")
		}
	}
	return types.NewMessageResponse("Task completed.", "Task completed.")
}

// executeBatch fans the actions out concurrently, waiting for every
// result including failures: the planner must see all observations to
// self-correct. Results are indexed by action position so attribution
// survives arbitrary completion order.
func (w *Worker) executeBatch(ctx context.Context, rctx *RequestContext, actions []types.Action) []map[string]interface{} {
	results := make([]map[string]interface{}, len(actions))
	if len(actions) == 1 {
		results[0] = w.executeAction(ctx, rctx, actions[0])
		return results
	}

	var wg sync.WaitGroup
	for idx, action := range actions {
		wg.Add(1)
		go func(idx int, action types.Action) {
			defer wg.Done()
			childCtx := WithRequestContext(ctx, rctx.Snapshot())
			results[idx] = w.executeAction(childCtx, rctx, action)
		}(idx, action)
	}
	wg.Wait()
	return results
}

// executeAction runs one action through the executor. complete_task is
// synthetic: it never resolves to a registered tool and simply carries
// its arguments forward as the completed payload.
func (w *Worker) executeAction(ctx context.Context, rctx *RequestContext, action types.Action) map[string]interface{} {
	if action.ToolName == types.CompleteTaskTool {
		payload := map[string]interface{}{"success": true, "completed": true}
		for k, v := range action.ToolArgs {
			payload[k] = v
		}
		return payload
	}
	w.publish(events.WorkerToolCall, map[string]interface{}{
		"tool": action.ToolName,
		"args": action.ToolArgs,
	})
	payload := w.executor.Execute(ctx, rctx.JobID, action)
	if denied, _ := payload["policy_denied"].(bool); denied {
		w.publish(events.PolicyDenied, map[string]interface{}{
			"tool":   action.ToolName,
			"args":   action.ToolArgs,
			"reason": payload["error_message"],
		})
	} else if shuttle.IsErrorPayload(payload) {
		w.publish(events.Error, map[string]interface{}{
			"tool":       action.ToolName,
			"error_type": payload["error_type"],
			"error":      payload["error_message"],
		})
	}
	return payload
}

func (w *Worker) approvalContext(ctx context.Context, rctx *RequestContext) policy.ApprovalContext {
	actx := policy.ApprovalContext{
		JobID:     rctx.JobID,
		Approvals: rctx.Approvals,
	}
	if w.jobStore != nil && rctx.JobID != "" {
		store, jobID := w.jobStore, rctx.JobID
		actx.HasExecuted = func(signature string) bool {
			executed, err := store.HasExecutedAction(ctx, jobID, signature)
			if err != nil {
				w.logger.Warn("signature lookup failed", zap.Error(err))
				return false
			}
			return executed
		}
	}
	return actx
}

// requestApproval persists the pending action and returns the approval
// round-trip response. No observation is recorded for the unexecuted
// action.
func (w *Worker) requestApproval(ctx context.Context, rctx *RequestContext, action types.Action) *types.FinalResponse {
	if w.jobStore != nil && rctx.JobID != "" {
		err := w.jobStore.SavePendingAction(ctx, rctx.JobID, jobs.PendingAction{
			Worker: w.name,
			Tool:   action.ToolName,
			Args:   action.ToolArgs,
		})
		if err != nil {
			w.logger.Warn("persisting pending action failed",
				zap.String("job_id", rctx.JobID),
				zap.Error(err))
		}
	}
	return w.hitl.CreateApprovalRequest(action.ToolName, action.ToolArgs, w.approvalContext(ctx, rctx))
}

func (w *Worker) appendAction(action types.Action, turnID string) {
	w.memory.Add(types.Message{
		Type:      types.TypeAction,
		Timestamp: time.Now(),
		TurnID:    turnID,
		Tool:      action.ToolName,
		Args:      action.ToolArgs,
	})
}

func (w *Worker) appendObservation(action types.Action, payload map[string]interface{}, turnID string) {
	w.memory.Add(types.Message{
		Type:      types.TypeObservation,
		Content:   payload,
		Timestamp: time.Now(),
		TurnID:    turnID,
		Tool:      action.ToolName,
	})
}

func (w *Worker) appendFinal(result *types.FinalResponse, turnID string) {
	w.memory.Add(types.Message{
		Type:      types.TypeFinal,
		Content:   result,
		Timestamp: time.Now(),
		TurnID:    turnID,
		Summary:   result.HumanReadableSummary,
	})
}

func (w *Worker) errorResponse(errorType, message string) *types.FinalResponse {
	w.publish(events.Error, map[string]interface{}{"error_type": errorType, "error": message})
	response := types.NewErrorResponse(message, message)
	response.Payload["error_type"] = errorType
	return response
}

func (w *Worker) stagnationResponse(reason string) *types.FinalResponse {
	message := "Execution stopped: " + reason
	w.publish(events.Error, map[string]interface{}{"error_type": types.ErrStagnation, "error": reason})
	return &types.FinalResponse{
		Operation: types.OpDisplayMessage,
		Payload: map[string]interface{}{
			"message":    message,
			"error":      true,
			"stagnation": true,
			"error_type": types.ErrStagnation,
		},
		HumanReadableSummary: message,
	}
}

func containsCompleteTask(actions []types.Action) bool {
	for _, action := range actions {
		if action.ToolName == types.CompleteTaskTool {
			return true
		}
	}
	return false
}

func partitionTurn(turn []types.Message) (actions, observations []types.Message) {
	for _, msg := range turn {
		switch msg.Type {
		case types.TypeAction:
			actions = append(actions, msg)
		case types.TypeObservation:
			observations = append(observations, msg)
		}
	}
	return actions, observations
}

func payloadStatus(payload map[string]interface{}) string {
	if shuttle.IsErrorPayload(payload) {
		return types.StatusError
	}
	if awaiting, _ := payload["await_approval"].(bool); awaiting {
		return types.StatusPending
	}
	return types.StatusSuccess
}

// awaitingApproval finds the first result flagged await_approval and
// its action.
func awaitingApproval(actions []types.Action, results []map[string]interface{}) (bool, types.Action) {
	for idx, payload := range results {
		if awaiting, _ := payload["await_approval"].(bool); awaiting {
			return true, actions[idx]
		}
	}
	return false, types.Action{}
}

var _ Runner = (*Worker)(nil)
