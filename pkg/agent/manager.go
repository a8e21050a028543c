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
	"encoding/json"
	"fmt"
	"sort"
	"strings"
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

// RoleManager and RoleOrchestrator select the event vocabulary a
// Manager emits: an orchestrator announces phases, a mid-tier manager
// announces steps.
const (
	RoleManager      = "manager"
	RoleOrchestrator = "orchestrator"
)

// phaseOutputSeparator joins a phase goal with the previous phase's
// output when composing the delegated task.
const phaseOutputSeparator = "\n\n--- Previous Phase Output ---\n"

// SynthesisGateway turns a technical outcome into a user-facing
// summary. It is the lightweight alternative to a full synthesizer
// agent; when both are configured the agent wins.
type SynthesisGateway interface {
	Synthesize(ctx context.Context, userRequest, technicalOutcome string) (string, error)
}

// Manager delegates work to its registered runners. Depending on what
// its planner produces it runs a single delegation with follow-ups, a
// sequential phase plan, a deterministic script, or a parallel fan-out.
type Manager struct {
	name        string
	description string
	role        string
	planner     planner.Planner
	workers     map[string]Runner
	tools       *shuttle.Registry
	executor    *shuttle.Executor
	builder     *ContextBuilder
	memory      memory.View
	bus         *events.Bus
	jobStore    jobs.Store

	synthesizer Runner
	gateway     SynthesisGateway
	followUp    policy.FollowUpPolicy
	completion  policy.CompletionDetector

	maxFollowUps int
	tracer       observability.Tracer
	logger       *zap.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerDescription sets the catalog description.
func WithManagerDescription(description string) ManagerOption {
	return func(m *Manager) { m.description = description }
}

// WithRole sets the event vocabulary (RoleManager or RoleOrchestrator).
func WithRole(role string) ManagerOption {
	return func(m *Manager) { m.role = role }
}

// WithManagerBus sets the lifecycle event bus.
func WithManagerBus(bus *events.Bus) ManagerOption {
	return func(m *Manager) { m.bus = bus }
}

// WithManagerJobStore wires plan and phase-cursor persistence.
func WithManagerJobStore(store jobs.Store) ManagerOption {
	return func(m *Manager) { m.jobStore = store }
}

// WithManagerTools gives the manager a registry of tools it can run
// itself without delegating.
func WithManagerTools(registry *shuttle.Registry) ManagerOption {
	return func(m *Manager) { m.tools = registry }
}

// WithContextBuilder overrides the builder used for briefings and
// work orders.
func WithContextBuilder(builder *ContextBuilder) ManagerOption {
	return func(m *Manager) {
		if builder != nil {
			m.builder = builder
		}
	}
}

// WithSynthesizer sets a synthesizer agent. Its response replaces the
// manager's aggregate wholesale.
func WithSynthesizer(synthesizer Runner) ManagerOption {
	return func(m *Manager) { m.synthesizer = synthesizer }
}

// WithSynthesisGateway sets a summary-only gateway, used when no
// synthesizer agent is configured.
func WithSynthesisGateway(gateway SynthesisGateway) ManagerOption {
	return func(m *Manager) { m.gateway = gateway }
}

// WithFollowUp overrides the follow-up policy.
func WithFollowUp(p policy.FollowUpPolicy) ManagerOption {
	return func(m *Manager) { m.followUp = p }
}

// WithManagerCompletionDetector overrides the completion detector used
// to skip redundant follow-ups.
func WithManagerCompletionDetector(d policy.CompletionDetector) ManagerOption {
	return func(m *Manager) { m.completion = d }
}

// WithMaxFollowUps caps follow-up delegations per run.
func WithMaxFollowUps(n int) ManagerOption {
	return func(m *Manager) { m.maxFollowUps = n }
}

// WithManagerTracer sets span instrumentation.
func WithManagerTracer(tracer observability.Tracer) ManagerOption {
	return func(m *Manager) {
		if tracer != nil {
			m.tracer = tracer
		}
	}
}

// WithManagerLogger sets the manager logger.
func WithManagerLogger(logger *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a manager over a planner and its runners.
func NewManager(name string, p planner.Planner, workers []Runner, view memory.View, opts ...ManagerOption) *Manager {
	m := &Manager{
		name:         name,
		role:         RoleManager,
		planner:      p,
		workers:      make(map[string]Runner, len(workers)),
		memory:       view,
		maxFollowUps: 3,
		tracer:       observability.NewNoOpTracer(),
		logger:       zap.NewNop(),
	}
	for _, worker := range workers {
		m.workers[worker.Name()] = worker
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.builder == nil {
		m.builder = NewContextBuilder(WithBuilderLogger(m.logger))
	}
	if m.completion == nil {
		m.completion = policy.NewCompletionDetector(policy.CompletionOptions{})
	}
	if m.followUp == nil {
		m.followUp = policy.NewFollowUpPolicy(policy.FollowUpOptions{
			Enabled:          true,
			StopOnCompletion: true,
			Detector:         m.completion,
		})
	}
	if m.tools != nil && m.executor == nil {
		m.executor = shuttle.NewExecutor(m.tools, m.logger)
		m.executor.SetTracer(m.tracer)
		if m.jobStore != nil {
			m.executor.SetSignatureRecorder(m.jobStore)
		}
	}
	return m
}

// Name implements Runner.
func (m *Manager) Name() string { return m.name }

// Description returns the catalog description.
func (m *Manager) Description() string { return m.description }

// Workers lists the registered runner names in stable order.
func (m *Manager) Workers() []string {
	names := make([]string, 0, len(m.workers))
	for name := range m.workers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) actor() events.Actor {
	return events.Actor{Role: m.role, Name: m.name}
}

func (m *Manager) publish(name string, payload map[string]interface{}) {
	if m.bus != nil {
		m.bus.Publish(name, m.actor(), payload)
	}
}

// Run implements Runner.
func (m *Manager) Run(ctx context.Context, rctx *RequestContext, in RunInput) (*types.FinalResponse, error) {
	ctx, span := m.tracer.StartSpan(ctx, m.role+".run")
	defer m.tracer.EndSpan(span)
	span.SetAttribute(m.role, m.name)

	if rctx == nil {
		rctx = NewRequestContext("")
	}
	ctx = WithRequestContext(ctx, rctx)
	ctx = history.WithPhaseID(ctx, rctx.PhaseIndex())

	m.publish(events.ManagerStart, map[string]interface{}{"task": in.Task})

	turnID := uuid.NewString()
	m.memory.Add(types.Message{
		Type:      types.TypeTask,
		Content:   in.Task,
		Timestamp: time.Now(),
		TurnID:    turnID,
	})

	if briefing := m.assembleBriefing(rctx, in); briefing != "" {
		m.memory.Add(types.Message{
			Type:      types.TypeDirectorContext,
			Content:   briefing,
			Timestamp: time.Now(),
			TurnID:    turnID,
		})
		rctx.DirectorContext = briefing
	}

	var result *types.FinalResponse
	if in.Plan != nil {
		m.memory.Add(types.Message{
			Type:      types.TypeStrategicPlan,
			Content:   planAsMap(in.Plan),
			Timestamp: time.Now(),
			TurnID:    turnID,
		})
		result = m.executePhases(ctx, rctx, in, in.Plan, turnID)
	} else {
		result = m.planAndDelegate(ctx, rctx, in, turnID)
	}

	m.publish(events.ManagerEnd, events.NormalizedResult(statusOf(result), result))
	return result, nil
}

// assembleBriefing builds the role-specific context injected into
// memory before planning. An orchestrator is briefed with its manager
// catalog and the recent conversation; a mid-tier manager gets the
// blueprint for the goal its director assigned.
func (m *Manager) assembleBriefing(rctx *RequestContext, in RunInput) string {
	if m.role == RoleOrchestrator {
		conversation := history.OrchestratorFilter{}.Apply(m.memory.GetHistory(), history.FilterContext{})
		return m.builder.OrchestratorBriefing(m.catalog(), conversation, in.Task)
	}
	return m.builder.ManagerBlueprint(in.Task, rctx.DataModelContext, m.catalog(), "")
}

// catalog renders the registered runners for briefing assembly.
func (m *Manager) catalog() []CatalogEntry {
	entries := make([]CatalogEntry, 0, len(m.workers))
	for _, name := range m.Workers() {
		runner := m.workers[name]
		entry := CatalogEntry{Name: name}
		if described, ok := runner.(interface{ Description() string }); ok {
			entry.Description = described.Description()
		}
		if tooled, ok := runner.(interface{ Tools() *shuttle.Registry }); ok {
			if registry := tooled.Tools(); registry != nil {
				entry.Tools = registry.List()
			}
		}
		entries = append(entries, entry)
	}
	return entries
}

// workOrder attaches the assembled work-order bundle to a delegation's
// execution context so the worker records it and scopes its planning
// to it.
func (m *Manager) workOrder(in RunInput, task string, script []types.ScriptStep, plan *types.StrategicPlan) map[string]interface{} {
	ec := make(map[string]interface{}, len(in.ExecutionContext)+1)
	for k, v := range in.ExecutionContext {
		ec[k] = v
	}
	ec["director_context"] = m.builder.WorkerOrder(task, script, plan)
	return ec
}

// planAndDelegate runs the planner once and dispatches on what it
// produced.
func (m *Manager) planAndDelegate(ctx context.Context, rctx *RequestContext, in RunInput, turnID string) *types.FinalResponse {
	outcome, err := m.planner.Plan(ctx, in.Task, m.memory.GetHistory())
	if err != nil {
		m.publish(events.Error, map[string]interface{}{"error": err.Error(), "stage": "plan"})
		return m.errorResponse(types.ErrExecution, "delegation planning failed: "+err.Error())
	}

	switch o := outcome.(type) {
	case planner.FinalOutcome:
		return m.finalize(ctx, rctx, in, o.Response, turnID)

	case planner.UnrecognizedOutcome:
		m.logger.Warn("unrecognized planner output", zap.String("manager", m.name))
		return m.errorResponse(types.ErrPlanParse, "the planner produced no recognizable delegation")

	case planner.ActionsOutcome:
		return m.executeParallel(ctx, rctx, in, o.Actions, turnID)

	case planner.ActionOutcome:
		return m.dispatchAction(ctx, rctx, in, o.Action, turnID)

	default:
		return m.errorResponse(types.ErrPlanParse, "the planner produced no recognizable delegation")
	}
}

// dispatchAction routes a single planner action: embedded plan,
// embedded script, known runner, or own tool.
func (m *Manager) dispatchAction(ctx context.Context, rctx *RequestContext, in RunInput, action types.Action, turnID string) *types.FinalResponse {
	switch {
	case action.ToolName == planner.ExecutePlanTool:
		plan := planFromArgs(action.ToolArgs)
		if plan == nil {
			return m.errorResponse(types.ErrPlanParse, "execute_plan action carried no strategic plan")
		}
		m.memory.Add(types.Message{
			Type:      types.TypeStrategicPlan,
			Content:   action.ToolArgs["strategic_plan"],
			Timestamp: time.Now(),
			TurnID:    turnID,
		})
		return m.executePhases(ctx, rctx, in, plan, turnID)

	case action.ToolName == planner.ExecuteScriptTool:
		steps := scriptFromArgs(action.ToolArgs)
		if len(steps) == 0 {
			return m.errorResponse(types.ErrPlanParse, "execute_script action carried no script steps")
		}
		thought, _ := action.ToolArgs["thought"].(string)
		m.memory.Add(types.Message{
			Type:      types.TypeScriptPlan,
			Content:   map[string]interface{}{"thought": thought, "script": action.ToolArgs["script"]},
			Timestamp: time.Now(),
			TurnID:    turnID,
		})
		return m.executeScript(ctx, rctx, in, thought, steps, turnID)

	case m.workers[action.ToolName] != nil:
		return m.delegateWithFollowUps(ctx, rctx, in, action, turnID)

	case m.executor != nil && m.hasTool(action.ToolName):
		payload := m.executor.Execute(ctx, rctx.JobID, action)
		converted := convertToolResult(payload, "Completed.")
		m.recordDelegation(m.name, action.ToolName, converted, turnID, 0)
		if shuttle.IsErrorPayload(payload) {
			message, _ := payload["error_message"].(string)
			return m.errorResponse(types.ErrExecution, message)
		}
		return m.finalize(ctx, rctx, in, converted, turnID)

	default:
		return m.errorResponse(types.ErrToolNotFound,
			fmt.Sprintf("unknown delegation target: %s", action.ToolName))
	}
}

func (m *Manager) hasTool(name string) bool {
	if m.tools == nil {
		return false
	}
	_, ok := m.tools.Get(name)
	return ok
}

// executePhases runs a strategic plan phase by phase. Each phase's
// output feeds the next phase's task, each worker sees only its own
// phase, and an approval suspension bubbles straight up.
func (m *Manager) executePhases(ctx context.Context, rctx *RequestContext, in RunInput, plan *types.StrategicPlan, turnID string) *types.FinalResponse {
	if len(plan.Phases) == 0 {
		return m.errorResponse(types.ErrValidation, "the strategic plan contains no phases")
	}
	m.persistPlan(ctx, rctx, plan)

	previousPlan := rctx.StrategicPlan
	rctx.StrategicPlan = plan
	defer func() { rctx.StrategicPlan = previousPlan }()

	startEvent, endEvent := events.ManagerStepStart, events.ManagerStepEnd
	if m.role == RoleOrchestrator {
		startEvent, endEvent = events.OrchestratorPhaseStart, events.OrchestratorPhaseEnd
	}

	var previous *types.FinalResponse
	completed := 0
	for i, phase := range plan.Phases {
		if err := ctx.Err(); err != nil {
			return m.errorResponse(types.ErrExecution, "run cancelled: "+err.Error())
		}
		worker, ok := m.workers[phase.Worker]
		if !ok {
			m.logger.Warn("plan names an unknown worker, skipping phase",
				zap.String("phase", phase.Name),
				zap.String("worker", phase.Worker))
			continue
		}

		task := phase.Goals
		if previous != nil {
			task = phase.Goals + phaseOutputSeparator + formatResult(previous)
		}

		m.publish(startEvent, map[string]interface{}{
			"phase":  phase.Name,
			"worker": phase.Worker,
			"index":  i,
		})
		in.notify("phase", map[string]interface{}{"phase": phase.Name, "worker": phase.Worker})

		childRctx := rctx.Snapshot()
		childRctx.StrategicPlan = plan.SingleStep(i)
		if m.role == RoleOrchestrator {
			childRctx.OrchestratorPhaseIndex = i
		} else {
			childRctx.ManagerStepIndex = i
		}

		result, err := worker.Run(ctx, childRctx, RunInput{
			Task:             task,
			ExecutionContext: m.workOrder(in, task, nil, nil),
			Progress:         in.Progress,
		})
		if err != nil {
			result = m.errorResponse(types.ErrExecution,
				fmt.Sprintf("phase %q failed: %v", phase.Name, err))
		}

		m.publish(endEvent, map[string]interface{}{
			"phase":  phase.Name,
			"worker": phase.Worker,
			"index":  i,
			"status": statusOf(result),
		})
		m.recordDelegation(phase.Worker, phase.Name, result, turnID, i)

		if result.Operation == types.OpAwaitApproval {
			return result
		}
		if result.IsError() {
			return m.phaseFailure(phase, result)
		}

		if m.jobStore != nil && rctx.JobID != "" {
			if _, err := m.jobStore.BumpPhase(ctx, rctx.JobID, m.name); err != nil {
				m.logger.Warn("bumping phase cursor failed", zap.Error(err))
			}
		}
		previous = result
		completed++
	}

	if previous == nil {
		return m.errorResponse(types.ErrValidation,
			"no phase of the plan named a known worker")
	}
	if m.followUp.ShouldFollowUp(previous.Payload, len(plan.Phases), completed, m.memory.GetHistory()) {
		if followed := m.runFollowUp(ctx, rctx, in, plan.PrimaryWorker, previous, turnID); followed != nil {
			previous = followed
		}
	}
	return m.finalize(ctx, rctx, in, previous, turnID)
}

// delegateWithFollowUps runs a single delegation, then lets the
// follow-up policy trigger bounded extra delegations to the same
// worker.
func (m *Manager) delegateWithFollowUps(ctx context.Context, rctx *RequestContext, in RunInput, action types.Action, turnID string) *types.FinalResponse {
	worker := m.workers[action.ToolName]
	task := in.Task
	if goal, ok := action.ToolArgs["task"].(string); ok && goal != "" {
		task = goal
	}

	m.publish(events.DelegationChosen, map[string]interface{}{
		"worker": action.ToolName,
		"task":   task,
	})

	result, err := worker.Run(ctx, rctx.Snapshot(), RunInput{
		Task:             task,
		ExecutionContext: m.workOrder(in, task, nil, nil),
		Progress:         in.Progress,
	})
	if err != nil {
		return m.errorResponse(types.ErrExecution,
			fmt.Sprintf("delegation to %s failed: %v", action.ToolName, err))
	}
	m.publish(events.DelegationExecuted, events.NormalizedResult(statusOf(result), result))
	m.recordDelegation(action.ToolName, task, result, turnID, 0)

	if result.Operation == types.OpAwaitApproval {
		return result
	}

	for followUps := 0; followUps < m.maxFollowUps; followUps++ {
		if !m.followUp.ShouldFollowUp(result.Payload, 1, 0, m.memory.GetHistory()) {
			break
		}
		if m.completion.IsComplete(result.Payload, m.memory.GetHistory()) {
			break
		}
		followTask := in.Task + phaseOutputSeparator + formatResult(result)
		next, err := worker.Run(ctx, rctx.Snapshot(), RunInput{
			Task:             followTask,
			ExecutionContext: m.workOrder(in, followTask, nil, nil),
			Progress:         in.Progress,
		})
		if err != nil || next == nil {
			break
		}
		m.recordDelegation(action.ToolName, followTask, next, turnID, 0)
		result = next
		if result.Operation == types.OpAwaitApproval || result.IsError() {
			break
		}
	}
	return m.finalize(ctx, rctx, in, result, turnID)
}

// runFollowUp performs one follow-up delegation to the plan's primary
// worker after phase execution.
func (m *Manager) runFollowUp(ctx context.Context, rctx *RequestContext, in RunInput, primaryWorker string, previous *types.FinalResponse, turnID string) *types.FinalResponse {
	worker, ok := m.workers[primaryWorker]
	if !ok {
		return nil
	}
	task := in.Task + phaseOutputSeparator + formatResult(previous)
	result, err := worker.Run(ctx, rctx.Snapshot(), RunInput{
		Task:             task,
		ExecutionContext: m.workOrder(in, task, nil, nil),
		Progress:         in.Progress,
	})
	if err != nil || result == nil || result.IsError() {
		return nil
	}
	m.recordDelegation(primaryWorker, task, result, turnID, 0)
	return result
}

// delegationResult pairs an action with its outcome for ordered
// aggregation after a fan-out.
type delegationResult struct {
	worker string
	task   string
	result *types.FinalResponse
}

// executeParallel fans actions out to their workers concurrently,
// waiting for every branch. Actions naming unknown workers fail their
// own branch without poisoning the rest.
func (m *Manager) executeParallel(ctx context.Context, rctx *RequestContext, in RunInput, actions []types.Action, turnID string) *types.FinalResponse {
	for _, action := range actions {
		m.publish(events.DelegationPlanned, map[string]interface{}{
			"worker": action.ToolName,
			"args":   action.ToolArgs,
		})
	}

	results := make([]delegationResult, len(actions))
	var wg sync.WaitGroup
	for idx, action := range actions {
		wg.Add(1)
		go func(idx int, action types.Action) {
			defer wg.Done()
			task := in.Task
			if goal, ok := action.ToolArgs["task"].(string); ok && goal != "" {
				task = goal
			}
			entry := delegationResult{worker: action.ToolName, task: task}

			worker, ok := m.workers[action.ToolName]
			if !ok {
				entry.result = types.NewErrorResponse(
					fmt.Sprintf("unknown worker: %s", action.ToolName),
					"Delegation failed.")
			} else {
				childRctx := rctx.Snapshot()
				result, err := worker.Run(WithRequestContext(ctx, childRctx), childRctx, RunInput{
					Task:             task,
					ExecutionContext: m.workOrder(in, task, nil, nil),
					Progress:         in.Progress,
				})
				if err != nil {
					result = types.NewErrorResponse(
						fmt.Sprintf("delegation to %s failed: %v", action.ToolName, err),
						"Delegation failed.")
				}
				entry.result = result
			}
			results[idx] = entry
		}(idx, action)
	}
	wg.Wait()

	// Record every branch before bubbling an approval so sibling
	// observations survive the suspension.
	var pendingApproval *types.FinalResponse
	overall := types.StatusSuccess
	var sections []string
	branches := make([]map[string]interface{}, 0, len(results))
	for i, entry := range results {
		m.recordDelegation(entry.worker, entry.task, entry.result, turnID, i)
		m.publish(events.DelegationExecuted, map[string]interface{}{
			"worker": entry.worker,
			"status": statusOf(entry.result),
		})
		status := statusOf(entry.result)
		if status == types.StatusError {
			overall = types.StatusError
		}
		if entry.result.Operation == types.OpAwaitApproval && pendingApproval == nil {
			pendingApproval = entry.result
		}
		sections = append(sections, fmt.Sprintf("## %s\n%s", entry.worker, formatResult(entry.result)))
		branches = append(branches, map[string]interface{}{
			"worker": entry.worker,
			"status": status,
			"result": entry.result.Payload,
		})
	}
	if pendingApproval != nil {
		return pendingApproval
	}

	aggregate := &types.FinalResponse{
		Operation: types.OpDisplayMessage,
		Payload: map[string]interface{}{
			"message":        strings.Join(sections, "\n\n"),
			"overall_status": overall,
			"branches":       branches,
		},
		HumanReadableSummary: fmt.Sprintf("%d parallel delegations finished with status %s.",
			len(results), overall),
	}
	if overall == types.StatusError {
		aggregate.Payload["error"] = true
		return aggregate
	}
	return m.finalize(ctx, rctx, in, aggregate, turnID)
}

// scriptSegment is a run of consecutive script steps addressed to the
// same worker in the same execution mode.
type scriptSegment struct {
	worker string
	mode   types.ExecutionMode
	steps  []types.ScriptStep
}

// executeScript validates the script and delegates it segment by
// segment: direct segments run verbatim, guided segments become
// suggested plans the worker's planner may refine. The first failed
// segment aborts the rest.
func (m *Manager) executeScript(ctx context.Context, rctx *RequestContext, in RunInput, thought string, steps []types.ScriptStep, turnID string) *types.FinalResponse {
	for _, step := range steps {
		if _, ok := m.workers[step.Worker]; !ok {
			return m.errorResponse(types.ErrValidation,
				fmt.Sprintf("script step %q names unknown worker %s", step.Name, step.Worker))
		}
	}
	m.publish(events.ManagerScriptPlanned, map[string]interface{}{
		"thought": thought,
		"steps":   len(steps),
	})

	var previous *types.FinalResponse
	for _, segment := range segmentScript(steps) {
		if err := ctx.Err(); err != nil {
			return m.errorResponse(types.ErrExecution, "run cancelled: "+err.Error())
		}
		worker := m.workers[segment.worker]

		task := in.Task
		if previous != nil {
			task = in.Task + phaseOutputSeparator + formatResult(previous)
		}
		childIn := RunInput{
			Task:     task,
			Progress: in.Progress,
		}
		if segment.mode == types.ModeGuided {
			childIn.SuggestedPlan = segmentAsPlan(segment)
		} else {
			childIn.Script = segment.steps
			childIn.ScriptMetadata = map[string]interface{}{"thought": thought}
		}
		childIn.ExecutionContext = m.workOrder(in, task, childIn.Script, childIn.SuggestedPlan)

		result, err := worker.Run(ctx, rctx.Snapshot(), childIn)
		if err != nil {
			result = m.errorResponse(types.ErrExecution,
				fmt.Sprintf("script segment for %s failed: %v", segment.worker, err))
		}
		m.recordDelegation(segment.worker, segmentName(segment), result, turnID, 0)

		if result.Operation == types.OpAwaitApproval {
			return result
		}
		if result.IsError() || scriptFailed(result) {
			message := fmt.Sprintf("Script aborted: segment for %s failed.", segment.worker)
			return &types.FinalResponse{
				Operation: types.OpDisplayMessage,
				Payload: map[string]interface{}{
					"message":        message,
					"error":          true,
					"overall_status": types.ScriptStatusFailed,
					"failed_segment": segment.worker,
					"result":         result.Payload,
				},
				HumanReadableSummary: message,
			}
		}
		previous = result
	}
	return m.finalize(ctx, rctx, in, previous, turnID)
}

// segmentScript groups consecutive steps by (worker, mode) so one
// delegation carries as much of the script as possible.
func segmentScript(steps []types.ScriptStep) []scriptSegment {
	var segments []scriptSegment
	for _, step := range steps {
		n := len(segments)
		if n > 0 && segments[n-1].worker == step.Worker && segments[n-1].mode == step.ExecutionMode {
			segments[n-1].steps = append(segments[n-1].steps, step)
			continue
		}
		segments = append(segments, scriptSegment{
			worker: step.Worker,
			mode:   step.ExecutionMode,
			steps:  []types.ScriptStep{step},
		})
	}
	return segments
}

// segmentAsPlan renders a guided segment as a suggested plan the
// worker's planner can refine.
func segmentAsPlan(segment scriptSegment) *types.StrategicPlan {
	phases := make([]types.Phase, 0, len(segment.steps))
	for _, step := range segment.steps {
		goal := step.Notes
		if goal == "" {
			goal = fmt.Sprintf("use %s with args %s", step.ToolName, jsonString(step.Args))
		}
		phases = append(phases, types.Phase{
			Name:   step.Name,
			Worker: segment.worker,
			Goals:  goal,
		})
	}
	return &types.StrategicPlan{PrimaryWorker: segment.worker, Phases: phases}
}

func segmentName(segment scriptSegment) string {
	names := make([]string, 0, len(segment.steps))
	for _, step := range segment.steps {
		names = append(names, step.Name)
	}
	return strings.Join(names, ", ")
}

// scriptFailed inspects a worker's script aggregate for the FAILED
// status.
func scriptFailed(result *types.FinalResponse) bool {
	if result == nil {
		return true
	}
	status, _ := result.Payload["overall_status"].(string)
	return status == types.ScriptStatusFailed
}

// finalize applies synthesis precedence: synthesizer agent first, then
// the gateway, then the result as-is.
func (m *Manager) finalize(ctx context.Context, rctx *RequestContext, in RunInput, result *types.FinalResponse, turnID string) *types.FinalResponse {
	if result == nil {
		return m.errorResponse(types.ErrExecution, "delegation produced no result")
	}
	if result.Operation == types.OpAwaitApproval || result.IsError() {
		return result
	}

	if m.synthesizer != nil {
		brief := NewContextBuilder().SynthesizerBrief(in.Task, formatResult(result))
		synthesized, err := m.synthesizer.Run(ctx, rctx.Snapshot(), RunInput{Task: brief})
		if err == nil && synthesized != nil && !synthesized.IsError() {
			m.memory.AddGlobal(types.Message{
				Type:      types.TypeSynthesis,
				Content:   formatResult(synthesized),
				Timestamp: time.Now(),
				TurnID:    turnID,
			})
			return synthesized
		}
		m.logger.Warn("synthesizer failed, returning unsynthesized result", zap.Error(err))
		return result
	}

	if m.gateway != nil {
		summary, err := m.gateway.Synthesize(ctx, in.Task, formatResult(result))
		if err != nil {
			m.logger.Warn("synthesis gateway failed", zap.Error(err))
			return result
		}
		if summary != "" {
			result.HumanReadableSummary = summary
		}
		return result
	}
	return result
}

// persistPlan writes the plan to the job store under this manager's
// key so a resumed job can re-enter the right phase.
func (m *Manager) persistPlan(ctx context.Context, rctx *RequestContext, plan *types.StrategicPlan) {
	if m.jobStore == nil || rctx.JobID == "" {
		return
	}
	var err error
	if m.role == RoleOrchestrator {
		err = m.jobStore.UpdateOrchestratorPlan(ctx, rctx.JobID, plan)
	} else {
		err = m.jobStore.UpdateManagerPlan(ctx, rctx.JobID, m.name, plan)
	}
	if err != nil {
		m.logger.Warn("persisting plan failed",
			zap.String("job_id", rctx.JobID),
			zap.Error(err))
	}
}

// recordDelegation writes the delegation outcome into the manager's
// memory. The synthesis entry carries the phase index so downstream
// filters can select the previous phase's summary.
func (m *Manager) recordDelegation(worker, task string, result *types.FinalResponse, turnID string, phaseIndex int) {
	m.memory.Add(types.Message{
		Type:       types.TypeDelegation,
		Content:    map[string]interface{}{"worker": worker, "task": task},
		Timestamp:  time.Now(),
		TurnID:     turnID,
		FromWorker: worker,
	})
	m.memory.Add(types.Message{
		Type:       types.TypeSynthesis,
		Content:    formatResult(result),
		Timestamp:  time.Now(),
		TurnID:     turnID,
		PhaseID:    phaseIndex,
		FromWorker: worker,
		Summary:    result.HumanReadableSummary,
	})
}

func (m *Manager) phaseFailure(phase types.Phase, result *types.FinalResponse) *types.FinalResponse {
	message := fmt.Sprintf("Phase %q failed: %s", phase.Name, formatResult(result))
	m.publish(events.Error, map[string]interface{}{
		"phase": phase.Name,
		"error": message,
	})
	return &types.FinalResponse{
		Operation: types.OpDisplayMessage,
		Payload: map[string]interface{}{
			"message":      message,
			"error":        true,
			"failed_phase": phase.Name,
			"result":       result.Payload,
		},
		HumanReadableSummary: message,
	}
}

func (m *Manager) errorResponse(errorType, message string) *types.FinalResponse {
	m.publish(events.Error, map[string]interface{}{"error_type": errorType, "error": message})
	response := types.NewErrorResponse(message, message)
	response.Payload["error_type"] = errorType
	return response
}

// planAsMap round-trips a pre-provided plan through JSON so the memory
// entry matches the shape a planner-produced plan is recorded in.
func planAsMap(plan *types.StrategicPlan) map[string]interface{} {
	raw, err := json.Marshal(plan)
	if err != nil {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

// planFromArgs recovers a strategic plan embedded in action args.
func planFromArgs(args map[string]interface{}) *types.StrategicPlan {
	raw, ok := args["strategic_plan"]
	if !ok {
		return nil
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var plan types.StrategicPlan
	if err := json.Unmarshal(encoded, &plan); err != nil {
		return nil
	}
	if len(plan.Phases) == 0 && plan.PrimaryWorker == "" {
		return nil
	}
	return &plan
}

// scriptFromArgs recovers script steps embedded in action args.
func scriptFromArgs(args map[string]interface{}) []types.ScriptStep {
	raw, ok := args["script"]
	if !ok {
		return nil
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var steps []types.ScriptStep
	if err := json.Unmarshal(encoded, &steps); err != nil {
		return nil
	}
	return steps
}

var _ Runner = (*Manager)(nil)
