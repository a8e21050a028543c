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

// Package jobs persists per-job engine state: plans, phase cursors,
// pending approvals, and executed-action signatures. The engine talks
// to the Store interface only; implementations must be safe for
// concurrent calls from multiple workers in the same namespace.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/teradata-labs/heddle/pkg/types"
)

// Job statuses.
const (
	StatusRunning          = "running"
	StatusAwaitingApproval = "awaiting_approval"
	StatusPaused           = "paused"
	StatusCompleted        = "completed"
)

// ErrNotFound is returned when a job id has no record.
var ErrNotFound = errors.New("job not found")

// PendingAction is the action a run suspended on while waiting for
// human approval.
type PendingAction struct {
	Worker      string                 `json:"worker"`
	Tool        string                 `json:"tool"`
	Args        map[string]interface{} `json:"args,omitempty"`
	Manager     string                 `json:"manager,omitempty"`
	ResumeToken string                 `json:"resume_token,omitempty"`
}

// Job is the persistent record for one task execution.
type Job struct {
	ID     string `json:"id"`
	Status string `json:"status"`

	OrchestratorPlan *types.StrategicPlan            `json:"orchestrator_plan,omitempty"`
	ManagerPlans     map[string]*types.StrategicPlan `json:"manager_plans,omitempty"`
	PhaseIndexes     map[string]int                  `json:"phase_indexes,omitempty"`

	PendingAction *PendingAction  `json:"pending_action,omitempty"`
	Approvals     map[string]bool `json:"approvals,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists jobs. Executed-action signatures are write-once: once
// recorded, a signature bypasses repeat approval prompts for the same
// job.
type Store interface {
	// CreateJob creates a job record with status running. Creating an
	// existing job is a no-op.
	CreateJob(ctx context.Context, id string) error

	// GetJob fetches a job record, or ErrNotFound.
	GetJob(ctx context.Context, id string) (*Job, error)

	// UpdateStatus transitions the job status.
	UpdateStatus(ctx context.Context, id, status string) error

	// UpdateOrchestratorPlan stores the top-level strategic plan.
	UpdateOrchestratorPlan(ctx context.Context, id string, plan *types.StrategicPlan) error

	// UpdateManagerPlan stores a manager's strategic plan.
	UpdateManagerPlan(ctx context.Context, id, manager string, plan *types.StrategicPlan) error

	// SavePendingAction records the action a run suspended on and marks
	// the job awaiting approval.
	SavePendingAction(ctx context.Context, id string, pending PendingAction) error

	// ClearPendingAction removes the pending action and resumes the job.
	ClearPendingAction(ctx context.Context, id string) error

	// SetApproval records a human decision for a tool.
	SetApproval(ctx context.Context, id, tool string, approved bool) error

	// AddExecutedAction records a canonical action signature.
	AddExecutedAction(ctx context.Context, id, signature string) error

	// HasExecutedAction reports whether a signature was recorded.
	HasExecutedAction(ctx context.Context, id, signature string) (bool, error)

	// BumpPhase advances a manager's phase cursor and returns the new
	// index.
	BumpPhase(ctx context.Context, id, manager string) (int, error)
}

// clone deep-copies a job so store internals never leak.
func (j *Job) clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	if j.ManagerPlans != nil {
		out.ManagerPlans = make(map[string]*types.StrategicPlan, len(j.ManagerPlans))
		for k, v := range j.ManagerPlans {
			out.ManagerPlans[k] = v
		}
	}
	if j.PhaseIndexes != nil {
		out.PhaseIndexes = make(map[string]int, len(j.PhaseIndexes))
		for k, v := range j.PhaseIndexes {
			out.PhaseIndexes[k] = v
		}
	}
	if j.Approvals != nil {
		out.Approvals = make(map[string]bool, len(j.Approvals))
		for k, v := range j.Approvals {
			out.Approvals[k] = v
		}
	}
	if j.PendingAction != nil {
		pa := *j.PendingAction
		out.PendingAction = &pa
	}
	return &out
}
