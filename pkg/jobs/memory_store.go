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

package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/teradata-labs/heddle/pkg/types"
)

// MemoryStore is an in-process Store for tests and single-shot runs.
type MemoryStore struct {
	mu       sync.RWMutex
	jobs     map[string]*Job
	executed map[string]map[string]struct{}
}

// NewMemoryStore creates an empty in-memory job store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:     make(map[string]*Job),
		executed: make(map[string]map[string]struct{}),
	}
}

// CreateJob implements Store.
func (s *MemoryStore) CreateJob(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; ok {
		return nil
	}
	now := time.Now()
	s.jobs[id] = &Job{
		ID:           id,
		Status:       StatusRunning,
		ManagerPlans: make(map[string]*types.StrategicPlan),
		PhaseIndexes: make(map[string]int),
		Approvals:    make(map[string]bool),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.executed[id] = make(map[string]struct{})
	return nil
}

// GetJob implements Store.
func (s *MemoryStore) GetJob(_ context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return job.clone(), nil
}

// UpdateStatus implements Store.
func (s *MemoryStore) UpdateStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	job.Status = status
	job.UpdatedAt = time.Now()
	return nil
}

// UpdateOrchestratorPlan implements Store.
func (s *MemoryStore) UpdateOrchestratorPlan(_ context.Context, id string, plan *types.StrategicPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	job.OrchestratorPlan = plan
	job.UpdatedAt = time.Now()
	return nil
}

// UpdateManagerPlan implements Store.
func (s *MemoryStore) UpdateManagerPlan(_ context.Context, id, manager string, plan *types.StrategicPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if job.ManagerPlans == nil {
		job.ManagerPlans = make(map[string]*types.StrategicPlan)
	}
	job.ManagerPlans[manager] = plan
	job.UpdatedAt = time.Now()
	return nil
}

// SavePendingAction implements Store.
func (s *MemoryStore) SavePendingAction(_ context.Context, id string, pending PendingAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	job.PendingAction = &pending
	job.Status = StatusAwaitingApproval
	job.UpdatedAt = time.Now()
	return nil
}

// ClearPendingAction implements Store.
func (s *MemoryStore) ClearPendingAction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	job.PendingAction = nil
	job.Status = StatusRunning
	job.UpdatedAt = time.Now()
	return nil
}

// SetApproval implements Store.
func (s *MemoryStore) SetApproval(_ context.Context, id, tool string, approved bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if job.Approvals == nil {
		job.Approvals = make(map[string]bool)
	}
	job.Approvals[tool] = approved
	job.UpdatedAt = time.Now()
	return nil
}

// AddExecutedAction implements Store.
func (s *MemoryStore) AddExecutedAction(_ context.Context, id, signature string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.executed[id]
	if !ok {
		set = make(map[string]struct{})
		s.executed[id] = set
	}
	set[signature] = struct{}{}
	return nil
}

// HasExecutedAction implements Store.
func (s *MemoryStore) HasExecutedAction(_ context.Context, id, signature string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.executed[id]
	if !ok {
		return false, nil
	}
	_, found := set[signature]
	return found, nil
}

// BumpPhase implements Store.
func (s *MemoryStore) BumpPhase(_ context.Context, id, manager string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return 0, ErrNotFound
	}
	if job.PhaseIndexes == nil {
		job.PhaseIndexes = make(map[string]int)
	}
	job.PhaseIndexes[manager]++
	job.UpdatedAt = time.Now()
	return job.PhaseIndexes[manager], nil
}

var _ Store = (*MemoryStore)(nil)
