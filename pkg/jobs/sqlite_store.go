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
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/teradata-labs/heddle/pkg/types"
)

// SQLiteStore persists jobs in a SQLite database so approvals and
// phase cursors survive process restarts.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath and applies
// the schema. WAL mode is enabled for concurrent readers.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		orchestrator_plan_json TEXT,
		pending_action_json TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS manager_plans (
		job_id TEXT NOT NULL,
		manager TEXT NOT NULL,
		plan_json TEXT,
		phase_index INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (job_id, manager),
		FOREIGN KEY (job_id) REFERENCES jobs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS approvals (
		job_id TEXT NOT NULL,
		tool TEXT NOT NULL,
		approved INTEGER NOT NULL,
		PRIMARY KEY (job_id, tool),
		FOREIGN KEY (job_id) REFERENCES jobs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS executed_actions (
		job_id TEXT NOT NULL,
		signature TEXT NOT NULL,
		executed_at INTEGER NOT NULL,
		PRIMARY KEY (job_id, signature),
		FOREIGN KEY (job_id) REFERENCES jobs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
	CREATE INDEX IF NOT EXISTS idx_executed_job ON executed_actions(job_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateJob implements Store.
func (s *SQLiteStore) CreateJob(ctx context.Context, id string) error {
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, status, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		id, StatusRunning, now, now)
	return err
}

// GetJob implements Store.
func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT status, orchestrator_plan_json, pending_action_json, created_at, updated_at
		 FROM jobs WHERE id = ?`, id)

	var status string
	var planJSON, pendingJSON sql.NullString
	var createdAt, updatedAt int64
	if err := row.Scan(&status, &planJSON, &pendingJSON, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}

	job := &Job{
		ID:           id,
		Status:       status,
		ManagerPlans: make(map[string]*types.StrategicPlan),
		PhaseIndexes: make(map[string]int),
		Approvals:    make(map[string]bool),
		CreatedAt:    time.Unix(createdAt, 0),
		UpdatedAt:    time.Unix(updatedAt, 0),
	}
	if planJSON.Valid && planJSON.String != "" {
		var plan types.StrategicPlan
		if err := json.Unmarshal([]byte(planJSON.String), &plan); err == nil {
			job.OrchestratorPlan = &plan
		}
	}
	if pendingJSON.Valid && pendingJSON.String != "" {
		var pending PendingAction
		if err := json.Unmarshal([]byte(pendingJSON.String), &pending); err == nil {
			job.PendingAction = &pending
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT manager, plan_json, phase_index FROM manager_plans WHERE job_id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var manager string
		var mPlanJSON sql.NullString
		var phaseIndex int
		if err := rows.Scan(&manager, &mPlanJSON, &phaseIndex); err != nil {
			return nil, err
		}
		job.PhaseIndexes[manager] = phaseIndex
		if mPlanJSON.Valid && mPlanJSON.String != "" {
			var plan types.StrategicPlan
			if err := json.Unmarshal([]byte(mPlanJSON.String), &plan); err == nil {
				job.ManagerPlans[manager] = &plan
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	approvalRows, err := s.db.QueryContext(ctx,
		`SELECT tool, approved FROM approvals WHERE job_id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = approvalRows.Close() }()
	for approvalRows.Next() {
		var tool string
		var approved int
		if err := approvalRows.Scan(&tool, &approved); err != nil {
			return nil, err
		}
		job.Approvals[tool] = approved != 0
	}
	return job, approvalRows.Err()
}

// UpdateStatus implements Store.
func (s *SQLiteStore) UpdateStatus(ctx context.Context, id, status string) error {
	return s.touch(ctx, id, `UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().Unix(), id)
}

// UpdateOrchestratorPlan implements Store.
func (s *SQLiteStore) UpdateOrchestratorPlan(ctx context.Context, id string, plan *types.StrategicPlan) error {
	raw, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("marshaling plan: %w", err)
	}
	return s.touch(ctx, id, `UPDATE jobs SET orchestrator_plan_json = ?, updated_at = ? WHERE id = ?`,
		string(raw), time.Now().Unix(), id)
}

// UpdateManagerPlan implements Store.
func (s *SQLiteStore) UpdateManagerPlan(ctx context.Context, id, manager string, plan *types.StrategicPlan) error {
	raw, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("marshaling plan: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO manager_plans (job_id, manager, plan_json) VALUES (?, ?, ?)
		 ON CONFLICT(job_id, manager) DO UPDATE SET plan_json = excluded.plan_json`,
		id, manager, string(raw))
	return err
}

// SavePendingAction implements Store.
func (s *SQLiteStore) SavePendingAction(ctx context.Context, id string, pending PendingAction) error {
	raw, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("marshaling pending action: %w", err)
	}
	return s.touch(ctx, id,
		`UPDATE jobs SET pending_action_json = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(raw), StatusAwaitingApproval, time.Now().Unix(), id)
}

// ClearPendingAction implements Store.
func (s *SQLiteStore) ClearPendingAction(ctx context.Context, id string) error {
	return s.touch(ctx, id,
		`UPDATE jobs SET pending_action_json = NULL, status = ?, updated_at = ? WHERE id = ?`,
		StatusRunning, time.Now().Unix(), id)
}

// SetApproval implements Store.
func (s *SQLiteStore) SetApproval(ctx context.Context, id, tool string, approved bool) error {
	value := 0
	if approved {
		value = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO approvals (job_id, tool, approved) VALUES (?, ?, ?)
		 ON CONFLICT(job_id, tool) DO UPDATE SET approved = excluded.approved`,
		id, tool, value)
	return err
}

// AddExecutedAction implements Store.
func (s *SQLiteStore) AddExecutedAction(ctx context.Context, id, signature string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO executed_actions (job_id, signature, executed_at) VALUES (?, ?, ?)
		 ON CONFLICT(job_id, signature) DO NOTHING`,
		id, signature, time.Now().Unix())
	return err
}

// HasExecutedAction implements Store.
func (s *SQLiteStore) HasExecutedAction(ctx context.Context, id, signature string) (bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM executed_actions WHERE job_id = ? AND signature = ?`, id, signature)
	var one int
	if err := row.Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// BumpPhase implements Store.
func (s *SQLiteStore) BumpPhase(ctx context.Context, id, manager string) (int, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO manager_plans (job_id, manager, phase_index) VALUES (?, ?, 1)
		 ON CONFLICT(job_id, manager) DO UPDATE SET phase_index = phase_index + 1`,
		id, manager)
	if err != nil {
		return 0, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT phase_index FROM manager_plans WHERE job_id = ? AND manager = ?`, id, manager)
	var index int
	if err := row.Scan(&index); err != nil {
		return 0, err
	}
	return index, nil
}

func (s *SQLiteStore) touch(ctx context.Context, id, query string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Store = (*SQLiteStore)(nil)
