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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/heddle/pkg/types"
)

// runStoreTests exercises the full Store contract against any
// implementation.
func runStoreTests(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("create and fetch", func(t *testing.T) {
		require.NoError(t, store.CreateJob(ctx, "job-1"))

		job, err := store.GetJob(ctx, "job-1")
		require.NoError(t, err)
		assert.Equal(t, "job-1", job.ID)
		assert.Equal(t, StatusRunning, job.Status)
		assert.False(t, job.CreatedAt.IsZero())
	})

	t.Run("create is idempotent", func(t *testing.T) {
		require.NoError(t, store.CreateJob(ctx, "job-1"))
		require.NoError(t, store.UpdateStatus(ctx, "job-1", StatusPaused))
		require.NoError(t, store.CreateJob(ctx, "job-1"))

		job, err := store.GetJob(ctx, "job-1")
		require.NoError(t, err)
		assert.Equal(t, StatusPaused, job.Status, "re-creating must not reset the record")
		require.NoError(t, store.UpdateStatus(ctx, "job-1", StatusRunning))
	})

	t.Run("missing job", func(t *testing.T) {
		_, err := store.GetJob(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, store.UpdateStatus(ctx, "nope", StatusPaused), ErrNotFound)
	})

	t.Run("plans", func(t *testing.T) {
		plan := &types.StrategicPlan{
			PrimaryWorker: "sql-worker",
			Phases: []types.Phase{
				{Name: "inspect", Worker: "sql-worker", Goals: "list tables"},
			},
		}
		require.NoError(t, store.UpdateOrchestratorPlan(ctx, "job-1", plan))
		require.NoError(t, store.UpdateManagerPlan(ctx, "job-1", "sql-manager", plan))

		job, err := store.GetJob(ctx, "job-1")
		require.NoError(t, err)
		require.NotNil(t, job.OrchestratorPlan)
		assert.Equal(t, "sql-worker", job.OrchestratorPlan.PrimaryWorker)
		require.Contains(t, job.ManagerPlans, "sql-manager")
		require.Len(t, job.ManagerPlans["sql-manager"].Phases, 1)
		assert.Equal(t, "inspect", job.ManagerPlans["sql-manager"].Phases[0].Name)
	})

	t.Run("pending action lifecycle", func(t *testing.T) {
		pending := PendingAction{
			Worker: "sql-worker",
			Tool:   "drop_table",
			Args:   map[string]interface{}{"table": "users"},
		}
		require.NoError(t, store.SavePendingAction(ctx, "job-1", pending))

		job, err := store.GetJob(ctx, "job-1")
		require.NoError(t, err)
		assert.Equal(t, StatusAwaitingApproval, job.Status)
		require.NotNil(t, job.PendingAction)
		assert.Equal(t, "drop_table", job.PendingAction.Tool)
		assert.Equal(t, "users", job.PendingAction.Args["table"])

		require.NoError(t, store.ClearPendingAction(ctx, "job-1"))
		job, err = store.GetJob(ctx, "job-1")
		require.NoError(t, err)
		assert.Equal(t, StatusRunning, job.Status)
		assert.Nil(t, job.PendingAction)
	})

	t.Run("approvals", func(t *testing.T) {
		require.NoError(t, store.SetApproval(ctx, "job-1", "drop_table", true))
		require.NoError(t, store.SetApproval(ctx, "job-1", "add_column", false))

		job, err := store.GetJob(ctx, "job-1")
		require.NoError(t, err)
		assert.True(t, job.Approvals["drop_table"])
		assert.False(t, job.Approvals["add_column"])
	})

	t.Run("executed signatures", func(t *testing.T) {
		sig := "add_column:{\"table\":\"users\"}"
		found, err := store.HasExecutedAction(ctx, "job-1", sig)
		require.NoError(t, err)
		assert.False(t, found)

		require.NoError(t, store.AddExecutedAction(ctx, "job-1", sig))
		require.NoError(t, store.AddExecutedAction(ctx, "job-1", sig), "recording twice is fine")

		found, err = store.HasExecutedAction(ctx, "job-1", sig)
		require.NoError(t, err)
		assert.True(t, found)

		found, err = store.HasExecutedAction(ctx, "other-job", sig)
		require.NoError(t, err)
		assert.False(t, found, "signatures are scoped to the job")
	})

	t.Run("phase cursor", func(t *testing.T) {
		n, err := store.BumpPhase(ctx, "job-1", "sql-manager")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = store.BumpPhase(ctx, "job-1", "sql-manager")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = store.BumpPhase(ctx, "job-1", "model-manager")
		require.NoError(t, err)
		assert.Equal(t, 1, n, "cursors are per manager")

		_, err = store.BumpPhase(ctx, "nope", "sql-manager")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, NewMemoryStore())
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateJob(ctx, "job-1"))
	require.NoError(t, store.SetApproval(ctx, "job-1", "drop_table", true))

	job, err := store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	job.Approvals["drop_table"] = false
	job.Status = "mangled"

	fresh, err := store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.True(t, fresh.Approvals["drop_table"], "mutating a fetched job must not affect the store")
	assert.Equal(t, StatusRunning, fresh.Status)
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	runStoreTests(t, store)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "jobs.db")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.CreateJob(ctx, "job-1"))
	require.NoError(t, store.SavePendingAction(ctx, "job-1", PendingAction{Tool: "drop_table"}))
	require.NoError(t, store.AddExecutedAction(ctx, "job-1", "sig-1"))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	job, err := reopened.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingApproval, job.Status)
	require.NotNil(t, job.PendingAction)
	assert.Equal(t, "drop_table", job.PendingAction.Tool)

	found, err := reopened.HasExecutedAction(ctx, "job-1", "sig-1")
	require.NoError(t, err)
	assert.True(t, found)
}
