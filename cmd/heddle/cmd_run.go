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
package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teradata-labs/heddle/pkg/agent"
	"github.com/teradata-labs/heddle/pkg/config"
	"github.com/teradata-labs/heddle/pkg/events"
	"github.com/teradata-labs/heddle/pkg/history"
	"github.com/teradata-labs/heddle/pkg/jobs"
	"github.com/teradata-labs/heddle/pkg/llm"
	"github.com/teradata-labs/heddle/pkg/llm/anthropic"
	"github.com/teradata-labs/heddle/pkg/memory"
	"github.com/teradata-labs/heddle/pkg/observability"
	"github.com/teradata-labs/heddle/pkg/planner"
	"github.com/teradata-labs/heddle/pkg/policy"
	"github.com/teradata-labs/heddle/pkg/shuttle"
)

var runCmd = &cobra.Command{
	Use:   "run \"<task>\"",
	Short: "Run a task through a manager/worker tree",
	Args:  cobra.ExactArgs(1),
	RunE:  runTask,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runTask(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(settings.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	client := anthropic.NewClient(anthropic.Config{
		APIKey:      settings.LLM.APIKey,
		Model:       settings.LLM.Model,
		MaxTokens:   settings.LLM.MaxTokens,
		Temperature: settings.LLM.Temperature,
		ToolChoice:  settings.Engine.ToolChoice,
	})
	provider := llm.NewInstrumentedProvider(client, observability.NewNoOpTracer())

	jobStore, err := openJobStore(settings.Database.Path)
	if err != nil {
		return err
	}

	tree, err := buildTree(provider, jobStore, settings, logger)
	if err != nil {
		return err
	}

	jobID := uuid.NewString()
	if err := jobStore.CreateJob(cmd.Context(), jobID); err != nil {
		return fmt.Errorf("creating job: %w", err)
	}

	result, err := tree.Run(cmd.Context(), agent.NewRequestContext(jobID), agent.RunInput{
		Task: args[0],
		Progress: func(stage string, detail map[string]interface{}) {
			logger.Info("progress", zap.String("stage", stage), zap.Any("detail", detail))
		},
	})
	if err != nil {
		return err
	}
	if err := jobStore.UpdateStatus(cmd.Context(), jobID, jobs.StatusCompleted); err != nil {
		logger.Warn("updating job status failed", zap.Error(err))
	}

	rendered, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(rendered))
	return nil
}

func openJobStore(path string) (jobs.Store, error) {
	if path == "" {
		return jobs.NewMemoryStore(), nil
	}
	return jobs.NewSQLiteStore(path)
}

// buildTree assembles a single-manager tree: one general worker over
// the registered tools, delegated to by a strategic-planning manager.
// Hosts embedding the engine compose deeper trees from the same parts.
func buildTree(provider llm.Provider, jobStore jobs.Store, settings *config.Settings, logger *zap.Logger) (agent.Runner, error) {
	store := memory.NewStore()
	namespace := uuid.NewString()
	bus := events.NewBus(logger)

	registry := shuttle.NewRegistry()

	workerView, err := memory.NewSharedView(store, namespace, "general-worker")
	if err != nil {
		return nil, err
	}
	workerPlanner := planner.NewReActPlanner(provider, registry.ListTools(),
		planner.WithHistoryFilter(history.WorkerFilter{
			ExcludeTraces:  !settings.History.IncludeTraces,
			ExcludeGlobals: !settings.History.IncludeGlobals,
		}),
		planner.WithMaxHistoryEntries(settings.History.MaxEntries),
		planner.WithObservationLimit(settings.History.ObservationTruncation),
		planner.WithLogger(logger))
	worker := agent.NewWorker("general-worker", workerPlanner, registry, workerView,
		agent.WithWorkerDescription("General-purpose worker over the registered tools"),
		agent.WithBus(bus),
		agent.WithJobStore(jobStore),
		agent.WithMaxIterations(settings.Engine.MaxIterations),
		agent.WithHITL(policy.NewHITLPolicy(policy.HITLOptions{
			Enabled: settings.Engine.HITLEnabled,
			Scope:   policy.HITLScope(settings.Engine.HITLScope),
		})),
		agent.WithLoopGuard(policy.NewLoopGuard(policy.LoopGuardOptions{
			ActionWindow:        settings.Engine.ActionWindow,
			ObservationWindow:   settings.Engine.ObservationWindow,
			RepetitionThreshold: settings.Engine.RepetitionThreshold,
		})),
		agent.WithWorkerLogger(logger))

	managerView, err := memory.NewHierarchicalView(store, namespace, "orchestrator", []string{"general-worker"})
	if err != nil {
		return nil, err
	}
	catalog := []planner.WorkerCatalogEntry{{
		Name:        worker.Name(),
		Description: worker.Description(),
		Tools:       registry.List(),
	}}
	managerPlanner := planner.NewStrategicPlanner(provider, catalog, logger,
		planner.WithDirectorContextHistory(settings.History.StrategicWithDirectorContext))
	manager := agent.NewManager("orchestrator", managerPlanner, []agent.Runner{worker}, managerView,
		agent.WithRole(agent.RoleOrchestrator),
		agent.WithManagerBus(bus),
		agent.WithManagerJobStore(jobStore),
		agent.WithContextBuilder(agent.NewContextBuilder(
			agent.WithConversationLimit(settings.History.MaxEntries),
			agent.WithBuilderLogger(logger))),
		agent.WithMaxFollowUps(settings.Engine.MaxFollowUps),
		agent.WithManagerLogger(logger))
	return manager, nil
}
