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
	"encoding/json"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/teradata-labs/heddle/pkg/types"
)

// DefaultManifestTokenBudget caps the data-model manifest section of a
// manager blueprint.
const DefaultManifestTokenBudget = 4000

// DefaultPlanCharLimit caps the JSON rendering of a suggested plan in a
// worker work-order.
const DefaultPlanCharLimit = 3000

// CatalogEntry describes one delegable manager or worker for context
// assembly.
type CatalogEntry struct {
	Name        string
	Description string
	Tools       []string
}

// ContextBuilder assembles the fixed role-specific prompt contexts:
// orchestrator briefing, manager blueprint, worker work-order, and
// synthesizer press-release.
type ContextBuilder struct {
	encoder             *tiktoken.Tiktoken
	manifestTokenBudget int
	conversationLimit   int
	logger              *zap.Logger
}

// BuilderOption configures a ContextBuilder.
type BuilderOption func(*ContextBuilder)

// WithManifestTokenBudget overrides the manifest section budget.
func WithManifestTokenBudget(tokens int) BuilderOption {
	return func(b *ContextBuilder) { b.manifestTokenBudget = tokens }
}

// WithConversationLimit overrides how many turns the orchestrator
// briefing summarizes.
func WithConversationLimit(n int) BuilderOption {
	return func(b *ContextBuilder) { b.conversationLimit = n }
}

// WithBuilderLogger sets the builder logger.
func WithBuilderLogger(logger *zap.Logger) BuilderOption {
	return func(b *ContextBuilder) { b.logger = logger }
}

// NewContextBuilder creates a builder. Token counting degrades to a
// character heuristic when the encoding is unavailable (for example in
// offline environments where the BPE ranks cannot be fetched).
func NewContextBuilder(opts ...BuilderOption) *ContextBuilder {
	b := &ContextBuilder{
		manifestTokenBudget: DefaultManifestTokenBudget,
		conversationLimit:   8,
		logger:              zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		b.logger.Warn("token encoding unavailable, using character heuristic", zap.Error(err))
	} else {
		b.encoder = encoder
	}
	return b
}

// OrchestratorBriefing assembles the top-level context: the manager
// catalog, a summary of recent conversation, and the current request.
// The orchestrator never sees detailed schema.
func (b *ContextBuilder) OrchestratorBriefing(managers []CatalogEntry, conversation []types.Message, userRequest string) string {
	var sb strings.Builder
	sb.WriteString("== Available Managers ==\n")
	writeCatalog(&sb, managers)

	sb.WriteString("\n== Conversation Summary ==\n")
	turns := conversation
	if len(turns) > b.conversationLimit {
		turns = turns[len(turns)-b.conversationLimit:]
	}
	for _, turn := range turns {
		role := "user"
		if turn.Type == types.TypeAssistantMessage {
			role = "assistant"
		}
		sb.WriteString(role)
		sb.WriteString(": ")
		sb.WriteString(contentString(turn.Content))
		sb.WriteString("\n")
	}

	sb.WriteString("\n== Current User Request ==\n")
	sb.WriteString(userRequest)
	return sb.String()
}

// ManagerBlueprint assembles a manager's working context: the director
// goal, the data-model manifest (token-budgeted), the worker catalog,
// and optionally the previous phase outcome.
func (b *ContextBuilder) ManagerBlueprint(directorGoal, manifest string, workers []CatalogEntry, previousPhase string) string {
	var sb strings.Builder
	sb.WriteString("== Director Goal ==\n")
	sb.WriteString(directorGoal)

	if manifest != "" {
		sb.WriteString("\n\n== Data Model Manifest ==\n")
		sb.WriteString(b.truncateToBudget(manifest, b.manifestTokenBudget))
	}

	sb.WriteString("\n\n== Available Workers & Tools ==\n")
	writeCatalog(&sb, workers)

	if previousPhase != "" {
		sb.WriteString("\n== Previous Phase Outcome ==\n")
		sb.WriteString(previousPhase)
	}
	return sb.String()
}

// WorkerOrder assembles a worker's work-order: the manager goal plus
// either the script to execute or the manager's suggested plan.
func (b *ContextBuilder) WorkerOrder(managerGoal string, script []types.ScriptStep, suggestedPlan *types.StrategicPlan) string {
	var sb strings.Builder
	sb.WriteString("== Manager Goal ==\n")
	sb.WriteString(managerGoal)

	if len(script) > 0 {
		sb.WriteString("\n\n== Script to Execute ==\n")
		sb.WriteString(truncateChars(jsonString(script), DefaultPlanCharLimit))
	} else if suggestedPlan != nil {
		sb.WriteString("\n\n== Manager Suggested Plan ==\n")
		sb.WriteString(truncateChars(jsonString(suggestedPlan), DefaultPlanCharLimit))
	}
	return sb.String()
}

// SynthesizerBrief assembles the press-release context for result
// synthesis.
func (b *ContextBuilder) SynthesizerBrief(userRequest, technicalOutcome string) string {
	var sb strings.Builder
	sb.WriteString("== User Request ==\n")
	sb.WriteString(userRequest)
	sb.WriteString("\n\n== Technical Outcome ==\n")
	sb.WriteString(technicalOutcome)
	return sb.String()
}

// truncateToBudget trims text to at most budget tokens, appending a
// marker when anything was cut.
func (b *ContextBuilder) truncateToBudget(text string, budget int) string {
	if budget <= 0 {
		return text
	}
	if b.encoder == nil {
		// ~4 characters per token is close enough for a safety cap
		return truncateChars(text, budget*4)
	}
	tokens := b.encoder.Encode(text, nil, nil)
	if len(tokens) <= budget {
		return text
	}
	return b.encoder.Decode(tokens[:budget]) + "\n... (manifest truncated)"
}

// TokenCount reports the token length of text under the builder's
// encoding, falling back to the character heuristic.
func (b *ContextBuilder) TokenCount(text string) int {
	if b.encoder == nil {
		return len(text) / 4
	}
	return len(b.encoder.Encode(text, nil, nil))
}

func writeCatalog(sb *strings.Builder, entries []CatalogEntry) {
	for _, entry := range entries {
		sb.WriteString("- ")
		sb.WriteString(entry.Name)
		if entry.Description != "" {
			sb.WriteString(": ")
			sb.WriteString(entry.Description)
		}
		if len(entry.Tools) > 0 {
			sb.WriteString(" (tools: ")
			sb.WriteString(strings.Join(entry.Tools, ", "))
			sb.WriteString(")")
		}
		sb.WriteString("\n")
	}
}

func truncateChars(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}
	return text[:limit] + "... (truncated)"
}

func jsonString(v interface{}) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}

func contentString(content interface{}) string {
	if s, ok := content.(string); ok {
		return s
	}
	return jsonString(content)
}
