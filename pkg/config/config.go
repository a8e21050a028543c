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

// Package config loads engine settings from a config file and
// HEDDLE_-prefixed environment variables.
// Priority: config file > env vars > defaults.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// DefaultConfigFileName is the name of the config file (heddle.yaml).
const DefaultConfigFileName = "heddle"

// Tool-choice policies for the orchestrator's planning call.
const (
	ToolChoiceAuto     = "auto"
	ToolChoiceRequired = "required"
)

// Settings holds all engine configuration.
type Settings struct {
	// LLM provider configuration
	LLM LLMSettings `mapstructure:"llm"`

	// Engine loop and policy configuration
	Engine EngineSettings `mapstructure:"engine"`

	// History shaping for planner prompts
	History HistorySettings `mapstructure:"history"`

	// Database configuration for the job store
	Database DatabaseSettings `mapstructure:"database"`

	// Logging configuration
	Logging LoggingSettings `mapstructure:"logging"`
}

// LLMSettings holds provider configuration.
type LLMSettings struct {
	// APIKey for the Anthropic API (env HEDDLE_LLM_API_KEY, falls back
	// to ANTHROPIC_API_KEY inside the provider)
	APIKey string `mapstructure:"api_key"`

	// Model identifier (default: claude-sonnet-4-5-20250929)
	Model string `mapstructure:"model"`

	// MaxTokens per completion (default: 4096)
	MaxTokens int `mapstructure:"max_tokens"`

	// Temperature for generation (default: 0.0)
	Temperature float64 `mapstructure:"temperature"`
}

// EngineSettings holds loop and policy configuration.
type EngineSettings struct {
	// MaxIterations caps a worker's planner loop (default: 10).
	// Zero terminates on the first iteration.
	MaxIterations int `mapstructure:"max_iterations"`

	// MaxFollowUps caps manager follow-up delegations (default: 3)
	MaxFollowUps int `mapstructure:"max_follow_ups"`

	// HITLEnabled gates tool execution behind human approval
	HITLEnabled bool `mapstructure:"hitl_enabled"`

	// HITLScope is "all" or "writes" (default: writes)
	HITLScope string `mapstructure:"hitl_scope"`

	// RepetitionThreshold for the loop guard (default: 3)
	RepetitionThreshold int `mapstructure:"repetition_threshold"`

	// ActionWindow and ObservationWindow for the loop guard (default: 5)
	ActionWindow      int `mapstructure:"action_window"`
	ObservationWindow int `mapstructure:"observation_window"`

	// ToolChoice is the orchestrator's tool-choice policy:
	// "auto" or "required" (default: auto)
	ToolChoice string `mapstructure:"tool_choice"`
}

// HistorySettings shapes what planners see in their prompts.
type HistorySettings struct {
	// MaxEntries caps how many history entries reach a prompt
	// (default: 8)
	MaxEntries int `mapstructure:"max_entries"`

	// ObservationTruncation caps each rendered observation in
	// characters (default: 2000)
	ObservationTruncation int `mapstructure:"observation_truncation"`

	// IncludeTraces includes action/observation traces in prompts
	// (default: true)
	IncludeTraces bool `mapstructure:"include_traces"`

	// IncludeGlobals includes global observations in prompts
	// (default: true)
	IncludeGlobals bool `mapstructure:"include_globals"`

	// StrategicWithDirectorContext includes history in the strategic
	// planner's prompt even when a director context is present
	// (default: false)
	StrategicWithDirectorContext bool `mapstructure:"strategic_with_director_context"`
}

// DatabaseSettings holds job-store configuration.
type DatabaseSettings struct {
	// Path to the SQLite database. Empty selects the in-memory store.
	Path string `mapstructure:"path"`
}

// LoggingSettings holds logging configuration.
type LoggingSettings struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
}

// Load reads settings from the given config file (or the standard
// search paths when empty), environment variables, and defaults.
func Load(cfgFile string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/heddle/")
		v.SetConfigName(DefaultConfigFileName)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file %s: %w", v.ConfigFileUsed(), err)
		}
	}

	v.SetEnvPrefix("HEDDLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &settings, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.temperature", 0.0)

	v.SetDefault("engine.max_iterations", 10)
	v.SetDefault("engine.max_follow_ups", 3)
	v.SetDefault("engine.hitl_enabled", false)
	v.SetDefault("engine.hitl_scope", "writes")
	v.SetDefault("engine.repetition_threshold", 3)
	v.SetDefault("engine.action_window", 5)
	v.SetDefault("engine.observation_window", 5)
	v.SetDefault("engine.tool_choice", ToolChoiceAuto)

	v.SetDefault("history.max_entries", 8)
	v.SetDefault("history.observation_truncation", 2000)
	v.SetDefault("history.include_traces", true)
	v.SetDefault("history.include_globals", true)
	v.SetDefault("history.strategic_with_director_context", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks the loaded settings for internally consistent values.
func (s *Settings) Validate() error {
	if s.Engine.MaxIterations < 0 {
		return fmt.Errorf("engine.max_iterations must be >= 0, got %d", s.Engine.MaxIterations)
	}
	switch s.Engine.HITLScope {
	case "all", "writes":
	default:
		return fmt.Errorf("engine.hitl_scope must be \"all\" or \"writes\", got %q", s.Engine.HITLScope)
	}
	switch s.Engine.ToolChoice {
	case ToolChoiceAuto, ToolChoiceRequired:
	default:
		return fmt.Errorf("engine.tool_choice must be %q or %q, got %q",
			ToolChoiceAuto, ToolChoiceRequired, s.Engine.ToolChoice)
	}
	if s.History.MaxEntries < 0 {
		return fmt.Errorf("history.max_entries must be >= 0, got %d", s.History.MaxEntries)
	}
	if s.History.ObservationTruncation < 0 {
		return fmt.Errorf("history.observation_truncation must be >= 0, got %d", s.History.ObservationTruncation)
	}
	if s.Logging.Level != "" {
		switch s.Logging.Level {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", s.Logging.Level)
		}
	}
	return nil
}

// TruthyEnv interprets a raw environment value the way every engine
// toggle does: 1, true, and yes (case-insensitive) are on.
func TruthyEnv(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// IntEnv parses a raw environment value as an integer, falling back to
// the documented default on absence or parse failure.
func IntEnv(value string, fallback int) int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return fallback
	}
	return n
}
