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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	settings, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "claude-sonnet-4-5-20250929", settings.LLM.Model)
	assert.Equal(t, 4096, settings.LLM.MaxTokens)
	assert.Equal(t, 10, settings.Engine.MaxIterations)
	assert.Equal(t, 3, settings.Engine.MaxFollowUps)
	assert.False(t, settings.Engine.HITLEnabled)
	assert.Equal(t, "writes", settings.Engine.HITLScope)
	assert.Equal(t, 3, settings.Engine.RepetitionThreshold)
	assert.Equal(t, ToolChoiceAuto, settings.Engine.ToolChoice)
	assert.Equal(t, 8, settings.History.MaxEntries)
	assert.Equal(t, 2000, settings.History.ObservationTruncation)
	assert.True(t, settings.History.IncludeTraces)
	assert.Empty(t, settings.Database.Path, "no database path means the in-memory job store")
	assert.Equal(t, "info", settings.Logging.Level)

	assert.NoError(t, settings.Validate())
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heddle.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  model: claude-opus-4
  max_tokens: 8192
engine:
  max_iterations: 25
  hitl_enabled: true
  hitl_scope: all
database:
  path: /var/lib/heddle/jobs.db
`), 0o644))

	settings, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "claude-opus-4", settings.LLM.Model)
	assert.Equal(t, 8192, settings.LLM.MaxTokens)
	assert.Equal(t, 25, settings.Engine.MaxIterations)
	assert.True(t, settings.Engine.HITLEnabled)
	assert.Equal(t, "all", settings.Engine.HITLScope)
	assert.Equal(t, "/var/lib/heddle/jobs.db", settings.Database.Path)

	assert.Equal(t, 3, settings.Engine.MaxFollowUps, "unset keys keep their defaults")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HEDDLE_LLM_MODEL", "claude-haiku-4")
	t.Setenv("HEDDLE_ENGINE_MAX_ITERATIONS", "7")
	t.Setenv("HEDDLE_ENGINE_HITL_ENABLED", "true")

	settings, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "claude-haiku-4", settings.LLM.Model)
	assert.Equal(t, 7, settings.Engine.MaxIterations)
	assert.True(t, settings.Engine.HITLEnabled)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heddle.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [not: valid"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Settings {
		settings, err := Load("")
		require.NoError(t, err)
		return settings
	}

	t.Run("negative iterations", func(t *testing.T) {
		s := valid()
		s.Engine.MaxIterations = -1
		assert.ErrorContains(t, s.Validate(), "max_iterations")
	})

	t.Run("zero iterations allowed", func(t *testing.T) {
		s := valid()
		s.Engine.MaxIterations = 0
		assert.NoError(t, s.Validate())
	})

	t.Run("bad hitl scope", func(t *testing.T) {
		s := valid()
		s.Engine.HITLScope = "everything"
		assert.ErrorContains(t, s.Validate(), "hitl_scope")
	})

	t.Run("bad tool choice", func(t *testing.T) {
		s := valid()
		s.Engine.ToolChoice = "forced"
		assert.ErrorContains(t, s.Validate(), "tool_choice")
	})

	t.Run("bad log level", func(t *testing.T) {
		s := valid()
		s.Logging.Level = "loud"
		assert.ErrorContains(t, s.Validate(), "logging.level")
	})
}

func TestTruthyEnv(t *testing.T) {
	for _, on := range []string{"1", "true", "TRUE", "yes", " Yes "} {
		assert.True(t, TruthyEnv(on), on)
	}
	for _, off := range []string{"", "0", "false", "no", "maybe"} {
		assert.False(t, TruthyEnv(off), off)
	}
}

func TestIntEnv(t *testing.T) {
	assert.Equal(t, 42, IntEnv("42", 7))
	assert.Equal(t, 42, IntEnv(" 42 ", 7))
	assert.Equal(t, 7, IntEnv("", 7))
	assert.Equal(t, 7, IntEnv("not-a-number", 7))
}
