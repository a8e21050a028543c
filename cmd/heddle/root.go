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
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/teradata-labs/heddle/pkg/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "heddle",
	Short: "Heddle - hierarchical agent execution engine",
	Long:  `Heddle runs hierarchical agent trees: an orchestrator delegating to managers, managers delegating phases, scripts, and parallel fan-outs to workers running a plan/act/observe loop over tools.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./heddle.yaml)")
	rootCmd.PersistentFlags().String("db", "", "SQLite job database path (empty = in-memory)")
	rootCmd.PersistentFlags().String("api-key", "", "Anthropic API key (or ANTHROPIC_API_KEY)")
	rootCmd.PersistentFlags().String("model", "", "model identifier")
	rootCmd.PersistentFlags().Int("max-iterations", 0, "worker iteration cap (0 = config default)")
	rootCmd.PersistentFlags().Bool("hitl", false, "require human approval before tool execution")
	rootCmd.PersistentFlags().String("hitl-scope", "", "approval scope: all or writes")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")
}

// loadSettings merges flags over the loaded configuration.
func loadSettings(cmd *cobra.Command) (*config.Settings, error) {
	settings, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if v, _ := flags.GetString("db"); v != "" {
		settings.Database.Path = v
	}
	if v, _ := flags.GetString("api-key"); v != "" {
		settings.LLM.APIKey = v
	}
	if v, _ := flags.GetString("model"); v != "" {
		settings.LLM.Model = v
	}
	if v, _ := flags.GetInt("max-iterations"); v > 0 {
		settings.Engine.MaxIterations = v
	}
	if v, _ := flags.GetBool("hitl"); v {
		settings.Engine.HITLEnabled = true
	}
	if v, _ := flags.GetString("hitl-scope"); v != "" {
		settings.Engine.HITLScope = v
	}
	if v, _ := flags.GetString("log-level"); v != "" {
		settings.Logging.Level = v
	}
	if v, _ := flags.GetString("log-format"); v != "" {
		settings.Logging.Format = v
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// newLogger builds a zap logger from the logging settings.
func newLogger(settings config.LoggingSettings) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if settings.Level != "" {
		if err := level.UnmarshalText([]byte(settings.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", settings.Level, err)
		}
	}

	var cfg zap.Config
	if settings.Format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}
