// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Deskbridge Migrator
//
// Command-line entry point for the Freshdesk to Jira migrator. It:
//  1. Loads configuration from config/migrator.yaml and the environment
//  2. Loads the field mapping table and the on-disk export
//  3. Converts tickets to Jira issues, creating them directly or handing
//     them to the upload queue
//  4. Records every outcome in the migration ledger
//  5. Optionally serves the converter over HTTP
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/deskbridge/migrator/internal/assembler"
	"github.com/deskbridge/migrator/internal/config"
	"github.com/deskbridge/migrator/internal/display"
	"github.com/deskbridge/migrator/internal/export"
	"github.com/deskbridge/migrator/internal/formatter"
	"github.com/deskbridge/migrator/internal/mapping"
	"github.com/deskbridge/migrator/internal/transform"
)

// Version is set via ldflags at build time.
var Version = "dev"

var (
	configPath string
	logLevel   string
	jsonOutput bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "migrator",
	Short:         "migrator - convert Freshdesk exports into Jira issues",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		level := cfg.LogLevel
		if logLevel != "" {
			level = logLevel
		}
		return setupLogging(cmd.ErrOrStderr(), level)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "migrator version %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to migrator.yaml (default $CONFIG_PATH or "+config.DefaultPath+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "machine-readable output")

	rootCmd.AddCommand(versionCmd, migrateCmd, deleteCmd, convertCmd, summaryCmd, validateCmd, serveCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		display.ErrorMsg("%v", err)
		stop()
		os.Exit(1)
	}
}

// setupLogging installs a JSON slog handler as the process default.
func setupLogging(w io.Writer, level string) error {
	var lvl slog.Level
	if level != "" {
		if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})))
	return nil
}

// engine is the conversion stack shared by every command.
type engine struct {
	loader    *export.Loader
	tables    *mapping.Source
	assembler *assembler.Assembler
}

func newEngine(cfg *config.Config) (*engine, error) {
	registry := transform.NewRegistry()

	tables, err := mapping.NewSource(cfg.MappingFile, registry)
	if err != nil {
		return nil, err
	}
	slog.Info("mapping table loaded", "path", cfg.MappingFile)

	asm := assembler.New(tables, registry, formatter.New(cfg.Delimiter), assembler.Defaults{
		ProjectKey: cfg.Jira.ProjectKey,
		IssueType:  cfg.Jira.IssueType,
		SourceName: cfg.SourceName,
	})
	return &engine{
		loader:    export.NewLoader(cfg.ExportDir),
		tables:    tables,
		assembler: asm,
	}, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
