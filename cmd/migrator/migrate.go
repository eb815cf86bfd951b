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

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/deskbridge/migrator/internal/config"
	"github.com/deskbridge/migrator/internal/dedup"
	"github.com/deskbridge/migrator/internal/display"
	"github.com/deskbridge/migrator/internal/jira"
	"github.com/deskbridge/migrator/internal/migrate"
	"github.com/deskbridge/migrator/internal/queue"
	"github.com/deskbridge/migrator/internal/tracker"
)

var (
	migrateTicketIDs []int64
	migrateAll       bool
	migrateLimit     int
	migrateDryRun    bool
	migrateWorkers   int
	migrateForce     bool
	migrateHandoff   bool

	deleteDryRun bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Convert tickets and create them as Jira issues",
	Long: `Convert exported tickets and create them in Jira, uploading attachments.

Tickets already recorded as migrated are skipped unless --force is given.

Examples:
  migrator migrate --ticket-ids 101,102   # Specific tickets
  migrator migrate --all --limit 50       # First 50 tickets in the export
  migrator migrate --all --dry-run        # Print issues, create nothing
  migrator migrate --all --handoff        # Queue issues for the upload worker`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		eng, err := newEngine(cfg)
		if err != nil {
			return err
		}

		rc := migrate.RunnerConfig{
			Source:    eng.loader,
			Converter: eng.assembler,
			Workers:   firstSet(migrateWorkers, cfg.Workers),
			Out:       cmd.OutOrStdout(),
		}

		if !migrateDryRun {
			// --- Migration ledger ---
			ledger, err := tracker.Open(ctx, cfg.TrackerDriver, cfg.TrackerDSN)
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			defer ledger.Close()
			rc.Ledger = ledger

			// --- Redis (claims and upload queue) ---
			rdb, err := connectRedis(ctx, cfg)
			if err != nil {
				return err
			}
			if rdb != nil {
				defer rdb.Close()
				rc.Claims = dedup.NewFilter(rdb).WithTTL(cfg.ClaimTTL)
				rc.Handoff = queue.NewPublisher(rdb, cfg.IssuesQueue)
			}

			// --- Jira client ---
			if !migrateHandoff {
				client, err := newJiraClient(ctx, cfg)
				if err != nil {
					return err
				}
				rc.Tracker = client
			}
		}

		runner := migrate.NewRunner(rc)
		res, err := runner.Run(ctx, migrate.Request{
			TicketIDs: migrateTicketIDs,
			All:       migrateAll,
			Limit:     migrateLimit,
			DryRun:    migrateDryRun,
			Force:     migrateForce,
			Handoff:   migrateHandoff,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), res)
		}
		if migrateDryRun {
			display.SuccessMsg(cmd.ErrOrStderr(), "dry run converted %d of %d tickets", res.Succeeded, res.Total)
			return nil
		}
		display.RunResult(cmd.OutOrStdout(), res)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete every Jira issue the ledger records as migrated",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		ledger, err := tracker.Open(ctx, cfg.TrackerDriver, cfg.TrackerDSN)
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		defer ledger.Close()

		rc := migrate.RunnerConfig{Ledger: ledger, Workers: cfg.Workers}
		if !deleteDryRun {
			client, err := newJiraClient(ctx, cfg)
			if err != nil {
				return err
			}
			rc.Tracker = client
		}

		res, err := migrate.NewRunner(rc).DeleteMigrated(ctx, deleteDryRun)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), res)
		}
		display.DeleteResult(cmd.OutOrStdout(), res, deleteDryRun)
		return nil
	},
}

func init() {
	f := migrateCmd.Flags()
	f.Int64SliceVar(&migrateTicketIDs, "ticket-ids", nil, "comma-separated ticket ids to migrate")
	f.BoolVar(&migrateAll, "all", false, "migrate every ticket in the export")
	f.IntVar(&migrateLimit, "limit", 0, "migrate at most this many tickets")
	f.BoolVar(&migrateDryRun, "dry-run", false, "print converted issues instead of creating them")
	f.IntVar(&migrateWorkers, "workers", 0, "concurrent tickets (default from config)")
	f.BoolVar(&migrateForce, "force", false, "re-migrate tickets already marked successful")
	f.BoolVar(&migrateHandoff, "handoff", false, "publish issues to the Redis upload queue")
	migrateCmd.MarkFlagsMutuallyExclusive("ticket-ids", "all")
	migrateCmd.MarkFlagsOneRequired("ticket-ids", "all")
	migrateCmd.MarkFlagsMutuallyExclusive("dry-run", "handoff")

	deleteCmd.Flags().BoolVar(&deleteDryRun, "dry-run", false, "count issues without deleting them")
}

func newJiraClient(ctx context.Context, cfg *config.Config) (*jira.Client, error) {
	if err := cfg.RequireJira(); err != nil {
		return nil, err
	}
	return jira.NewClient(ctx, jira.Config{
		BaseURL:     cfg.Jira.BaseURL,
		Email:       cfg.Jira.Email,
		APIToken:    cfg.Jira.APIToken,
		BearerToken: cfg.Jira.BearerToken,
		RateLimit:   cfg.Jira.RateLimit,
		Burst:       cfg.Jira.Burst,
		Timeout:     cfg.Jira.Timeout,
	}), nil
}

// connectRedis returns nil when no REDIS_URL is configured.
func connectRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opt)

	if err := queue.NewPublisher(rdb, cfg.IssuesQueue).Ping(ctx); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	slog.Info("connected to Redis")
	return rdb, nil
}

func firstSet(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
