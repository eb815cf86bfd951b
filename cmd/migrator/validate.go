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
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deskbridge/migrator/internal/display"
	"github.com/deskbridge/migrator/internal/tracker"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the export, mapping table, ledger and Jira access",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		var problems []error

		// --- Mapping table and export ---
		eng, err := newEngine(cfg)
		if err != nil {
			problems = append(problems, err)
		} else {
			display.SuccessMsg(out, "mapping table %s", eng.tables.Path())
			if err := eng.loader.Validate(); err != nil {
				problems = append(problems, err)
			} else {
				display.SuccessMsg(out, "export directory %s", eng.loader.Root())
			}
		}

		// --- Ledger ---
		ledger, err := tracker.Open(ctx, cfg.TrackerDriver, cfg.TrackerDSN)
		if err != nil {
			problems = append(problems, fmt.Errorf("open ledger: %w", err))
		} else {
			counts, err := ledger.Counts(ctx)
			ledger.Close()
			if err != nil {
				problems = append(problems, err)
			} else {
				display.LedgerCounts(out, counts)
			}
		}

		// --- Jira identity and project ---
		client, err := newJiraClient(ctx, cfg)
		if err != nil {
			problems = append(problems, err)
		} else {
			if me, err := client.Myself(ctx); err != nil {
				problems = append(problems, err)
			} else {
				display.SuccessMsg(out, "authenticated as %s", me.DisplayName)
			}
			if p, err := client.Project(ctx, cfg.Jira.ProjectKey); err != nil {
				problems = append(problems, err)
			} else {
				display.SuccessMsg(out, "project %s (%s)", p.Key, p.Name)
			}
		}

		for _, p := range problems {
			display.ErrorMsg("%v", p)
		}
		if len(problems) > 0 {
			return errors.New("validation failed")
		}
		return nil
	},
}
