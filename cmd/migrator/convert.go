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
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/deskbridge/migrator/internal/display"
)

var convertCmd = &cobra.Command{
	Use:   "convert <ticket-id>",
	Short: "Print the Jira issue a ticket converts to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTicketID(args[0])
		if err != nil {
			return err
		}
		eng, err := newEngine(cfg)
		if err != nil {
			return err
		}
		bundle, err := eng.loader.LoadBundle(id)
		if err != nil {
			return err
		}
		issue, err := eng.assembler.Convert(bundle)
		if err != nil {
			return fmt.Errorf("convert ticket %d: %w", id, err)
		}
		return writeJSON(cmd.OutOrStdout(), issue)
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary [ticket-id]",
	Short: "Summarise the export, or the field mapping coverage of one ticket",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine(cfg)
		if err != nil {
			return err
		}

		if len(args) == 0 {
			s, err := eng.loader.Summary()
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), s)
			}
			display.ExportSummary(cmd.OutOrStdout(), s)
			return nil
		}

		id, err := parseTicketID(args[0])
		if err != nil {
			return err
		}
		ticket, err := eng.loader.LoadTicket(id)
		if err != nil {
			return err
		}
		dir, err := eng.loader.Directory()
		if err != nil {
			return err
		}
		s, err := eng.assembler.Summary(ticket, dir)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), s)
		}
		display.FieldSummary(cmd.OutOrStdout(), id, s)
		return nil
	},
}

func parseTicketID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid ticket id %q", s)
	}
	return id, nil
}
