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

// Package display renders run results and summaries for the terminal.
package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/deskbridge/migrator/internal/assembler"
	"github.com/deskbridge/migrator/internal/export"
	"github.com/deskbridge/migrator/internal/migrate"
	"github.com/deskbridge/migrator/internal/tracker"
)

var (
	Muted    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	Bold     = lipgloss.NewStyle().Bold(true)
	Success  = lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a"))
	Warn     = lipgloss.NewStyle().Foreground(lipgloss.Color("#d97706"))
	ErrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))
)

// maxListed caps how many failures or field names are printed.
const maxListed = 20

// SuccessMsg prints a green checkmark and message.
func SuccessMsg(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, Success.Render("✓")+" "+fmt.Sprintf(format, args...))
}

// ErrorMsg prints a red cross and message to stderr.
func ErrorMsg(format string, args ...any) {
	fmt.Fprintln(os.Stderr, ErrStyle.Render("✗")+" "+fmt.Sprintf(format, args...))
}

// Header prints a section header.
func Header(w io.Writer, title string) {
	fmt.Fprintln(w, Bold.Render(title))
}

func row(w io.Writer, label string, value string) {
	fmt.Fprintf(w, "  %s %s\n", Muted.Render(fmt.Sprintf("%-20s", label)), value)
}

// RunResult prints the statistics of a migration run.
func RunResult(w io.Writer, res *migrate.Result) {
	Header(w, "Migration run "+res.RunID)
	row(w, "Tickets", humanize.Comma(int64(res.Total)))
	row(w, "Succeeded", Success.Render(humanize.Comma(int64(res.Succeeded))))
	if res.HandedOff > 0 {
		row(w, "Queued for upload", humanize.Comma(int64(res.HandedOff)))
	}
	row(w, "Failed", failedCount(res.Failed))
	row(w, "Skipped", humanize.Comma(int64(res.Skipped)))
	row(w, "Attachments", humanize.Comma(int64(res.Attachments)))
	row(w, "Success rate", fmt.Sprintf("%.1f%%", res.SuccessRate()))
	row(w, "Elapsed", res.Elapsed.Round(time.Millisecond).String())
	failures(w, res.Failures)
}

// DeleteResult prints the outcome of a bulk delete.
func DeleteResult(w io.Writer, res *migrate.DeleteResult, dryRun bool) {
	if dryRun {
		Header(w, "Bulk delete (dry run)")
		row(w, "Would delete", humanize.Comma(int64(res.Total)))
		return
	}
	Header(w, "Bulk delete")
	row(w, "Candidates", humanize.Comma(int64(res.Total)))
	row(w, "Deleted", Success.Render(humanize.Comma(int64(res.Deleted))))
	row(w, "Failed", failedCount(res.Failed))
	row(w, "Elapsed", res.Elapsed.Round(time.Millisecond).String())
	failures(w, res.Failures)
}

func failedCount(n int) string {
	s := humanize.Comma(int64(n))
	if n > 0 {
		return ErrStyle.Render(s)
	}
	return s
}

func failures(w io.Writer, fs []migrate.Failure) {
	if len(fs) == 0 {
		return
	}
	fmt.Fprintln(w)
	Header(w, "Failures")
	for i, f := range fs {
		if i == maxListed {
			fmt.Fprintln(w, Muted.Render(fmt.Sprintf("  ... and %d more", len(fs)-maxListed)))
			break
		}
		fmt.Fprintf(w, "  %s %s\n", ErrStyle.Render(fmt.Sprintf("#%d", f.TicketID)), f.Reason)
	}
}

// ExportSummary prints what an export directory contains.
func ExportSummary(w io.Writer, s export.Summary) {
	Header(w, "Export "+s.Root)
	row(w, "Tickets", humanize.Comma(int64(s.TotalTickets)))
	row(w, "Agents", humanize.Comma(int64(s.Agents)))
	row(w, "Contacts", humanize.Comma(int64(s.Contacts)))
	row(w, "Attachment files", humanize.Comma(int64(s.AttachmentFiles)))
	row(w, "Attachment bytes", humanize.Bytes(uint64(s.AttachmentBytes)))
	if len(s.TicketIDs) > 0 {
		ids := make([]string, len(s.TicketIDs))
		for i, id := range s.TicketIDs {
			ids[i] = fmt.Sprint(id)
		}
		row(w, "First tickets", strings.Join(ids, ", "))
	}
}

// FieldSummary prints mapping coverage for one ticket.
func FieldSummary(w io.Writer, ticketID int64, s assembler.FieldSummary) {
	Header(w, fmt.Sprintf("Ticket %d field mapping", ticketID))
	row(w, "Total fields", humanize.Comma(int64(s.TotalFields)))
	row(w, "Mapped", humanize.Comma(int64(len(s.MappedFields))))
	row(w, "Unmapped", humanize.Comma(int64(len(s.UnmappedFields))))
	row(w, "Coverage", fmt.Sprintf("%.1f%%", s.Coverage*100))
	names(w, "Mapped fields", s.MappedFields)
	names(w, "Unmapped fields", s.UnmappedFields)
}

func names(w io.Writer, title string, list []string) {
	if len(list) == 0 {
		return
	}
	shown := list
	if len(shown) > maxListed {
		shown = shown[:maxListed]
	}
	line := strings.Join(shown, ", ")
	if len(list) > maxListed {
		line += fmt.Sprintf(", ... (+%d)", len(list)-maxListed)
	}
	row(w, title, line)
}

// LedgerCounts prints the ledger's per-status totals.
func LedgerCounts(w io.Writer, counts map[tracker.Status]int) {
	Header(w, "Ledger")
	for _, s := range tracker.Statuses {
		row(w, string(s), humanize.Comma(int64(counts[s])))
	}
}
