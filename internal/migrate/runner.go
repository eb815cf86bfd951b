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

// Package migrate drives a migration run: it selects tickets from the export,
// converts each one with a fresh mapper, creates the issue and its
// attachments (or hands it to the upload queue), and records the outcome in
// the ledger.
package migrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/deskbridge/migrator/internal/assembler"
	"github.com/deskbridge/migrator/internal/formatter"
	"github.com/deskbridge/migrator/internal/jira"
	"github.com/deskbridge/migrator/internal/mapping"
	"github.com/deskbridge/migrator/internal/models"
	"github.com/deskbridge/migrator/internal/queue"
	"github.com/deskbridge/migrator/internal/tracker"
)

// DefaultWorkers is the pool size when none is configured.
const DefaultWorkers = 4

// ErrNoTickets is returned when a request selects nothing to migrate.
var ErrNoTickets = errors.New("no tickets selected")

// Source supplies tickets from the export.
type Source interface {
	TicketIDs() ([]int64, error)
	LoadBundle(id int64) (models.Bundle, error)
	AttachmentPath(ticketID int64, name string) (string, bool)
}

// Converter turns a bundle into a destination issue.
type Converter interface {
	Convert(b models.Bundle) (*models.Issue, error)
}

// Tracker is the issue-tracker surface the runner needs.
type Tracker interface {
	CreateIssue(ctx context.Context, issue *models.Issue) (*jira.CreatedIssue, error)
	UploadFile(ctx context.Context, key, path, fileName string) ([]jira.Attachment, error)
	DeleteIssue(ctx context.Context, key string) error
}

// Claims keeps two workers from migrating the same ticket.
type Claims interface {
	Claim(ctx context.Context, ticketID int64) (bool, error)
	Release(ctx context.Context, ticketID int64) error
}

// Handoff publishes converted issues for an external upload worker.
type Handoff interface {
	PublishIssue(ctx context.Context, ticketID int64, issue *models.Issue, attachments []queue.AttachmentRef) (string, error)
}

// Request selects the tickets of one run and how to process them.
type Request struct {
	TicketIDs []int64
	All       bool
	Limit     int
	DryRun    bool // print issues instead of creating them
	Force     bool // re-migrate tickets already marked successful
	Handoff   bool
}

// Failure describes one ticket that did not migrate.
type Failure struct {
	TicketID int64
	Reason   string
}

// Result summarises a completed run.
type Result struct {
	RunID       string
	Total       int
	Succeeded   int
	Failed      int
	Skipped     int
	HandedOff   int
	Attachments int
	Failures    []Failure
	Elapsed     time.Duration
}

// SuccessRate is the share of attempted tickets that succeeded, in percent.
func (r *Result) SuccessRate() float64 {
	attempted := r.Succeeded + r.Failed + r.HandedOff
	if attempted == 0 {
		return 0
	}
	return float64(r.Succeeded+r.HandedOff) * 100 / float64(attempted)
}

// Runner performs migration runs.
type Runner struct {
	source    Source
	converter Converter
	ledger    tracker.Ledger
	tracker   Tracker
	claims    Claims
	handoff   Handoff
	workers   int
	out       io.Writer

	outMu sync.Mutex
}

// RunnerConfig holds dependencies for the runner. Claims and Handoff are
// optional; Tracker may be nil for dry runs and handoff runs.
type RunnerConfig struct {
	Source    Source
	Converter Converter
	Ledger    tracker.Ledger
	Tracker   Tracker
	Claims    Claims
	Handoff   Handoff
	Workers   int
	Out       io.Writer // dry-run output
}

// NewRunner creates a migration runner.
func NewRunner(cfg RunnerConfig) *Runner {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	out := cfg.Out
	if out == nil {
		out = io.Discard
	}
	return &Runner{
		source:    cfg.Source,
		converter: cfg.Converter,
		ledger:    cfg.Ledger,
		tracker:   cfg.Tracker,
		claims:    cfg.Claims,
		handoff:   cfg.Handoff,
		workers:   workers,
		out:       out,
	}
}

// Run migrates the tickets req selects. Per-ticket failures are recorded and
// the run continues; a configuration error aborts the run and is returned.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	ids, err := r.selectTickets(req)
	if err != nil {
		return nil, err
	}
	if req.Handoff && r.handoff == nil {
		return nil, fmt.Errorf("handoff requested but no upload queue is configured")
	}
	if !req.DryRun && !req.Handoff && r.tracker == nil {
		return nil, fmt.Errorf("no issue tracker client configured")
	}

	res := &Result{RunID: uuid.New().String(), Total: len(ids)}
	slog.Info("starting migration run",
		"run_id", res.RunID,
		"tickets", len(ids),
		"workers", r.workers,
		"dry_run", req.DryRun,
		"handoff", req.Handoff,
	)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for _, id := range ids {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			o, err := r.migrateOne(gctx, id, req)
			if err != nil {
				return err
			}
			mu.Lock()
			res.record(id, o)
			mu.Unlock()
			return nil
		})
	}

	err = g.Wait()
	res.Elapsed = time.Since(start)
	if err != nil {
		slog.Error("migration run aborted", "run_id", res.RunID, "error", err)
		return res, err
	}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}

	slog.Info("migration run complete",
		"run_id", res.RunID,
		"total", res.Total,
		"succeeded", res.Succeeded,
		"failed", res.Failed,
		"skipped", res.Skipped,
		"handed_off", res.HandedOff,
		"attachments", res.Attachments,
		"elapsed", res.Elapsed,
	)
	return res, nil
}

func (r *Runner) selectTickets(req Request) ([]int64, error) {
	var ids []int64
	switch {
	case len(req.TicketIDs) > 0:
		ids = append(ids, req.TicketIDs...)
	case req.All:
		all, err := r.source.TicketIDs()
		if err != nil {
			return nil, fmt.Errorf("list tickets: %w", err)
		}
		ids = all
	}
	if req.Limit > 0 && len(ids) > req.Limit {
		ids = ids[:req.Limit]
	}
	if len(ids) == 0 {
		return nil, ErrNoTickets
	}
	return ids, nil
}

type outcomeKind int

const (
	outcomeSucceeded outcomeKind = iota
	outcomeFailed
	outcomeSkipped
	outcomeHandedOff
)

type outcome struct {
	kind        outcomeKind
	reason      string
	attachments int
}

func (res *Result) record(id int64, o outcome) {
	switch o.kind {
	case outcomeSucceeded:
		res.Succeeded++
	case outcomeFailed:
		res.Failed++
		res.Failures = append(res.Failures, Failure{TicketID: id, Reason: o.reason})
	case outcomeSkipped:
		res.Skipped++
	case outcomeHandedOff:
		res.HandedOff++
	}
	res.Attachments += o.attachments
}

// fatal reports errors that invalidate every remaining ticket.
func fatal(err error) bool {
	return errors.Is(err, assembler.ErrNoMappingTable) || errors.Is(err, mapping.ErrInvalidTable)
}

// migrateOne processes a single ticket. Only fatal errors are returned.
func (r *Runner) migrateOne(ctx context.Context, id int64, req Request) (outcome, error) {
	if !req.DryRun && !req.Force {
		rec, err := r.ledger.Get(ctx, id)
		if err != nil {
			slog.Warn("ledger lookup failed", "ticket_id", id, "error", err)
		} else if rec != nil && rec.Status == tracker.StatusSuccess {
			slog.Debug("ticket already migrated", "ticket_id", id, "issue_key", rec.IssueKey)
			return outcome{kind: outcomeSkipped}, nil
		}
	}

	if r.claims != nil && !req.DryRun {
		claimed, err := r.claims.Claim(ctx, id)
		if err != nil {
			slog.Warn("claim check failed", "ticket_id", id, "error", err)
		} else if !claimed {
			return outcome{kind: outcomeSkipped}, nil
		} else {
			defer func() {
				if err := r.claims.Release(context.WithoutCancel(ctx), id); err != nil {
					slog.Warn("release claim failed", "ticket_id", id, "error", err)
				}
			}()
		}
	}

	bundle, err := r.source.LoadBundle(id)
	if err != nil {
		return r.fail(ctx, id, req, fmt.Errorf("load ticket: %w", err)), nil
	}

	issue, err := r.converter.Convert(bundle)
	if err != nil {
		if fatal(err) {
			return outcome{}, fmt.Errorf("convert ticket %d: %w", id, err)
		}
		return r.fail(ctx, id, req, fmt.Errorf("convert ticket: %w", err)), nil
	}

	if req.DryRun {
		if err := r.printIssue(id, issue); err != nil {
			return r.fail(ctx, id, req, err), nil
		}
		return outcome{kind: outcomeSucceeded}, nil
	}

	r.upsert(ctx, tracker.Record{TicketID: id, Status: tracker.StatusInProgress})

	atts := bundle.AllAttachments()
	if req.Handoff {
		taskID, err := r.handoff.PublishIssue(ctx, id, issue, r.attachmentRefs(id, atts))
		if err != nil {
			return r.fail(ctx, id, req, fmt.Errorf("publish issue: %w", err)), nil
		}
		r.upsert(ctx, tracker.Record{TicketID: id, Status: tracker.StatusInProgress, Reason: "queued as task " + taskID})
		return outcome{kind: outcomeHandedOff}, nil
	}

	created, err := r.tracker.CreateIssue(ctx, issue)
	if err != nil {
		return r.fail(ctx, id, req, err), nil
	}

	uploaded := r.uploadAttachments(ctx, id, created.Key, atts)
	r.upsert(ctx, tracker.Record{
		TicketID:    id,
		Status:      tracker.StatusSuccess,
		IssueKey:    created.Key,
		Attachments: uploaded,
	})
	slog.Info("ticket migrated",
		"ticket_id", id,
		"issue_key", created.Key,
		"attachments", uploaded,
	)
	return outcome{kind: outcomeSucceeded, attachments: uploaded}, nil
}

func (r *Runner) attachmentRefs(id int64, atts []models.Attachment) []queue.AttachmentRef {
	refs := make([]queue.AttachmentRef, 0, len(atts))
	for _, a := range atts {
		path, ok := r.source.AttachmentPath(id, a.Name)
		if !ok {
			slog.Warn("attachment binary missing", "ticket_id", id, "name", a.Name)
			continue
		}
		refs = append(refs, queue.AttachmentRef{Path: path, FileName: formatter.AttachmentFileName(a)})
	}
	return refs
}

// uploadAttachments uploads every binary present in the export. A failed
// upload is logged and does not fail the ticket.
func (r *Runner) uploadAttachments(ctx context.Context, id int64, key string, atts []models.Attachment) int {
	uploaded := 0
	for _, ref := range r.attachmentRefs(id, atts) {
		if _, err := r.tracker.UploadFile(ctx, key, ref.Path, ref.FileName); err != nil {
			slog.Warn("attachment upload failed",
				"ticket_id", id,
				"issue_key", key,
				"file", ref.FileName,
				"error", err,
			)
			continue
		}
		uploaded++
	}
	return uploaded
}

func (r *Runner) fail(ctx context.Context, id int64, req Request, err error) outcome {
	slog.Warn("ticket migration failed", "ticket_id", id, "error", err)
	if !req.DryRun {
		r.upsert(ctx, tracker.Record{TicketID: id, Status: tracker.StatusFailed, Reason: err.Error()})
	}
	return outcome{kind: outcomeFailed, reason: err.Error()}
}

func (r *Runner) upsert(ctx context.Context, rec tracker.Record) {
	if err := r.ledger.Upsert(context.WithoutCancel(ctx), rec); err != nil {
		slog.Error("ledger update failed",
			"ticket_id", rec.TicketID,
			"status", rec.Status,
			"error", err,
		)
	}
}

func (r *Runner) printIssue(id int64, issue *models.Issue) error {
	data, err := json.MarshalIndent(issue, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal issue: %w", err)
	}
	r.outMu.Lock()
	defer r.outMu.Unlock()
	_, err = fmt.Fprintf(r.out, "# ticket %d\n%s\n", id, data)
	return err
}
