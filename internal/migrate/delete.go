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

package migrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/deskbridge/migrator/internal/jira"
	"github.com/deskbridge/migrator/internal/tracker"
)

// DeleteResult summarises a bulk delete.
type DeleteResult struct {
	Total    int
	Deleted  int
	Failed   int
	Failures []Failure
	Elapsed  time.Duration
}

// DeleteMigrated removes every issue the ledger marks successful and marks
// its ticket deleted. An issue already gone from the tracker counts as
// deleted. With dryRun the candidates are only counted.
func (r *Runner) DeleteMigrated(ctx context.Context, dryRun bool) (*DeleteResult, error) {
	start := time.Now()
	if r.tracker == nil && !dryRun {
		return nil, fmt.Errorf("no issue tracker client configured")
	}

	records, err := r.ledger.ListByStatus(ctx, tracker.StatusSuccess)
	if err != nil {
		return nil, fmt.Errorf("list migrated tickets: %w", err)
	}

	res := &DeleteResult{Total: len(records)}
	if dryRun {
		res.Elapsed = time.Since(start)
		return res, nil
	}

	slog.Info("deleting migrated issues", "issues", len(records), "workers", r.workers)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for _, rec := range records {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			err := r.deleteOne(gctx, rec)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Warn("delete issue failed",
					"ticket_id", rec.TicketID,
					"issue_key", rec.IssueKey,
					"error", err,
				)
				res.Failed++
				res.Failures = append(res.Failures, Failure{TicketID: rec.TicketID, Reason: err.Error()})
				return nil
			}
			res.Deleted++
			return nil
		})
	}
	_ = g.Wait()
	res.Elapsed = time.Since(start)

	slog.Info("bulk delete complete",
		"deleted", res.Deleted,
		"failed", res.Failed,
		"elapsed", res.Elapsed,
	)
	return res, ctx.Err()
}

func (r *Runner) deleteOne(ctx context.Context, rec tracker.Record) error {
	if rec.IssueKey != "" {
		err := r.tracker.DeleteIssue(ctx, rec.IssueKey)
		if err != nil && !errors.Is(err, jira.ErrNotFound) {
			return err
		}
	}
	rec.Status = tracker.StatusDeleted
	rec.Reason = ""
	if err := r.ledger.Upsert(context.WithoutCancel(ctx), rec); err != nil {
		return fmt.Errorf("mark deleted: %w", err)
	}
	return nil
}
