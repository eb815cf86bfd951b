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

// Package tracker records the migration outcome of every ticket so that runs
// can be resumed and migrated issues can be found again for deletion.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUnknownDriver is returned by Open for an unsupported driver name.
var ErrUnknownDriver = errors.New("unknown tracker driver")

// Status is the migration state of one ticket.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
	StatusDeleted    Status = "deleted"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusSuccess, StatusFailed, StatusInProgress, StatusDeleted}

// Record is the ledger row for one ticket.
type Record struct {
	TicketID    int64
	Status      Status
	IssueKey    string
	Reason      string
	Attachments int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Ledger persists records keyed on ticket id.
type Ledger interface {
	// Get returns nil, nil when the ticket has no record.
	Get(ctx context.Context, ticketID int64) (*Record, error)
	Upsert(ctx context.Context, r Record) error
	ListByStatus(ctx context.Context, status Status) ([]Record, error)
	Counts(ctx context.Context) (map[Status]int, error)
	Close() error
}

// Open connects to the ledger named by driver: "sqlite" (dsn is a file path)
// or "postgres" (dsn is a connection URL).
func Open(ctx context.Context, driver, dsn string) (Ledger, error) {
	switch driver {
	case "sqlite", "":
		s, err := OpenSQLite(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres", "postgresql":
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s, err := NewPGStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
