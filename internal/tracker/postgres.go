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

package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgQuerier is the subset of *pgxpool.Pool the store uses.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PGStore is a Postgres-backed ledger.
type PGStore struct {
	pool pgQuerier
}

// NewPGStore creates a ledger on pool and ensures its table exists.
func NewPGStore(ctx context.Context, pool pgQuerier) (*PGStore, error) {
	s := &PGStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure tracker schema: %w", err)
	}
	slog.Info("tracker store initialised", "driver", "postgres")
	return s, nil
}

func (s *PGStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS migration_records (
			ticket_id   BIGINT PRIMARY KEY,
			status      TEXT NOT NULL,
			issue_key   TEXT DEFAULT '',
			reason      TEXT DEFAULT '',
			attachments INTEGER DEFAULT 0,
			created_at  TIMESTAMPTZ DEFAULT NOW(),
			updated_at  TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_migration_status ON migration_records(status);
	`)
	return err
}

// Upsert inserts or updates the record for r.TicketID.
func (s *PGStore) Upsert(ctx context.Context, r Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO migration_records (ticket_id, status, issue_key, reason, attachments)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (ticket_id) DO UPDATE SET
			status      = EXCLUDED.status,
			issue_key   = EXCLUDED.issue_key,
			reason      = EXCLUDED.reason,
			attachments = EXCLUDED.attachments,
			updated_at  = NOW()
	`, r.TicketID, string(r.Status), r.IssueKey, r.Reason, r.Attachments)
	if err != nil {
		return fmt.Errorf("upsert ticket %d: %w", r.TicketID, err)
	}
	return nil
}

// Get retrieves the record for a ticket.
func (s *PGStore) Get(ctx context.Context, ticketID int64) (*Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT ticket_id, status, issue_key, reason, attachments, created_at, updated_at
		FROM migration_records
		WHERE ticket_id = $1
	`, ticketID)
	return scanPGRecord(row)
}

// ListByStatus returns every record in status, by ticket id.
func (s *PGStore) ListByStatus(ctx context.Context, status Status) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ticket_id, status, issue_key, reason, attachments, created_at, updated_at
		FROM migration_records
		WHERE status = $1
		ORDER BY ticket_id
	`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPGRecords(rows)
}

// Counts returns the number of records per status.
func (s *PGStore) Counts(ctx context.Context) (map[Status]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT status, COUNT(*) FROM migration_records GROUP BY status
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[Status(status)] = n
	}
	return counts, rows.Err()
}

// Close releases the pool.
func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}

// scanPGRecord scans a single row into a Record.
func scanPGRecord(row pgx.Row) (*Record, error) {
	var r Record
	var status string
	err := row.Scan(&r.TicketID, &status, &r.IssueKey, &r.Reason, &r.Attachments, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.Status = Status(status)
	return &r, nil
}

// collectPGRecords scans multiple rows into a slice of Records.
func collectPGRecords(rows pgx.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var r Record
		var status string
		if err := rows.Scan(&r.TicketID, &status, &r.IssueKey, &r.Reason, &r.Attachments, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		r.Status = Status(status)
		records = append(records, r)
	}
	return records, rows.Err()
}
