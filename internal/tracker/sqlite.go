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
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS migration_records (
	ticket_id   INTEGER PRIMARY KEY,
	status      TEXT NOT NULL,
	issue_key   TEXT NOT NULL DEFAULT '',
	reason      TEXT NOT NULL DEFAULT '',
	attachments INTEGER NOT NULL DEFAULT 0,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_migration_status ON migration_records(status);
`

// SQLiteStore is a file-backed ledger for single-host runs.
type SQLiteStore struct {
	conn *sql.DB
	path string
}

// OpenSQLite opens (or creates) a ledger database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Serialize writers; SQLite allows one at a time.
	conn.SetMaxOpenConns(1)

	if _, err := conn.ExecContext(ctx, sqliteSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	slog.Info("tracker store initialised", "driver", "sqlite", "path", path)
	return &SQLiteStore{conn: conn, path: path}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

// Upsert inserts or updates the record for r.TicketID.
func (s *SQLiteStore) Upsert(ctx context.Context, r Record) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO migration_records (ticket_id, status, issue_key, reason, attachments, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ticket_id) DO UPDATE SET
			status      = excluded.status,
			issue_key   = excluded.issue_key,
			reason      = excluded.reason,
			attachments = excluded.attachments,
			updated_at  = excluded.updated_at`,
		r.TicketID, string(r.Status), r.IssueKey, r.Reason, r.Attachments, now, now)
	if err != nil {
		return fmt.Errorf("upsert ticket %d: %w", r.TicketID, err)
	}
	return nil
}

// Get retrieves the record for a ticket.
func (s *SQLiteStore) Get(ctx context.Context, ticketID int64) (*Record, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT ticket_id, status, issue_key, reason, attachments, created_at, updated_at
		FROM migration_records WHERE ticket_id = ?`, ticketID)
	r, err := scanSQLiteRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// ListByStatus returns every record in status, by ticket id.
func (s *SQLiteStore) ListByStatus(ctx context.Context, status Status) ([]Record, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT ticket_id, status, issue_key, reason, attachments, created_at, updated_at
		FROM migration_records WHERE status = ? ORDER BY ticket_id`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		r, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

// Counts returns the number of records per status.
func (s *SQLiteStore) Counts(ctx context.Context) (map[Status]int, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT status, COUNT(*) FROM migration_records GROUP BY status`)
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

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRecord(row scanner) (*Record, error) {
	var r Record
	var status, created, updated string
	if err := row.Scan(&r.TicketID, &status, &r.IssueKey, &r.Reason, &r.Attachments, &created, &updated); err != nil {
		return nil, err
	}
	r.Status = Status(status)
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	r.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return &r, nil
}
