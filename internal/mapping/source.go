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

package mapping

import (
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Source holds the current table for a file and swaps it atomically on
// Reload. Readers never observe a partially loaded table.
type Source struct {
	path  string
	known Known
	table atomic.Pointer[Table]
}

// NewSource loads path once and returns a Source serving it.
func NewSource(path string, known Known) (*Source, error) {
	s := &Source{path: path, known: known}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Static wraps an already loaded table. Reload on a static source is a no-op.
func Static(t *Table) *Source {
	s := &Source{}
	s.table.Store(t)
	return s
}

// Table returns the current table.
func (s *Source) Table() *Table {
	return s.table.Load()
}

// Path returns the file backing the source, or "" for a static source.
func (s *Source) Path() string {
	return s.path
}

// Reload re-reads the file. The previous table stays in place on failure.
func (s *Source) Reload() error {
	if s.path == "" {
		return nil
	}
	t, err := Load(s.path, s.known)
	if err != nil {
		return fmt.Errorf("reload mapping table: %w", err)
	}
	s.table.Store(t)
	slog.Info("mapping table loaded",
		"path", s.path,
		"max_field_length", t.MaxFieldLength,
		"destinations", len(t.Destinations()),
	)
	return nil
}
