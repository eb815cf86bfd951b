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
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrInvalidTable wraps every failure to read or validate a mapping table.
// It is a configuration error and fatal to a run.
var ErrInvalidTable = errors.New("invalid mapping table")

// Known reports whether a transform name is registered.
type Known interface {
	Has(name string) bool
}

// rawTable mirrors the document structure for unmarshalling.
type rawTable struct {
	MaxFieldLength           int                    `yaml:"max_field_length"`
	BodyField                string                 `yaml:"body_field"`
	BodyOverflowFields       []string               `yaml:"body_overflow_fields"`
	AdditionalOverflowFields []string               `yaml:"additional_overflow_fields"`
	TicketFields             map[string]*Entry      `yaml:"ticket_fields"`
	ConversationFields       map[string]*Entry      `yaml:"conversation_fields"`
	AttachmentFields         map[string]*Entry      `yaml:"attachment_fields"`
	UserFields               map[string]*Entry      `yaml:"user_fields"`
	ParentFields             map[string]ParentEntry `yaml:"parent_fields"`
}

// Load reads and validates the table at path.
func Load(path string, known Known) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrInvalidTable, path, err)
	}
	t, err := Parse(data, known)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return t, nil
}

// Parse decodes a YAML or JSON table. Unknown transform names and duplicate
// destinations are logged but accepted; a duplicated destination is written
// by whichever source field is processed last. Known may be nil.
func Parse(data []byte, known Known) (*Table, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var raw rawTable
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidTable)
		}
		return nil, fmt.Errorf("%w: parse: %w", ErrInvalidTable, err)
	}

	t := &Table{
		MaxFieldLength:           raw.MaxFieldLength,
		BodyField:                raw.BodyField,
		BodyOverflowFields:       raw.BodyOverflowFields,
		AdditionalOverflowFields: raw.AdditionalOverflowFields,
		entries:                  make(map[Category]map[string]Entry, len(Categories)),
		parents:                  make(map[Category]ParentEntry, len(raw.ParentFields)),
	}
	if t.MaxFieldLength == 0 {
		t.MaxFieldLength = DefaultMaxFieldLength
	}
	if t.BodyField == "" {
		t.BodyField = DefaultBodyField
	}
	if t.MaxFieldLength < 0 {
		return nil, fmt.Errorf("%w: max_field_length must be positive, got %d", ErrInvalidTable, t.MaxFieldLength)
	}

	for c, entries := range map[Category]map[string]*Entry{
		TicketFields:       raw.TicketFields,
		ConversationFields: raw.ConversationFields,
		AttachmentFields:   raw.AttachmentFields,
		UserFields:         raw.UserFields,
	} {
		m := make(map[string]Entry, len(entries))
		for name, e := range entries {
			if e == nil {
				m[name] = Entry{}
				continue
			}
			m[name] = *e
		}
		t.entries[c] = m
	}

	for name, p := range raw.ParentFields {
		c := Category(name)
		if !c.Valid() {
			return nil, fmt.Errorf("%w: parent_fields: unknown category %q", ErrInvalidTable, name)
		}
		if p.Field == "" {
			return nil, fmt.Errorf("%w: parent_fields.%s: jira_field is required", ErrInvalidTable, name)
		}
		if p.MaxLength < 0 {
			return nil, fmt.Errorf("%w: parent_fields.%s: max_length must be positive, got %d", ErrInvalidTable, name, p.MaxLength)
		}
		t.parents[c] = p
	}

	if t.mappingCount() == 0 {
		return nil, fmt.Errorf("%w: no field mappings defined", ErrInvalidTable)
	}
	if err := t.checkOverflowFields(); err != nil {
		return nil, err
	}
	t.warn(known)
	return t, nil
}

func (t *Table) mappingCount() int {
	n := len(t.parents)
	for _, entries := range t.entries {
		n += len(entries)
	}
	return n
}

// checkOverflowFields rejects a destination that appears in more than one
// overflow chain, since two chunks would land in the same field.
func (t *Table) checkOverflowFields() error {
	owner := make(map[string]string)
	claim := func(where string, fields ...string) error {
		for _, f := range fields {
			if f == "" {
				return fmt.Errorf("%w: %s: empty field id", ErrInvalidTable, where)
			}
			if prev, ok := owner[f]; ok {
				return fmt.Errorf("%w: field %q used by both %s and %s", ErrInvalidTable, f, prev, where)
			}
			owner[f] = where
		}
		return nil
	}

	if err := claim("body_field", t.BodyField); err != nil {
		return err
	}
	if err := claim("body_overflow_fields", t.BodyOverflowFields...); err != nil {
		return err
	}
	if err := claim("additional_overflow_fields", t.AdditionalOverflowFields...); err != nil {
		return err
	}
	for _, c := range Categories {
		p, ok := t.parents[c]
		if !ok {
			continue
		}
		where := "parent_fields." + string(c)
		if err := claim(where, p.Field); err != nil {
			return err
		}
		if err := claim(where+".overflow_fields", p.OverflowFields...); err != nil {
			return err
		}
	}
	return nil
}

// warn logs unresolvable transform names and per-field destination
// collisions.
func (t *Table) warn(known Known) {
	for _, c := range Categories {
		dests := make(map[string][]string)
		for _, name := range t.Fields(c) {
			e := t.entries[c][name]
			if e.Field != "" {
				dests[e.Field] = append(dests[e.Field], name)
			}
			if known == nil {
				continue
			}
			for _, fn := range []string{e.Transform, e.SystemTransform} {
				if fn != "" && !known.Has(fn) {
					slog.Warn("unknown transform in mapping table, values pass through unchanged",
						"category", c,
						"field", name,
						"transform", fn,
					)
				}
			}
		}

		dups := make([]string, 0)
		for dest, sources := range dests {
			if len(sources) > 1 {
				dups = append(dups, dest)
			}
		}
		sort.Strings(dups)
		for _, dest := range dups {
			slog.Warn("destination mapped from several source fields, last one wins",
				"category", c,
				"destination", dest,
				"sources", dests[dest],
			)
		}

		if p, ok := t.parents[c]; ok && known != nil && p.Transform != "" && !known.Has(p.Transform) {
			slog.Warn("unknown transform in parent mapping",
				"category", c,
				"transform", p.Transform,
			)
		}
	}
}
