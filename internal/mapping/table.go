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

// Package mapping holds the field-mapping table that routes Freshdesk data to
// Jira destination fields, and the loader that reads it from YAML or JSON.
package mapping

import "sort"

// Category is a namespace within the mapping table.
type Category string

const (
	TicketFields       Category = "ticket_fields"
	ConversationFields Category = "conversation_fields"
	AttachmentFields   Category = "attachment_fields"
	UserFields         Category = "user_fields"
)

// Categories lists every category in table order.
var Categories = []Category{TicketFields, ConversationFields, AttachmentFields, UserFields}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

const (
	DefaultMaxFieldLength = 32000
	DefaultBodyField      = "description"
)

// Entry maps one source field to a destination field. An entry without a
// destination leaves the source field unmapped.
type Entry struct {
	Field           string `yaml:"jira_field"`
	Transform       string `yaml:"mapper_function"`
	SystemField     string `yaml:"system_field"`
	SystemTransform string `yaml:"system_mapper_function"`
}

// Mapped reports whether the entry names a destination.
func (e Entry) Mapped() bool { return e.Field != "" }

// ParentEntry redirects a whole category into one destination field and its
// overflow chain.
type ParentEntry struct {
	Field          string   `yaml:"jira_field"`
	Transform      string   `yaml:"mapper_function"`
	OverflowFields []string `yaml:"overflow_fields"`
	MaxLength      int      `yaml:"max_length"`
}

// Table is an immutable, validated mapping table.
type Table struct {
	MaxFieldLength           int
	BodyField                string
	BodyOverflowFields       []string
	AdditionalOverflowFields []string

	entries map[Category]map[string]Entry
	parents map[Category]ParentEntry
}

// Lookup returns the entry for a source field, or false when the field has no
// destination in category c.
func (t *Table) Lookup(c Category, name string) (Entry, bool) {
	if t == nil {
		return Entry{}, false
	}
	e, ok := t.entries[c][name]
	if !ok || !e.Mapped() {
		return Entry{}, false
	}
	return e, true
}

// Parent returns the parent-field entry for category c, if any.
func (t *Table) Parent(c Category) (ParentEntry, bool) {
	if t == nil {
		return ParentEntry{}, false
	}
	p, ok := t.parents[c]
	return p, ok
}

// LimitFor returns the per-field length limit for a parent entry.
func (t *Table) LimitFor(p ParentEntry) int {
	if p.MaxLength > 0 {
		return p.MaxLength
	}
	return t.MaxFieldLength
}

// Fields returns the sorted source field names configured for category c,
// including entries without a destination.
func (t *Table) Fields(c Category) []string {
	if t == nil {
		return nil
	}
	names := make([]string, 0, len(t.entries[c]))
	for name := range t.entries[c] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Destinations returns every destination field the table can write, sorted.
func (t *Table) Destinations() []string {
	if t == nil {
		return nil
	}
	seen := map[string]bool{t.BodyField: true}
	add := func(names ...string) {
		for _, n := range names {
			if n != "" {
				seen[n] = true
			}
		}
	}
	add(t.BodyOverflowFields...)
	add(t.AdditionalOverflowFields...)
	for _, entries := range t.entries {
		for _, e := range entries {
			add(e.Field, e.SystemField)
		}
	}
	for _, p := range t.parents {
		add(p.Field)
		add(p.OverflowFields...)
	}

	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
