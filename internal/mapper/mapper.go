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

// Package mapper routes Freshdesk records to Jira destination fields using
// the mapping table, and packs oversized text into overflow fields.
//
// A Mapper owns the overflow pool for one ticket conversion. It is not safe
// for concurrent use; build one per ticket.
package mapper

import (
	"fmt"
	"strings"

	"github.com/deskbridge/migrator/internal/formatter"
	"github.com/deskbridge/migrator/internal/mapping"
	"github.com/deskbridge/migrator/internal/models"
	"github.com/deskbridge/migrator/internal/transform"
)

const (
	// DefaultSourceName labels the helpdesk in synthesized text.
	DefaultSourceName = "Freshdesk"

	// SummaryMaxLength is Jira's ceiling for the summary field.
	SummaryMaxLength = 255
)

// HTMLFields carry markup that always has a plain-text counterpart. They are
// neither mapped nor reported as unmapped.
var HTMLFields = []string{"description", "body", "structured_description"}

var sections = map[mapping.Category]string{
	mapping.TicketFields:       "Ticket Fields",
	mapping.ConversationFields: "Conversations",
	mapping.AttachmentFields:   "Attachments",
	mapping.UserFields:         "User Fields",
}

// Section returns the human-readable name used in continuation headers.
func Section(c mapping.Category) string {
	if s, ok := sections[c]; ok {
		return s
	}
	return string(c)
}

// Config holds the collaborators a Mapper needs. Table is required.
type Config struct {
	Table      *mapping.Table
	Transforms *transform.Registry
	Formatter  *formatter.Formatter
	SourceName string
}

// Mapper maps one ticket's data.
type Mapper struct {
	table      *mapping.Table
	transforms *transform.Registry
	format     *formatter.Formatter
	source     string
	pool       *OverflowPool
}

// Result is the outcome of mapping one category.
type Result struct {
	// Mapped holds destination field -> value.
	Mapped map[string]any
	// Unmapped holds the fields of a record that found no destination.
	Unmapped models.Record
	// UnmappedRecords holds list-shaped data with no parent mapping.
	UnmappedRecords []models.Record
	// MappedSources names the source fields that wrote at least one
	// destination value. A mapped field whose value is nil lands in Unmapped.
	MappedSources []string
	// Parent is set when the category went through a parent mapping.
	Parent bool
	// Dropped counts overflow chunks lost to field exhaustion.
	Dropped int
}

// New returns a Mapper with a fresh overflow pool.
func New(cfg Config) *Mapper {
	m := &Mapper{
		table:      cfg.Table,
		transforms: cfg.Transforms,
		format:     cfg.Formatter,
		source:     cfg.SourceName,
	}
	if m.transforms == nil {
		m.transforms = transform.NewRegistry()
	}
	if m.format == nil {
		m.format = formatter.New(formatter.DefaultDelimiter)
	}
	if m.source == "" {
		m.source = DefaultSourceName
	}
	if m.table != nil {
		m.pool = NewOverflowPool(m.table.AdditionalOverflowFields)
	}
	return m
}

// Pool returns the shared overflow pool.
func (m *Mapper) Pool() *OverflowPool { return m.pool }

// Reset returns every pool field, for reuse on another ticket.
func (m *Mapper) Reset() { m.pool.Reset() }

// Formatter returns the record formatter in use.
func (m *Mapper) Formatter() *formatter.Formatter { return m.format }

// Allocate spreads blob over target using the mapper's pool.
func (m *Mapper) Allocate(blob string, target Target) Allocation {
	return Allocate(blob, target, m.pool)
}

// MapTicket maps ticket fields and always sets the summary.
func (m *Mapper) MapTicket(t models.Ticket, dir *models.Directory) Result {
	res := m.MapRecord(mapping.TicketFields, t.Record, dir)
	res.Mapped[models.SummaryField] = m.Summary(t)
	return res
}

// Summary returns the issue title for t: the trimmed subject capped at
// SummaryMaxLength, or a placeholder naming the ticket.
func (m *Mapper) Summary(t models.Ticket) string {
	subject := strings.TrimSpace(t.Subject())
	if subject == "" {
		return fmt.Sprintf("%s Ticket #%s: No Subject Provided", m.source, t.ID())
	}
	return transform.Truncate(subject, SummaryMaxLength)
}

// MapRecord maps a single record of category c. Only a nil value suppresses
// a write; false, zero and empty strings are written.
func (m *Mapper) MapRecord(c mapping.Category, rec models.Record, dir *models.Directory) Result {
	res := Result{Mapped: make(map[string]any)}
	rec = rec.Without(HTMLFields...)

	if p, ok := m.table.Parent(c); ok {
		m.allocateParent(&res, c, p, m.format.FormatFields(Section(c), rec), dir)
		return res
	}

	for _, f := range rec {
		e, ok := m.table.Lookup(c, f.Name)
		if !ok {
			res.Unmapped = append(res.Unmapped, f)
			continue
		}
		written := false
		if v := m.transforms.Apply(e.Transform, f.Value, dir); v != nil {
			res.Mapped[e.Field] = v
			written = true
		}
		if e.SystemField != "" {
			if v := m.transforms.Apply(e.SystemTransform, f.Value, dir); v != nil {
				res.Mapped[e.SystemField] = v
				written = true
			}
		}
		if written {
			res.MappedSources = append(res.MappedSources, f.Name)
		} else {
			res.Unmapped = append(res.Unmapped, f)
		}
	}
	return res
}

// MapConversations maps a ticket's conversations as one category.
func (m *Mapper) MapConversations(convs []models.Conversation, dir *models.Directory) Result {
	recs := make([]models.Record, len(convs))
	for i, c := range convs {
		recs[i] = c.Fields()
	}
	return m.mapList(mapping.ConversationFields, recs, dir, func() string {
		return m.format.FormatConversations(convs, dir)
	})
}

// MapAttachments maps attachments as one category, in the order given.
func (m *Mapper) MapAttachments(atts []models.Attachment, dir *models.Directory) Result {
	recs := make([]models.Record, len(atts))
	for i, a := range atts {
		recs[i] = a.Fields()
	}
	return m.mapList(mapping.AttachmentFields, recs, dir, func() string {
		return m.format.FormatAttachments(atts, dir)
	})
}

// MapRecords maps a list of generic records, such as user profiles.
func (m *Mapper) MapRecords(c mapping.Category, recs []models.Record, dir *models.Directory) Result {
	return m.mapList(c, recs, dir, func() string {
		return m.format.FormatRecords(Section(c), recs)
	})
}

func (m *Mapper) mapList(c mapping.Category, recs []models.Record, dir *models.Directory, render func() string) Result {
	res := Result{Mapped: make(map[string]any)}
	if len(recs) == 0 {
		return res
	}

	if p, ok := m.table.Parent(c); ok {
		m.allocateParent(&res, c, p, render(), dir)
		return res
	}

	res.UnmappedRecords = make([]models.Record, len(recs))
	for i, rec := range recs {
		res.UnmappedRecords[i] = rec.Without(HTMLFields...)
	}
	return res
}

func (m *Mapper) allocateParent(res *Result, c mapping.Category, p mapping.ParentEntry, blob string, dir *models.Directory) {
	res.Parent = true
	if p.Transform != "" {
		blob = models.ValueString(m.transforms.Apply(p.Transform, blob, dir))
	}
	if blob == "" {
		return
	}
	alloc := m.Allocate(blob, Target{
		Section:   Section(c),
		Primary:   p.Field,
		Dedicated: p.OverflowFields,
		MaxLength: m.table.LimitFor(p),
	})
	for field, v := range alloc.Fields() {
		res.Mapped[field] = v
	}
	res.Dropped = alloc.Dropped
}
