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

// Package assembler converts one exported Freshdesk ticket, with its
// conversations and attachments, into a Jira issue.
package assembler

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/deskbridge/migrator/internal/formatter"
	"github.com/deskbridge/migrator/internal/mapper"
	"github.com/deskbridge/migrator/internal/mapping"
	"github.com/deskbridge/migrator/internal/models"
	"github.com/deskbridge/migrator/internal/transform"
)

// ErrNoMappingTable is returned when no mapping table has been loaded.
var ErrNoMappingTable = errors.New("no mapping table loaded")

const (
	DefaultProjectKey = "FTJM"
	DefaultIssueType  = "Task"
)

// metadataExcluded never appear in the metadata block: they are either markup
// or already rendered as the description section.
var metadataExcluded = append(append([]string(nil), mapper.HTMLFields...), "description_text")

// TableSource supplies the current mapping table.
type TableSource interface {
	Table() *mapping.Table
}

// Defaults are the placement fields every issue starts with.
type Defaults struct {
	ProjectKey string
	IssueType  string
	SourceName string
}

// Assembler builds issues. It is safe for concurrent use: each conversion
// gets its own Mapper and overflow pool.
type Assembler struct {
	tables     TableSource
	transforms *transform.Registry
	format     *formatter.Formatter
	defaults   Defaults
}

// New creates an Assembler. A nil registry or formatter selects the default.
func New(tables TableSource, transforms *transform.Registry, format *formatter.Formatter, defaults Defaults) *Assembler {
	if transforms == nil {
		transforms = transform.NewRegistry()
	}
	if format == nil {
		format = formatter.New(formatter.DefaultDelimiter)
	}
	if defaults.ProjectKey == "" {
		defaults.ProjectKey = DefaultProjectKey
	}
	if defaults.IssueType == "" {
		defaults.IssueType = DefaultIssueType
	}
	if defaults.SourceName == "" {
		defaults.SourceName = mapper.DefaultSourceName
	}
	return &Assembler{tables: tables, transforms: transforms, format: format, defaults: defaults}
}

// Defaults returns the placement defaults in use.
func (a *Assembler) Defaults() Defaults { return a.defaults }

func (a *Assembler) newMapper() (*mapper.Mapper, *mapping.Table, error) {
	var tbl *mapping.Table
	if a.tables != nil {
		tbl = a.tables.Table()
	}
	if tbl == nil {
		return nil, nil, ErrNoMappingTable
	}
	return mapper.New(mapper.Config{
		Table:      tbl,
		Transforms: a.transforms,
		Formatter:  a.format,
		SourceName: a.defaults.SourceName,
	}), tbl, nil
}

// Convert builds the issue for b. Missing conversations, attachments or
// directory entries degrade to empty sections and sentinels; only a missing
// mapping table is an error.
func (a *Assembler) Convert(b models.Bundle) (*models.Issue, error) {
	m, tbl, err := a.newMapper()
	if err != nil {
		return nil, err
	}
	dir := b.Directory

	issue := models.NewIssue(a.defaults.ProjectKey, a.defaults.IssueType)

	ticket := m.MapTicket(b.Ticket, dir)
	setAll(issue, ticket.Mapped)

	var body []string
	if text := b.Ticket.DescriptionText(); text != "" {
		body = append(body, formatter.Title("Description")+"\n"+text)
	}
	if meta := a.format.FormatFields(a.defaults.SourceName+" Ticket Metadata", ticket.Unmapped.Without(metadataExcluded...)); meta != "" {
		body = append(body, meta)
	}

	conv := m.MapConversations(b.Conversations, dir)
	setAll(issue, conv.Mapped)
	if !conv.Parent {
		if text := a.format.FormatConversations(b.Conversations, dir); text != "" {
			body = append(body, text)
		}
	}

	atts := b.AllAttachments()
	att := m.MapAttachments(atts, dir)
	setAll(issue, att.Mapped)
	if !att.Parent {
		if text := a.format.FormatAttachments(atts, dir); text != "" {
			body = append(body, text)
		}
	}

	if len(body) > 0 {
		alloc := m.Allocate(strings.Join(body, "\n\n"), mapper.Target{
			Section:   "Description",
			Primary:   tbl.BodyField,
			Dedicated: tbl.BodyOverflowFields,
			MaxLength: tbl.MaxFieldLength,
		})
		setAll(issue, alloc.Fields())
	}
	slog.Debug("ticket converted",
		"ticket_id", b.Ticket.ID(),
		"fields", len(issue.Fields),
		"pool_used", m.Pool().Used(),
		"pool_remaining", m.Pool().Remaining(),
	)
	return issue, nil
}

func setAll(issue *models.Issue, fields map[string]any) {
	for name, v := range fields {
		issue.SetField(name, v)
	}
}

// FieldSummary reports how much of a ticket the mapping table covers.
type FieldSummary struct {
	MappedFields   []string `json:"mapped_fields"`
	UnmappedFields []string `json:"unmapped_fields"`
	TotalFields    int      `json:"total_fields"`
	Coverage       float64  `json:"mapping_coverage"`
}

// Summary maps the ticket's own fields and reports coverage as mapped over
// total ticket fields.
func (a *Assembler) Summary(t models.Ticket, dir *models.Directory) (FieldSummary, error) {
	m, _, err := a.newMapper()
	if err != nil {
		return FieldSummary{}, err
	}
	res := m.MapTicket(t, dir)

	s := FieldSummary{
		MappedFields:   append([]string{}, res.MappedSources...),
		UnmappedFields: append([]string{}, res.Unmapped.Names()...),
		TotalFields:    len(t.Record),
	}
	if s.TotalFields > 0 {
		s.Coverage = float64(len(s.MappedFields)) / float64(s.TotalFields)
	}
	return s, nil
}
