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

// Package formatter renders conversations, attachments and loose ticket
// fields as the plain-text blocks that end up in Jira text fields.
package formatter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/deskbridge/migrator/internal/models"
)

const (
	// DefaultDelimiter separates columns on header and value lines.
	DefaultDelimiter = '|'

	// RecordSeparator closes every conversation record. The overflow
	// allocator prefers to break chunks right after it.
	RecordSeparator = "\n---\n\n"

	// NotAvailable marks an unresolved actor or an absent conversation id.
	NotAvailable = "NA"

	// Empty stands in for an empty column value.
	Empty = "N/A"
)

var (
	conversationColumns = []string{
		"created_at", "updated_at", "conversation_id", "user_id", "private",
		"to_email", "from_email", "cc_email", "bcc_email",
	}
	attachmentColumns = []string{
		"created_at", "updated_at", "attachment_id", "file_name", "size",
		"user_id", "conversation_id",
	}
)

// Title renders a section title line.
func Title(section string) string {
	return "**— " + section + " —**"
}

// Formatter renders records with a fixed column delimiter.
type Formatter struct {
	delim   string
	escaped string
}

// New returns a Formatter using delim between columns. A literal delim inside a
// value is written as a backslash followed by delim.
func New(delim rune) *Formatter {
	d := string(delim)
	return &Formatter{delim: d, escaped: `\` + d}
}

// Delimiter returns the column delimiter.
func (f *Formatter) Delimiter() string { return f.delim }

// FormatConversations renders conversations in input order. It returns "" for
// an empty list.
func (f *Formatter) FormatConversations(convs []models.Conversation, dir *models.Directory) string {
	if len(convs) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(Title("Conversations"))
	b.WriteByte('\n')
	b.WriteString(strings.Join(conversationColumns, f.delim))
	b.WriteByte('\n')

	for _, c := range convs {
		b.WriteString(f.line(
			c.CreatedAt,
			c.UpdatedAt,
			strconv.FormatInt(c.ID, 10),
			actor(dir, c.UserID),
			privacy(c.Private),
			strings.Join(c.ToEmails, ", "),
			c.FromEmail,
			strings.Join(c.CCEmails, ", "),
			strings.Join(c.BCCEmails, ", "),
		))
		b.WriteString("\n\n")
		b.WriteString(c.BodyText)
		b.WriteString(RecordSeparator)
	}
	return b.String()
}

// FormatAttachments renders one line per attachment in input order. It
// returns "" for an empty list.
func (f *Formatter) FormatAttachments(atts []models.Attachment, dir *models.Directory) string {
	if len(atts) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(Title("Attachment Details"))
	b.WriteByte('\n')
	b.WriteString(strings.Join(attachmentColumns, f.delim))
	b.WriteByte('\n')

	for _, a := range atts {
		conv := NotAvailable
		if a.ConversationID != nil {
			conv = strconv.FormatInt(*a.ConversationID, 10)
		}
		b.WriteString(f.line(
			a.CreatedAt,
			a.UpdatedAt,
			strconv.FormatInt(a.ID, 10),
			AttachmentFileName(a),
			strconv.FormatInt(a.Size, 10),
			actor(dir, a.UserID),
			conv,
		))
		b.WriteByte('\n')
	}
	return b.String()
}

// FormatFields renders a key: value block under a section title, skipping
// nil and empty values. It returns "" when nothing is left to render.
func (f *Formatter) FormatFields(section string, rec models.Record) string {
	lines := make([]string, 0, len(rec)+1)
	lines = append(lines, Title(section))
	for _, field := range rec {
		value := models.ValueString(field.Value)
		if field.Value == nil || value == "" {
			continue
		}
		lines = append(lines, field.Name+": "+value)
	}
	if len(lines) == 1 {
		return ""
	}
	return strings.Join(lines, "\n")
}

// FormatRecords renders a list of generic records, one key: value block per
// record, each closed by RecordSeparator.
func (f *Formatter) FormatRecords(section string, recs []models.Record) string {
	if len(recs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(Title(section))
	b.WriteByte('\n')
	for _, rec := range recs {
		for _, field := range rec {
			value := models.ValueString(field.Value)
			if field.Value == nil || value == "" {
				continue
			}
			b.WriteString(field.Name + ": " + value + "\n")
		}
		b.WriteString(RecordSeparator)
	}
	return b.String()
}

// AttachmentFileName is the name an attachment is rendered and uploaded
// under.
func AttachmentFileName(a models.Attachment) string {
	return fmt.Sprintf("%d_%s", a.ID, a.Name)
}

func (f *Formatter) line(values ...string) string {
	cols := make([]string, len(values))
	for i, v := range values {
		cols[i] = f.cell(v)
	}
	return strings.Join(cols, f.delim)
}

func (f *Formatter) cell(v string) string {
	v = strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(v, "\r", " "), "\n", " "))
	if v == "" {
		return Empty
	}
	return strings.ReplaceAll(v, f.delim, f.escaped)
}

func actor(dir *models.Directory, userID *int64) string {
	if id, ok := dir.LookupID(userID); ok {
		return id.Email
	}
	return NotAvailable
}

func privacy(private bool) string {
	if private {
		return "private"
	}
	return "public"
}
