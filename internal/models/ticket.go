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

package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Ticket is a helpdesk ticket as exported: an ordered mapping from field name
// to value. It is read-only input to the conversion.
type Ticket struct {
	Record
}

// ID returns the ticket id as a string, or "" when absent.
func (t Ticket) ID() string {
	v, ok := t.Get("id")
	if !ok || v == nil {
		return ""
	}
	return ValueString(v)
}

// Subject returns the ticket subject, or "" when absent.
func (t Ticket) Subject() string {
	v, _ := t.Get("subject")
	s, _ := v.(string)
	return s
}

// DescriptionText returns the plain-text narrative of the ticket.
func (t Ticket) DescriptionText() string {
	v, _ := t.Get("description_text")
	s, _ := v.(string)
	return s
}

// Conversation is a reply or note on a ticket.
type Conversation struct {
	ID        int64    `json:"id"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
	UserID    *int64   `json:"user_id"`
	Private   bool     `json:"private"`
	Incoming  bool     `json:"incoming"`
	ToEmails  []string `json:"to_emails"`
	FromEmail string   `json:"from_email"`
	CCEmails  []string `json:"cc_emails"`
	BCCEmails []string `json:"bcc_emails"`
	Body      string   `json:"body"`
	BodyText  string   `json:"body_text"`
}

// Fields returns the conversation as an ordered record. The HTML body is
// omitted because body_text always carries the same content.
func (c Conversation) Fields() Record {
	return Record{
		{Name: "id", Value: c.ID},
		{Name: "created_at", Value: c.CreatedAt},
		{Name: "updated_at", Value: c.UpdatedAt},
		{Name: "user_id", Value: optionalInt(c.UserID)},
		{Name: "private", Value: c.Private},
		{Name: "incoming", Value: c.Incoming},
		{Name: "to_emails", Value: c.ToEmails},
		{Name: "from_email", Value: c.FromEmail},
		{Name: "cc_emails", Value: c.CCEmails},
		{Name: "bcc_emails", Value: c.BCCEmails},
		{Name: "body_text", Value: c.BodyText},
	}
}

// Attachment is a file attached to a ticket or to one of its conversations.
// ConversationID is nil for direct ticket attachments.
type Attachment struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Size           int64  `json:"size"`
	ContentType    string `json:"content_type"`
	UserID         *int64 `json:"user_id"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
	ConversationID *int64 `json:"conversation_id"`
}

// Fields returns the attachment as an ordered record.
func (a Attachment) Fields() Record {
	return Record{
		{Name: "id", Value: a.ID},
		{Name: "name", Value: a.Name},
		{Name: "size", Value: a.Size},
		{Name: "content_type", Value: a.ContentType},
		{Name: "user_id", Value: optionalInt(a.UserID)},
		{Name: "created_at", Value: a.CreatedAt},
		{Name: "updated_at", Value: a.UpdatedAt},
		{Name: "conversation_id", Value: optionalInt(a.ConversationID)},
	}
}

// Bundle is everything the assembler needs to convert one ticket.
type Bundle struct {
	Ticket                  Ticket         `json:"ticket"`
	Conversations           []Conversation `json:"conversations"`
	TicketAttachments       []Attachment   `json:"ticket_attachments"`
	ConversationAttachments []Attachment   `json:"conversation_attachments"`
	Directory               *Directory     `json:"directory,omitempty"`
}

// AllAttachments returns ticket attachments followed by conversation
// attachments, each group in input order. The inputs are not modified.
func (b Bundle) AllAttachments() []Attachment {
	all := make([]Attachment, 0, len(b.TicketAttachments)+len(b.ConversationAttachments))
	all = append(all, b.TicketAttachments...)
	all = append(all, b.ConversationAttachments...)
	return all
}

// ValueString renders a scalar source value as text.
func ValueString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case []string:
		return strings.Join(x, ", ")
	case []any:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			parts = append(parts, ValueString(item))
		}
		return strings.Join(parts, ", ")
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

func optionalInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
