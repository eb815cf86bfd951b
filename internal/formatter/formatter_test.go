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

package formatter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskbridge/migrator/internal/models"
)

func ptr(v int64) *int64 { return &v }

func testDirectory() *models.Directory {
	return &models.Directory{
		Agents: map[string]models.Agent{
			"7": {ID: 7, Contact: models.Contact{Name: "Ann Agent", Email: "ann@support.example"}},
		},
		Contacts: map[string]models.Contact{
			"7": {ID: 7, Email: "ann@personal.example"},
			"9": {ID: 9, Email: "cus@example.com"},
		},
	}
}

func TestFormatConversations(t *testing.T) {
	f := New(DefaultDelimiter)
	convs := []models.Conversation{
		{
			ID: 101, CreatedAt: "2024-01-01T10:00:00Z", UpdatedAt: "2024-01-01T10:05:00Z",
			UserID: ptr(9), ToEmails: []string{"help@example.com"}, FromEmail: "cus@example.com",
			BodyText: "My printer is on fire",
		},
		{
			ID: 102, CreatedAt: "2024-01-02T09:00:00Z", UpdatedAt: "2024-01-02T09:00:00Z",
			UserID: ptr(7), Private: true, CCEmails: []string{"a@x.com", "b@x.com"},
			BodyText: "Escalating.",
		},
	}

	want := strings.Join([]string{
		"**— Conversations —**",
		"created_at|updated_at|conversation_id|user_id|private|to_email|from_email|cc_email|bcc_email",
		"2024-01-01T10:00:00Z|2024-01-01T10:05:00Z|101|cus@example.com|public|help@example.com|cus@example.com|N/A|N/A",
		"",
		"My printer is on fire",
		"---",
		"",
		"2024-01-02T09:00:00Z|2024-01-02T09:00:00Z|102|ann@support.example|private|N/A|N/A|a@x.com, b@x.com|N/A",
		"",
		"Escalating.",
		"---",
		"",
		"",
	}, "\n")

	assert.Equal(t, want, f.FormatConversations(convs, testDirectory()))
	assert.Equal(t, 2, strings.Count(f.FormatConversations(convs, testDirectory()), RecordSeparator))
}

func TestFormatConversations_UnresolvedActor(t *testing.T) {
	f := New(DefaultDelimiter)
	out := f.FormatConversations([]models.Conversation{{ID: 1, UserID: ptr(404)}, {ID: 2}}, nil)

	lines := strings.Split(out, "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	cols := strings.Split(lines[2], "|")
	require.Len(t, cols, len(conversationColumns))
	assert.Equal(t, NotAvailable, cols[3])
	assert.Contains(t, out, "|2|NA|public|")
}

func TestFormatConversations_Empty(t *testing.T) {
	assert.Equal(t, "", New(DefaultDelimiter).FormatConversations(nil, nil))
}

func TestFormatAttachments(t *testing.T) {
	f := New(DefaultDelimiter)
	atts := []models.Attachment{
		{ID: 5, Name: "invoice.pdf", Size: 2048, UserID: ptr(9), CreatedAt: "c1", UpdatedAt: "u1"},
		{ID: 6, Name: "screen.png", Size: 10, UserID: ptr(7), CreatedAt: "c2", UpdatedAt: "u2", ConversationID: ptr(102)},
	}

	want := strings.Join([]string{
		"**— Attachment Details —**",
		"created_at|updated_at|attachment_id|file_name|size|user_id|conversation_id",
		"c1|u1|5|5_invoice.pdf|2048|cus@example.com|NA",
		"c2|u2|6|6_screen.png|10|ann@support.example|102",
		"",
	}, "\n")
	assert.Equal(t, want, f.FormatAttachments(atts, testDirectory()))
}

func TestFormat_EscapesDelimiter(t *testing.T) {
	f := New(DefaultDelimiter)
	out := f.FormatAttachments([]models.Attachment{{ID: 1, Name: "a|b.txt", CreatedAt: "x\ny"}}, nil)

	assert.Contains(t, out, `1_a\|b.txt`)
	assert.Contains(t, out, "x y|")
	assert.Equal(t, ":", New(':').Delimiter())
}

func TestFormatFields(t *testing.T) {
	f := New(DefaultDelimiter)
	rec := models.Record{
		{Name: "fr_escalated", Value: false},
		{Name: "product_id", Value: nil},
		{Name: "tags", Value: []any{"vip", "billing"}},
		{Name: "note", Value: ""},
		{Name: "count", Value: 0},
	}

	assert.Equal(t, "**— Ticket Fields —**\nfr_escalated: false\ntags: vip, billing\ncount: 0", f.FormatFields("Ticket Fields", rec))
	assert.Equal(t, "", f.FormatFields("Ticket Fields", models.Record{{Name: "x", Value: nil}}))
}

func TestFormatRecords(t *testing.T) {
	f := New(DefaultDelimiter)
	out := f.FormatRecords("User Fields", []models.Record{
		{{Name: "name", Value: "Ann"}},
		{{Name: "name", Value: "Bob"}, {Name: "email", Value: nil}},
	})

	assert.Equal(t, "**— User Fields —**\nname: Ann\n"+RecordSeparator+"name: Bob\n"+RecordSeparator, out)
	assert.Equal(t, "", f.FormatRecords("User Fields", nil))
}

func TestAttachmentFileName(t *testing.T) {
	assert.Equal(t, "42_report final.docx", AttachmentFileName(models.Attachment{ID: 42, Name: "report final.docx"}))
}
