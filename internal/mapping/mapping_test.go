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
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type knownSet map[string]bool

func (k knownSet) Has(name string) bool { return k[name] }

const sampleTable = `
max_field_length: 100
body_overflow_fields: [body_1]
additional_overflow_fields: [extra_1, extra_2]
ticket_fields:
  priority:
    jira_field: customfield_1
    mapper_function: map_priority
  responder_id:
    jira_field: customfield_2
    mapper_function: map_user_from_id
    system_field: assignee
    system_mapper_function: map_user_to_system_field
  product_id: null
  group_id:
    jira_field: null
parent_fields:
  conversation_fields:
    jira_field: conv_1
    overflow_fields: [conv_2]
    max_length: 50
`

func TestParse(t *testing.T) {
	tbl, err := Parse([]byte(sampleTable), nil)
	require.NoError(t, err)

	assert.Equal(t, 100, tbl.MaxFieldLength)
	assert.Equal(t, DefaultBodyField, tbl.BodyField)
	assert.Equal(t, []string{"body_1"}, tbl.BodyOverflowFields)
	assert.Equal(t, []string{"extra_1", "extra_2"}, tbl.AdditionalOverflowFields)

	e, ok := tbl.Lookup(TicketFields, "responder_id")
	require.True(t, ok)
	assert.Equal(t, Entry{
		Field:           "customfield_2",
		Transform:       "map_user_from_id",
		SystemField:     "assignee",
		SystemTransform: "map_user_to_system_field",
	}, e)

	_, ok = tbl.Lookup(TicketFields, "product_id")
	assert.False(t, ok, "null entry leaves the field unmapped")
	_, ok = tbl.Lookup(TicketFields, "group_id")
	assert.False(t, ok, "entry without jira_field leaves the field unmapped")
	_, ok = tbl.Lookup(TicketFields, "subject")
	assert.False(t, ok)
	assert.Equal(t, []string{"group_id", "priority", "product_id", "responder_id"}, tbl.Fields(TicketFields))

	p, ok := tbl.Parent(ConversationFields)
	require.True(t, ok)
	assert.Equal(t, "conv_1", p.Field)
	assert.Equal(t, 50, tbl.LimitFor(p))
	_, ok = tbl.Parent(AttachmentFields)
	assert.False(t, ok)
	assert.Equal(t, 100, tbl.LimitFor(ParentEntry{Field: "x"}))
}

func TestParse_JSON(t *testing.T) {
	doc := `{"ticket_fields": {"status": {"jira_field": "customfield_9", "mapper_function": "map_status"}}}`
	tbl, err := Parse([]byte(doc), nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultMaxFieldLength, tbl.MaxFieldLength)
	e, ok := tbl.Lookup(TicketFields, "status")
	require.True(t, ok)
	assert.Equal(t, "map_status", e.Transform)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", ""},
		{"malformed", "ticket_fields: [unclosed"},
		{"no mappings", "max_field_length: 10"},
		{"unknown key", "ticket_feilds:\n  id: {jira_field: x}"},
		{"negative length", "max_field_length: -1\nticket_fields:\n  id: {jira_field: x}"},
		{"unknown parent category", "parent_fields:\n  widgets: {jira_field: x}"},
		{"parent without field", "parent_fields:\n  conversation_fields: {max_length: 10}"},
		{"shared overflow field", "additional_overflow_fields: [a]\nparent_fields:\n  conversation_fields: {jira_field: c, overflow_fields: [a]}"},
		{"body field in pool", "additional_overflow_fields: [description]\nticket_fields:\n  id: {jira_field: x}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := Parse([]byte(tt.doc), nil)
			require.Error(t, err)
			assert.Nil(t, tbl)
			assert.True(t, errors.Is(err, ErrInvalidTable), "got %v", err)
		})
	}
}

func TestParse_UnknownTransformIsAccepted(t *testing.T) {
	doc := "ticket_fields:\n  id: {jira_field: x, mapper_function: map_everything}"
	tbl, err := Parse([]byte(doc), knownSet{"map_priority": true})
	require.NoError(t, err)

	e, ok := tbl.Lookup(TicketFields, "id")
	require.True(t, ok)
	assert.Equal(t, "map_everything", e.Transform)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTable)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_ShippedTable(t *testing.T) {
	known := knownSet{}
	for _, n := range []string{
		"map_id_to_string", "map_priority", "format_date", "map_user_from_id",
		"map_user_to_system_field", "map_status", "map_source", "extract_emails",
		"extract_tags", "map_boolean", "map_number", "map_custom_fields", "format_file_size",
	} {
		known[n] = true
	}

	tbl, err := Load(filepath.Join("..", "..", "config", "field_mapping.yaml"), known)
	require.NoError(t, err)

	_, ok := tbl.Parent(ConversationFields)
	assert.True(t, ok)
	assert.Contains(t, tbl.Destinations(), "description")
	assert.Contains(t, tbl.Destinations(), "assignee")
}

func TestSource_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ticket_fields:\n  id: {jira_field: first}"), 0o600))

	src, err := NewSource(path, nil)
	require.NoError(t, err)
	assert.Equal(t, path, src.Path())
	e, _ := src.Table().Lookup(TicketFields, "id")
	assert.Equal(t, "first", e.Field)

	// A broken file keeps the previous table in service.
	require.NoError(t, os.WriteFile(path, []byte("ticket_fields: [broken"), 0o600))
	err = src.Reload()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTable)
	e, _ = src.Table().Lookup(TicketFields, "id")
	assert.Equal(t, "first", e.Field)

	require.NoError(t, os.WriteFile(path, []byte("ticket_fields:\n  id: {jira_field: second}"), 0o600))
	require.NoError(t, src.Reload())
	e, _ = src.Table().Lookup(TicketFields, "id")
	assert.Equal(t, "second", e.Field)
}

func TestNewSource_FailsOnBadTable(t *testing.T) {
	_, err := NewSource(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.ErrorIs(t, err, ErrInvalidTable)
}

func TestStatic(t *testing.T) {
	tbl, err := Parse([]byte(sampleTable), nil)
	require.NoError(t, err)

	src := Static(tbl)
	require.NoError(t, src.Reload())
	assert.Same(t, tbl, src.Table())
	assert.Equal(t, "", src.Path())
}
