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

package transform

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskbridge/migrator/internal/models"
)

func TestApply_PriorityLabels(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, "High", r.Apply(MapPriority, 3, nil))
	assert.Equal(t, "High", r.Apply(MapPriority, json.Number("3"), nil))
	assert.Equal(t, "Medium", r.Apply(MapPriority, 99, nil))
	assert.Equal(t, "Medium", r.Apply(MapPriority, "urgent-ish", nil))
	assert.Equal(t, "Urgent", r.Apply(MapPriority, 4.0, nil))
}

func TestApply_StatusAndSourceFallbacks(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, "Open", r.Apply(MapStatus, 2, nil))
	assert.Equal(t, "Status_42", r.Apply(MapStatus, 42, nil))
	assert.Equal(t, "Email", r.Apply(MapSource, json.Number("1"), nil))
	assert.Equal(t, "Source_99", r.Apply(MapSource, 99, nil))
}

func TestApply_UnknownNamePassesThrough(t *testing.T) {
	r := NewRegistry()
	value := map[string]any{"k": 1}

	assert.Equal(t, value, r.Apply("no_such_transform", value, nil))
	assert.Equal(t, "raw", r.Apply("", "raw", nil))
}

func TestApply_FailureKeepsOriginal(t *testing.T) {
	r := NewRegistry()
	r.funcs["explodes"] = func(any, *models.Directory) (any, error) { panic("boom") }
	r.funcs["errors"] = func(any, *models.Directory) (any, error) { return nil, errors.New("bad") }

	assert.Equal(t, 7, r.Apply("explodes", 7, nil))
	assert.Equal(t, "x", r.Apply("errors", "x", nil))

	// clean_html rejects non-strings; the value survives untouched.
	assert.Equal(t, 12, r.Apply(CleanHTML, 12, nil))
}

func TestApply_ExtractEmails(t *testing.T) {
	r := NewRegistry()

	got := r.Apply(ExtractEmails, []any{"a@x.com", "'Bob' <b@x.com>"}, nil).(string)
	assert.Contains(t, got, "a@x.com")
	assert.Contains(t, got, "b@x.com")
	assert.NotContains(t, got, "Bob")
	assert.Equal(t, "a@x.com, b@x.com", got)

	assert.Equal(t, "c@x.com", r.Apply(ExtractEmails, "  c@x.com ", nil))
	assert.Equal(t, "d@x.com", r.Apply(ExtractEmails, []string{"Dee Dee <d@x.com>"}, nil))
	assert.Equal(t, "", r.Apply(ExtractEmails, nil, nil))
}

func TestApply_BooleanNormalizer(t *testing.T) {
	r := NewRegistry()

	inputs := []any{true, "1", "yes", 0, "false", nil}
	want := []string{"true", "true", "true", "false", "false", "false"}

	for i, in := range inputs {
		got := r.Apply(MapBoolean, in, nil)
		assert.Equal(t, want[i], got, "input %#v", in)
		// Output is in the transform's own domain; applying again is stable.
		assert.Equal(t, got, r.Apply(MapBoolean, got, nil), "idempotence for %#v", in)
	}

	assert.Equal(t, "true", r.Apply(MapBoolean, "ON", nil))
	assert.Equal(t, "true", r.Apply(MapBoolean, json.Number("2"), nil))
	assert.Equal(t, "false", r.Apply(MapBoolean, []string{"x"}, nil))
}

func TestApply_CleanHTML(t *testing.T) {
	r := NewRegistry()

	got := r.Apply(CleanHTML, "<div>Hello <b>World</b></div>\n\n<p>Second   line</p><script>alert(1)</script>", nil)
	assert.Equal(t, "Hello World Second line", got)
	assert.Equal(t, "Tom & Jerry", r.Apply(CleanHTML, "<p>Tom &amp; Jerry</p>", nil))
	assert.Equal(t, "", r.Apply(CleanHTML, nil, nil))
}

func TestApply_FormatDate(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, "2024-03-05 14:07:09", r.Apply(FormatDate, "2024-03-05T14:07:09Z", nil))
	assert.Equal(t, "2024-03-05 14:07:09", r.Apply(FormatDate, "2024-03-05T14:07:09+05:30", nil))
	assert.Equal(t, "2024-03-05 00:00:00", r.Apply(FormatDate, "2024-03-05", nil))
	assert.Equal(t, "next tuesday", r.Apply(FormatDate, "next tuesday", nil))
	assert.Equal(t, "", r.Apply(FormatDate, nil, nil))
}

func TestApply_ListsAndText(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, "a, b, 3", r.Apply(JoinList, []any{"a", "b", json.Number("3")}, nil))
	assert.Equal(t, "vip, billing", r.Apply(ExtractTags, []string{"vip", "billing"}, nil))
	assert.Equal(t, "", r.Apply(JoinList, nil, nil))

	long := strings.Repeat("x", DefaultTruncateLength+10)
	got := r.Apply(TruncateText, long, nil).(string)
	assert.Len(t, got, DefaultTruncateLength)
	assert.True(t, strings.HasSuffix(got, Ellipsis))
	assert.Equal(t, "short", r.Apply(TruncateText, "short", nil))
	assert.Equal(t, "ab...", Truncate("abcdefgh", 5))
}

func TestApply_Numbers(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, "12", r.Apply(MapNumber, json.Number("12"), nil))
	assert.Equal(t, "3", r.Apply(MapNumber, 3.7, nil))
	assert.Equal(t, "", r.Apply(MapNumber, "n/a", nil))
	assert.Equal(t, "", r.Apply(MapNumber, nil, nil))

	assert.Equal(t, "1234567890123", r.Apply(MapIDToString, json.Number("1234567890123"), nil))
	assert.Equal(t, "", r.Apply(MapIDToString, nil, nil))
}

func TestApply_FileSize(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, "0 B", r.Apply(FormatFileSize, 0, nil))
	assert.Equal(t, "0 B", r.Apply(FormatFileSize, nil, nil))
	assert.Equal(t, "500.0 B", r.Apply(FormatFileSize, 500, nil))
	assert.Equal(t, "1.5 KB", r.Apply(FormatFileSize, json.Number("1536"), nil))
	assert.Equal(t, "2.0 MB", r.Apply(FormatFileSize, 2*1024*1024, nil))
	assert.Equal(t, "1.0 TB", r.Apply(FormatFileSize, int64(1)<<40, nil))
}

func TestApply_CustomFields(t *testing.T) {
	r := NewRegistry()

	got := r.Apply(MapCustomFields, map[string]any{"cf_region": "EU", "cf_empty": "", "cf_tier": json.Number("2"), "cf_nil": nil}, nil)
	assert.Equal(t, "cf_region: EU; cf_tier: 2", got)
	assert.Equal(t, "", r.Apply(MapCustomFields, "not a map", nil))
}

func TestApply_IdentityTransforms(t *testing.T) {
	r := NewRegistry()
	dir := &models.Directory{
		Agents:   map[string]models.Agent{"11": {ID: 11, Contact: models.Contact{Email: "agent@x.com"}}},
		Contacts: map[string]models.Contact{"11": {ID: 11, Email: "contact@x.com"}, "12": {ID: 12, Email: "c12@x.com"}},
	}

	assert.Equal(t, "agent@x.com", r.Apply(MapUserFromID, json.Number("11"), dir))
	assert.Equal(t, "c12@x.com", r.Apply(MapUserFromID, 12, dir))
	assert.Equal(t, models.UnknownIdentity, r.Apply(MapUserFromID, 13, dir))
	assert.Equal(t, models.UnknownIdentity, r.Apply(MapUserFromID, nil, dir))
	assert.Equal(t, models.UnknownIdentity, r.Apply(MapUserFromID, 11, nil))

	assert.Equal(t, map[string]string{"name": "agent@x.com"}, r.Apply(MapUserToSystemField, 11, dir))
	assert.Nil(t, r.Apply(MapUserToSystemField, 99, dir))
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	names := r.Names()
	require.Len(t, names, 16)
	assert.True(t, r.Has(FormatFileSize))
	assert.False(t, r.Has("map_everything"))
}
