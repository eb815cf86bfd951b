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

// Destination container and record-type fields.
const (
	ProjectField   = "project"
	IssueTypeField = "issuetype"
	SummaryField   = "summary"
)

// Issue is the destination record: a flat mapping from destination field id
// to value, ready for submission to the issue tracker.
type Issue struct {
	Fields map[string]any `json:"fields"`
}

// NewIssue returns an issue carrying the required placement fields.
func NewIssue(projectKey, issueType string) *Issue {
	i := &Issue{Fields: make(map[string]any)}
	i.SetProjectKey(projectKey)
	i.SetIssueType(issueType)
	return i
}

// SetProjectKey sets the destination container.
func (i *Issue) SetProjectKey(key string) {
	i.Fields[ProjectField] = map[string]string{"key": key}
}

// SetIssueType sets the destination record type.
func (i *Issue) SetIssueType(name string) {
	i.Fields[IssueTypeField] = map[string]string{"name": name}
}

// SetField writes a destination field. A later write replaces an earlier one.
func (i *Issue) SetField(name string, value any) {
	i.Fields[name] = value
}

// Field returns a destination field value.
func (i *Issue) Field(name string) (any, bool) {
	v, ok := i.Fields[name]
	return v, ok
}

// ProjectKey returns the container key, or "".
func (i *Issue) ProjectKey() string {
	m, _ := i.Fields[ProjectField].(map[string]string)
	return m["key"]
}

// IssueType returns the record type name, or "".
func (i *Issue) IssueType() string {
	m, _ := i.Fields[IssueTypeField].(map[string]string)
	return m["name"]
}
