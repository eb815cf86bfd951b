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

// Package transform holds the catalog of named value transforms referenced
// by the field mapping table. Transforms are pure functions of a value and,
// for identity lookups, the user directory.
package transform

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/deskbridge/migrator/internal/models"
)

// Registered transform names.
const (
	MapPriority          = "map_priority"
	MapStatus            = "map_status"
	MapSource            = "map_source"
	MapUserFromID        = "map_user_from_id"
	MapUserToSystemField = "map_user_to_system_field"
	ExtractEmails        = "extract_emails"
	ExtractTags          = "extract_tags"
	FormatDate           = "format_date"
	JoinList             = "join_list"
	TruncateText         = "truncate_text"
	CleanHTML            = "clean_html"
	MapBoolean           = "map_boolean"
	MapNumber            = "map_number"
	MapCustomFields      = "map_custom_fields"
	MapIDToString        = "map_id_to_string"
	FormatFileSize       = "format_file_size"
)

// ErrUnexpectedType is returned by a transform handed a value outside its domain.
var ErrUnexpectedType = errors.New("unexpected value type")

// Func transforms one source value. The directory is only consulted by
// identity-resolving transforms and may be nil.
type Func func(value any, dir *models.Directory) (any, error)

// Registry resolves transform names to functions.
type Registry struct {
	funcs map[string]Func
}

// NewRegistry returns the registry with every built-in transform.
func NewRegistry() *Registry {
	return &Registry{funcs: map[string]Func{
		MapPriority:          plain(priorityLabel),
		MapStatus:            plain(statusLabel),
		MapSource:            plain(sourceLabel),
		MapUserFromID:        userEmail,
		MapUserToSystemField: userSystemField,
		ExtractEmails:        plain(extractEmails),
		ExtractTags:          plain(joinList),
		FormatDate:           formatDate,
		JoinList:             plain(joinList),
		TruncateText:         truncateText,
		CleanHTML:            cleanHTML,
		MapBoolean:           plain(normalizeBool),
		MapNumber:            plain(numberString),
		MapCustomFields:      plain(customFields),
		MapIDToString:        plain(idString),
		FormatFileSize:       plain(fileSize),
	}}
}

// Resolve returns the named transform.
func (r *Registry) Resolve(name string) (Func, bool) {
	if r == nil || name == "" {
		return nil, false
	}
	fn, ok := r.funcs[name]
	return fn, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Resolve(name)
	return ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for n := range r.funcs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Apply runs the named transform. An empty or unknown name returns value
// unchanged, as does a transform that fails or panics.
func (r *Registry) Apply(name string, value any, dir *models.Directory) any {
	fn, ok := r.Resolve(name)
	if !ok {
		return value
	}
	out, err := safeCall(fn, value, dir)
	if err != nil {
		slog.Warn("transform failed, keeping original value",
			"transform", name,
			"error", err,
		)
		return value
	}
	return out
}

func safeCall(fn Func, value any, dir *models.Directory) (out any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("transform panic: %v", p)
		}
	}()
	return fn(value, dir)
}

// plain adapts a directory-free conversion that cannot fail.
func plain[T any](fn func(any) T) Func {
	return func(value any, _ *models.Directory) (any, error) {
		return fn(value), nil
	}
}
