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
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/deskbridge/migrator/internal/models"
)

// DateLayout is the canonical output of format_date.
const DateLayout = "2006-01-02 15:04:05"

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// formatDate reformats a timestamp to DateLayout. Input it cannot parse is
// returned as given.
func formatDate(v any, _ *models.Directory) (any, error) {
	if v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("format_date: %w %T", ErrUnexpectedType, v)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout), nil
		}
	}
	return s, nil
}

// normalizeBool maps bools, numbers and truthy spellings to "true" or
// "false". nil and any other type yield "false".
func normalizeBool(v any) string {
	switch x := v.(type) {
	case bool:
		return strconv.FormatBool(x)
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "1", "yes", "on":
			return "true"
		}
		return "false"
	case json.Number:
		f, err := x.Float64()
		return strconv.FormatBool(err == nil && f != 0)
	case int:
		return strconv.FormatBool(x != 0)
	case int64:
		return strconv.FormatBool(x != 0)
	case float64:
		return strconv.FormatBool(x != 0)
	}
	return "false"
}

// numberString renders an integer value, truncating floats. Anything else
// becomes "".
func numberString(v any) string {
	if n, ok := toInt(v); ok {
		return strconv.FormatInt(n, 10)
	}
	switch x := v.(type) {
	case float64:
		if !math.IsInf(x, 0) && !math.IsNaN(x) {
			return strconv.FormatInt(int64(x), 10)
		}
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return strconv.FormatInt(int64(f), 10)
		}
	}
	return ""
}

func idString(v any) string {
	return models.ValueString(v)
}

// fileSize renders a byte count in binary units with one decimal place.
func fileSize(v any) string {
	size, ok := toFloat(v)
	if !ok || size <= 0 {
		return "0 B"
	}
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if size < 1024 {
			return fmt.Sprintf("%.1f %s", size, unit)
		}
		size /= 1024
	}
	return fmt.Sprintf("%.1f TB", size)
}

// customFields renders a custom-field map as "name: value; ..." sorted by
// name, skipping empty values.
func customFields(v any) string {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return ""
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		value := models.ValueString(m[name])
		if value == "" {
			continue
		}
		parts = append(parts, name+": "+value)
	}
	return strings.Join(parts, "; ")
}
