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
	"strconv"
	"strings"
)

var priorityLabels = map[int64]string{
	1: "Low",
	2: "Medium",
	3: "High",
	4: "Urgent",
}

var statusLabels = map[int64]string{
	2: "Open",
	3: "Pending",
	4: "Resolved",
	5: "Closed",
	6: "Waiting on Customer",
	7: "Waiting on Third Party",
}

var sourceLabels = map[int64]string{
	1:  "Email",
	2:  "Portal",
	3:  "Phone",
	4:  "Chat",
	5:  "Feedback Widget",
	6:  "Outbound Email",
	7:  "E-commerce",
	8:  "Bot",
	9:  "Mobihelp",
	10: "Walkup",
	11: "Talkdesk",
	12: "Slack",
	13: "Teams",
	14: "WhatsApp",
	15: "SMS",
	16: "API",
}

// DefaultPriority is used for any code outside 1-4.
const DefaultPriority = "Medium"

func priorityLabel(v any) string {
	if code, ok := toInt(v); ok {
		if label, ok := priorityLabels[code]; ok {
			return label
		}
	}
	return DefaultPriority
}

// statusLabel falls back to "Status_<code>" for unknown codes.
func statusLabel(v any) string {
	return codeLabel(statusLabels, "Status", v)
}

// sourceLabel falls back to "Source_<code>" for unknown codes.
func sourceLabel(v any) string {
	return codeLabel(sourceLabels, "Source", v)
}

func codeLabel(labels map[int64]string, prefix string, v any) string {
	if code, ok := toInt(v); ok {
		if label, ok := labels[code]; ok {
			return label
		}
		return fmt.Sprintf("%s_%d", prefix, code)
	}
	return fmt.Sprintf("%s_%v", prefix, v)
}

// toInt accepts the numeric shapes a decoded export can carry. Floats must
// be integral.
func toInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || math.IsNaN(x) {
			return 0, false
		}
		return int64(x), true
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, true
		}
		if f, err := x.Float64(); err == nil {
			return toInt(f)
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	n, ok := toInt(v)
	return float64(n), ok
}
