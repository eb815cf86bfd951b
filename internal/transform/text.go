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
	"fmt"
	"io"
	"net/mail"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/deskbridge/migrator/internal/models"
)

// DefaultTruncateLength is the cap applied by truncate_text.
const DefaultTruncateLength = 32000

// Ellipsis replaces the tail of truncated text.
const Ellipsis = "..."

var (
	angleAddr  = regexp.MustCompile(`<([^>]+)>`)
	whitespace = regexp.MustCompile(`\s+`)
)

// extractEmails returns bare addresses joined with ", ". Display names in
// the "'Name' <addr>" form are dropped.
func extractEmails(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case []string:
		return joinAddresses(x)
	case []any:
		items := make([]string, 0, len(x))
		for _, item := range x {
			if s, ok := item.(string); ok {
				items = append(items, s)
			}
		}
		return joinAddresses(items)
	}
	return fmt.Sprint(v)
}

func joinAddresses(items []string) string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if addr := bareAddress(item); addr != "" {
			out = append(out, addr)
		}
	}
	return strings.Join(out, ", ")
}

func bareAddress(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if m := angleAddr.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	if addr, err := mail.ParseAddress(s); err == nil {
		return addr.Address
	}
	return s
}

// joinList joins list items with ", ". Scalars are rendered as text.
func joinList(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []string:
		return strings.Join(x, ", ")
	case []any:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			parts = append(parts, models.ValueString(item))
		}
		return strings.Join(parts, ", ")
	}
	return models.ValueString(v)
}

// truncateText caps text at DefaultTruncateLength characters, ending it
// with Ellipsis when it was cut.
func truncateText(v any, _ *models.Directory) (any, error) {
	if v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("truncate_text: %w %T", ErrUnexpectedType, v)
	}
	return Truncate(s, DefaultTruncateLength), nil
}

// Truncate caps s at max characters including the ellipsis.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= len(Ellipsis) {
		return string(r[:max])
	}
	return string(r[:max-len(Ellipsis)]) + Ellipsis
}

// blockTags break text flow when stripped.
var blockTags = map[string]bool{
	"br": true, "p": true, "div": true, "li": true, "tr": true, "td": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true, "table": true, "ul": true, "ol": true,
}

// cleanHTML strips tags, decodes entities and collapses whitespace.
func cleanHTML(v any, _ *models.Directory) (any, error) {
	if v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("clean_html: %w %T", ErrUnexpectedType, v)
	}
	text, err := StripHTML(s)
	if err != nil {
		return nil, err
	}
	return text, nil
}

// StripHTML returns the visible text of an HTML fragment.
func StripHTML(s string) (string, error) {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return "", fmt.Errorf("tokenize html: %w", err)
			}
			return strings.TrimSpace(whitespace.ReplaceAllString(b.String(), " ")), nil
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken, html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				if tt == html.StartTagToken {
					skip++
				} else if tt == html.EndTagToken && skip > 0 {
					skip--
				}
				continue
			}
			if blockTags[tag] {
				b.WriteByte(' ')
			}
		}
	}
}
