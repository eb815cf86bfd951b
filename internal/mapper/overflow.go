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

package mapper

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/deskbridge/migrator/internal/formatter"
)

// TruncatedMarker is appended to the last field that received content when
// every overflow field is used up.
const TruncatedMarker = "\n\n[TRUNCATED]"

// lineSeparators are the fallback break points, in order of preference.
var lineSeparators = []string{"\n\n", "\n"}

// OverflowPool hands out the shared additional overflow fields. Each field is
// given out at most once until Reset. A pool is not safe for concurrent use.
type OverflowPool struct {
	fields []string
	next   int
}

// NewOverflowPool returns a pool over a copy of fields.
func NewOverflowPool(fields []string) *OverflowPool {
	return &OverflowPool{fields: append([]string(nil), fields...)}
}

// Take returns the next unused field.
func (p *OverflowPool) Take() (string, bool) {
	if p == nil || p.next >= len(p.fields) {
		return "", false
	}
	f := p.fields[p.next]
	p.next++
	return f, true
}

// Remaining returns how many fields are left.
func (p *OverflowPool) Remaining() int {
	if p == nil {
		return 0
	}
	return len(p.fields) - p.next
}

// Used returns the fields handed out so far, in order.
func (p *OverflowPool) Used() []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), p.fields[:p.next]...)
}

// Reset makes every field available again.
func (p *OverflowPool) Reset() {
	if p != nil {
		p.next = 0
	}
}

// ContinuationHeader is the line that opens chunk n+1 of a section.
func ContinuationHeader(section string, n int) string {
	return fmt.Sprintf("— %s (Continued %d) —\n", section, n)
}

// Chunk is one bounded fragment of a blob.
type Chunk struct {
	Field  string
	Header string
	Body   string
}

// Text is the value written to the chunk's field.
func (c Chunk) Text() string { return c.Header + c.Body }

// Target describes where a blob may be written.
type Target struct {
	Section   string
	Primary   string
	Dedicated []string
	MaxLength int
}

// Allocation is the result of spreading a blob over its target fields.
type Allocation struct {
	Chunks    []Chunk
	Dropped   int
	Truncated bool
	Trimmed   int // runes cut from the last chunk to fit the marker
}

// Fields returns the destination values of the allocation.
func (a Allocation) Fields() map[string]any {
	out := make(map[string]any, len(a.Chunks))
	for _, c := range a.Chunks {
		out[c.Field] = c.Text()
	}
	return out
}

// Split cuts blob into chunks of at most max characters, headers included.
// Bodies concatenate back to blob. A max of zero or less means no limit.
func Split(blob, section string, max int) []Chunk {
	runes := []rune(blob)
	if max <= 0 || len(runes) <= max {
		return []Chunk{{Body: blob}}
	}

	var chunks []Chunk
	for pos := 0; pos < len(runes); {
		header := ""
		if len(chunks) > 0 {
			header = ContinuationHeader(section, len(chunks))
			if utf8.RuneCountInString(header) >= max {
				header = ""
			}
		}
		budget := max - utf8.RuneCountInString(header)

		if len(runes)-pos <= budget {
			chunks = append(chunks, Chunk{Header: header, Body: string(runes[pos:])})
			break
		}
		cut := breakPoint(runes[pos : pos+budget])
		chunks = append(chunks, Chunk{Header: header, Body: string(runes[pos : pos+cut])})
		pos += cut
	}
	return chunks
}

// breakPoint returns the rune offset to cut window at. A record separator
// anywhere in the window wins, so a record is only split when it cannot fit
// a chunk on its own. Blank lines and newlines are used only when they keep
// at least half the window; otherwise the window is cut hard.
func breakPoint(window []rune) int {
	s := string(window)
	if idx := strings.LastIndex(s, formatter.RecordSeparator); idx >= 0 {
		if end := utf8.RuneCountInString(s[:idx+len(formatter.RecordSeparator)]); end > 0 {
			return end
		}
	}
	least := len(window) / 2
	for _, sep := range lineSeparators {
		idx := strings.LastIndex(s, sep)
		if idx < 0 {
			continue
		}
		end := utf8.RuneCountInString(s[:idx+len(sep)])
		if end >= least && end > 0 {
			return end
		}
	}
	return len(window)
}

// Allocate spreads blob over the target's primary field, then its dedicated
// overflow fields, then fields taken from pool. Chunks beyond the last
// available field are dropped and the last written chunk is marked.
func Allocate(blob string, target Target, pool *OverflowPool) Allocation {
	chunks := Split(blob, target.Section, target.MaxLength)

	var alloc Allocation
	for i := range chunks {
		field, ok := fieldFor(i, target, pool)
		if !ok {
			alloc.Dropped = len(chunks) - i
			break
		}
		chunks[i].Field = field
		alloc.Chunks = append(alloc.Chunks, chunks[i])
	}

	if alloc.Dropped > 0 && len(alloc.Chunks) > 0 {
		last := &alloc.Chunks[len(alloc.Chunks)-1]
		var trimmed int
		last.Body, trimmed = markTruncated(last.Header, last.Body, target.MaxLength)
		alloc.Truncated = true
		alloc.Trimmed = trimmed
		slog.Warn("overflow fields exhausted, content truncated",
			"section", target.Section,
			"dropped_chunks", alloc.Dropped,
			"trimmed_runes", trimmed,
			"last_field", last.Field,
			"pool_used", pool.Used(),
		)
	}
	return alloc
}

func fieldFor(i int, target Target, pool *OverflowPool) (string, bool) {
	if i == 0 {
		return target.Primary, target.Primary != ""
	}
	if i-1 < len(target.Dedicated) {
		return target.Dedicated[i-1], true
	}
	return pool.Take()
}

// markTruncated appends TruncatedMarker to body, shortening body so header,
// body and marker still fit in max. It also returns how many body runes were
// cut to make room.
func markTruncated(header, body string, max int) (string, int) {
	marker := []rune(TruncatedMarker)
	b := []rune(body)
	if max <= 0 {
		return body + TruncatedMarker, 0
	}
	room := max - utf8.RuneCountInString(header) - len(marker)
	if room < 0 {
		return string(marker[:max-utf8.RuneCountInString(header)]), len(b)
	}
	trimmed := 0
	if len(b) > room {
		trimmed = len(b) - room
		b = b[:room]
	}
	return string(b) + TruncatedMarker, trimmed
}
