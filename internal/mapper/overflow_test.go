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
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskbridge/migrator/internal/formatter"
	"github.com/deskbridge/migrator/internal/models"
)

func rejoin(chunks []Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.Body)
	}
	return b.String()
}

func TestSplit_RoundTrip(t *testing.T) {
	t.Parallel()

	var records strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&records, "2024-01-%02d|%d|agent@x.com\n\nbody line %d\nsecond line ünïcødé\n%s", i%28+1, i, i, formatter.RecordSeparator)
	}
	blobs := map[string]string{
		"records": records.String(),
		"prose":   strings.Repeat("lorem ipsum dolor sit amet ", 400),
		"lines":   strings.Repeat("short line\n", 300),
		"emoji":   strings.Repeat("🙂 ok\n\n", 250),
		"empty":   "",
	}

	for name, blob := range blobs {
		for _, max := range []int{1, 7, 33, 50, 128, 1000, 5000, 100000} {
			t.Run(fmt.Sprintf("%s/%d", name, max), func(t *testing.T) {
				chunks := Split(blob, "Conversations", max)
				require.NotEmpty(t, chunks)
				assert.Equal(t, blob, rejoin(chunks))

				for i, c := range chunks {
					assert.LessOrEqual(t, utf8.RuneCountInString(c.Text()), max, "chunk %d", i)
					if i == 0 {
						assert.Empty(t, c.Header)
						continue
					}
					if c.Header != "" {
						assert.Equal(t, ContinuationHeader("Conversations", i), c.Header)
					}
					assert.NotEmpty(t, c.Body)
				}
			})
		}
	}
}

func TestSplit_ScenarioC(t *testing.T) {
	t.Parallel()

	blob := strings.Repeat("x", 100000)
	pool := NewOverflowPool([]string{"extra_1", "extra_2", "extra_3"})

	alloc := Allocate(blob, Target{
		Section:   "Conversations",
		Primary:   "conv_1",
		Dedicated: []string{"conv_2"},
		MaxLength: 32000,
	}, pool)

	require.Len(t, alloc.Chunks, 4)
	assert.Zero(t, alloc.Dropped)
	assert.False(t, alloc.Truncated)

	wantFields := []string{"conv_1", "conv_2", "extra_1", "extra_2"}
	for i, c := range alloc.Chunks {
		assert.Equal(t, wantFields[i], c.Field)
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Text()), 32000)
		if i > 0 {
			assert.True(t, strings.HasPrefix(c.Text(), fmt.Sprintf("— Conversations (Continued %d) —", i)), "chunk %d", i)
		}
	}
	assert.Equal(t, blob, rejoin(alloc.Chunks))
	assert.Equal(t, 1, pool.Remaining())
	assert.Equal(t, []string{"extra_1", "extra_2"}, pool.Used())
}

func TestSplit_PrefersRecordSeparator(t *testing.T) {
	t.Parallel()

	rec := "header|line\n\n" + strings.Repeat("b", 30) + formatter.RecordSeparator
	blob := strings.Repeat(rec, 5)

	chunks := Split(blob, "Conversations", 2*len(rec)+10)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks[:len(chunks)-1] {
		assert.True(t, strings.HasSuffix(c.Body, formatter.RecordSeparator), "body %q", c.Body)
	}
	for _, c := range chunks[1:] {
		assert.True(t, strings.HasPrefix(c.Body, "header|line"), "record split in two: %q", c.Body)
	}
}

func TestSplit_FallsBackToNewlines(t *testing.T) {
	t.Parallel()

	blob := strings.Repeat("para para para\n\n", 20)
	chunks := Split(blob, "Description", 100)
	require.Greater(t, len(chunks), 1)
	assert.True(t, strings.HasSuffix(chunks[0].Body, "\n\n"))

	blob = strings.Repeat("line line\n", 30)
	chunks = Split(blob, "Description", 60)
	assert.True(t, strings.HasSuffix(chunks[0].Body, "\n"))
}

func TestSplit_KeepsRecordWhole(t *testing.T) {
	t.Parallel()

	// The second record carries a blank line but fits a continuation chunk
	// whole, so the cut must land on the record separator before it.
	first := strings.Repeat("a", 34) + formatter.RecordSeparator
	second := strings.Repeat("b", 50) + "\n\n" + strings.Repeat("c", 57) + formatter.RecordSeparator
	blob := first + second + first

	chunks := Split(blob, "Conversations", 150)
	require.Len(t, chunks, 3)
	assert.Equal(t, first, chunks[0].Body)
	assert.Equal(t, second, chunks[1].Body)
	assert.Equal(t, first, chunks[2].Body)
	assert.Equal(t, blob, rejoin(chunks))
}

func TestSplit_LineBreaksKeepChunksHalfFull(t *testing.T) {
	t.Parallel()

	// The only blank line sits early in the window; a hard cut keeps the chunk full.
	blob := "ab\n\n" + strings.Repeat("z", 200)
	chunks := Split(blob, "Description", 100)

	require.Greater(t, len(chunks), 1)
	assert.Len(t, chunks[0].Body, 100)
	assert.Equal(t, blob, rejoin(chunks))
}

func TestSplit_FormattedConversationsStayWhole(t *testing.T) {
	t.Parallel()

	var convs []models.Conversation
	for i := 1; i <= 12; i++ {
		convs = append(convs, models.Conversation{
			ID:        int64(i),
			CreatedAt: fmt.Sprintf("2024-01-%02dT10:00:00Z", i),
			UpdatedAt: "later",
			BodyText:  fmt.Sprintf("body-%02d: ", i) + strings.Repeat("reply text\n\n", i%4+3),
		})
	}
	blob := formatter.New(formatter.DefaultDelimiter).FormatConversations(convs, nil)

	chunks := Split(blob, "Conversations", 400)
	require.Greater(t, len(chunks), 2)
	assert.Equal(t, blob, rejoin(chunks))

	chunkOf := func(needle string) int {
		for i, c := range chunks {
			if strings.Contains(c.Body, needle) {
				return i
			}
		}
		return -1
	}
	for _, c := range convs {
		line := chunkOf(c.CreatedAt)
		body := chunkOf(fmt.Sprintf("body-%02d:", c.ID))
		require.NotEqual(t, -1, line)
		assert.Equal(t, line, body, "conversation %d straddles chunks", c.ID)
	}
	for _, c := range chunks[1:] {
		assert.True(t, strings.HasPrefix(c.Body, "2024-01-"), "chunk starts mid-record: %q", c.Body)
	}
}

func TestSplit_FitsInOne(t *testing.T) {
	t.Parallel()

	chunks := Split("small", "Description", 5)
	require.Len(t, chunks, 1)
	assert.Equal(t, Chunk{Body: "small"}, chunks[0])

	chunks = Split("unbounded", "Description", 0)
	require.Len(t, chunks, 1)
}

func TestAllocate_FitsPrimary(t *testing.T) {
	t.Parallel()

	pool := NewOverflowPool([]string{"extra_1"})
	alloc := Allocate("short text", Target{Section: "Description", Primary: "description", MaxLength: 100}, pool)

	assert.Equal(t, map[string]any{"description": "short text"}, alloc.Fields())
	assert.Equal(t, 1, pool.Remaining(), "nothing consumed from the pool")
}

func TestAllocate_Exhaustion(t *testing.T) {
	t.Parallel()

	blob := strings.Repeat("y", 500)
	pool := NewOverflowPool([]string{"extra_1"})
	alloc := Allocate(blob, Target{
		Section:   "Description",
		Primary:   "description",
		Dedicated: []string{"body_1"},
		MaxLength: 100,
	}, pool)

	require.Len(t, alloc.Chunks, 3)
	assert.True(t, alloc.Truncated)
	assert.Equal(t, 4, alloc.Dropped)

	last := alloc.Chunks[2]
	assert.Equal(t, "extra_1", last.Field)
	assert.True(t, strings.HasSuffix(last.Text(), TruncatedMarker))
	assert.LessOrEqual(t, utf8.RuneCountInString(last.Text()), 100)
	assert.Equal(t, 13, alloc.Trimmed, "marker displaces the tail of the last chunk")
	assert.Zero(t, pool.Remaining())
}

func TestAllocate_NilPool(t *testing.T) {
	t.Parallel()

	alloc := Allocate(strings.Repeat("q", 250), Target{Section: "Attachments", Primary: "att", MaxLength: 100}, nil)
	require.Len(t, alloc.Chunks, 1)
	assert.Equal(t, 3, alloc.Dropped)
	assert.Equal(t, 13, alloc.Trimmed)
	assert.True(t, strings.HasSuffix(alloc.Chunks[0].Body, TruncatedMarker))
}

func TestOverflowPool(t *testing.T) {
	t.Parallel()

	src := []string{"a", "b"}
	pool := NewOverflowPool(src)
	src[0] = "mutated"

	f, ok := pool.Take()
	require.True(t, ok)
	assert.Equal(t, "a", f)
	f, _ = pool.Take()
	assert.Equal(t, "b", f)
	_, ok = pool.Take()
	assert.False(t, ok)

	pool.Reset()
	assert.Equal(t, 2, pool.Remaining())
	assert.Empty(t, pool.Used())

	var none *OverflowPool
	_, ok = none.Take()
	assert.False(t, ok)
	assert.Zero(t, none.Remaining())
}

func TestContinuationHeader(t *testing.T) {
	assert.Equal(t, "— Attachments (Continued 2) —\n", ContinuationHeader("Attachments", 2))
}
