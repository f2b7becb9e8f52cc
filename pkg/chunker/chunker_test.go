package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrew/multidoc-chat/pkg/models"
)

func TestSplit_OverlappingWindows(t *testing.T) {
	text := "abcdefghij" // 10 chars
	chunks := Split(text, 4, 2)

	// windows start at 0, 2, 4, 6, 8
	require.Equal(t, []string{"abcd", "cdef", "efgh", "ghij"}, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 4)
	}
}

func TestSplit_ReconstructsText(t *testing.T) {
	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 40)
	size, overlap := 100, 25

	chunks := Split(text, size, overlap)
	require.NotEmpty(t, chunks)

	// Concatenating the non-overlap prefix of each chunk after the first
	// rebuilds the original text.
	var b strings.Builder
	b.WriteString(chunks[0])
	for _, c := range chunks[1:] {
		if len(c) > overlap {
			b.WriteString(c[overlap:])
		}
	}
	assert.Equal(t, text, b.String())
}

func TestSplit_TextShorterThanSize(t *testing.T) {
	chunks := Split("short", 1000, 200)
	require.Equal(t, []string{"short"}, chunks)
}

func TestSplit_EmptyText(t *testing.T) {
	assert.Nil(t, Split("", 1000, 200))
}

func TestSplit_OverlapAtLeastSize(t *testing.T) {
	// Degenerate overlap must not loop forever; it falls back to
	// non-overlapping windows.
	chunks := Split("abcdefgh", 4, 4)
	require.Equal(t, []string{"abcd", "efgh"}, chunks)

	chunks = Split("abcdefgh", 4, 9)
	require.Equal(t, []string{"abcd", "efgh"}, chunks)
}

func TestSplit_NegativeOverlap(t *testing.T) {
	chunks := Split("abcdefgh", 4, -3)
	require.Equal(t, []string{"abcd", "efgh"}, chunks)
}

func TestSplit_NonPositiveSize(t *testing.T) {
	chunks := Split("whole text", 0, 0)
	require.Equal(t, []string{"whole text"}, chunks)
}

func TestSplit_NeverSplitsMultiByteRunes(t *testing.T) {
	// Every é is two bytes; byte-offset windows would cut characters in
	// half at every boundary.
	text := strings.Repeat("é", 10)
	chunks := Split(text, 4, 1)

	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c), "chunk %q is not valid UTF-8", c)
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 4)
	}
	assert.Equal(t, "éééé", chunks[0])
}

func TestSplitDocument_LabelsChunksWithOrigin(t *testing.T) {
	doc := models.Document{
		ID:      "doc-1",
		Name:    "notes.txt",
		Content: "abcdefghij",
	}
	chunks := SplitDocument(doc, 4, 0)

	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, "doc-1", c.DocumentID)
		assert.Equal(t, i, c.Index)
		assert.NotEmpty(t, c.ID)
	}
	assert.Equal(t, "abcd", chunks[0].Content)
	assert.Equal(t, "ij", chunks[2].Content)
}

func TestSplitDocument_EmptyContent(t *testing.T) {
	assert.Empty(t, SplitDocument(models.Document{ID: "doc-1"}, 4, 0))
}
