// Package chunker splits raw document text into overlapping windows for
// retrieval indexing.
package chunker

import (
	"fmt"

	"github.com/andrew/multidoc-chat/pkg/models"
)

// Split cuts text into consecutive windows of at most size runes.
// Consecutive windows share overlap runes, so the window start advances by
// size-overlap each step. Windows are measured in runes, not bytes, so a
// boundary never lands inside a multi-byte character.
//
// A non-positive size returns the whole text as a single chunk. An overlap
// that is negative or >= size is treated as zero so the loop always makes
// progress. Empty text returns nil.
func Split(text string, size, overlap int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		return []string{text}
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	step := size - overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// SplitDocument chunks a document's content and labels each chunk with its
// origin document and position.
func SplitDocument(doc models.Document, size, overlap int) []models.Chunk {
	parts := Split(doc.Content, size, overlap)
	chunks := make([]models.Chunk, len(parts))
	for i, part := range parts {
		chunks[i] = models.Chunk{
			ID:         fmt.Sprintf("%s-%d", doc.ID, i),
			DocumentID: doc.ID,
			Content:    part,
			Index:      i,
		}
	}
	return chunks
}
