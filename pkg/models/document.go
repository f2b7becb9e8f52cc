package models

import "time"

// Document is one uploaded file after text extraction.
type Document struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Content string    `json:"content"`
	Created time.Time `json:"created"`
}

// Chunk is a bounded piece of a document, the unit of retrieval.
type Chunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Content    string `json:"content"`
	Index      int    `json:"index"`
}

// SearchResult is a retrieved chunk with its similarity score.
type SearchResult struct {
	Content string  `json:"content"`
	Source  string  `json:"source,omitempty"`
	Score   float32 `json:"score"`
}
