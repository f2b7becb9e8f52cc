// Package docstore keeps the ordered chunk texts that back a vector index.
// Position i in the store always matches position i in the paired index.
package docstore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store is an append-only, insertion-ordered sequence of chunk texts.
//
// Store is not safe for concurrent use; the owner serializes access.
type Store struct {
	texts []string
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// Append adds texts to the end of the store.
func (s *Store) Append(texts ...string) {
	s.texts = append(s.texts, texts...)
}

// Get returns the text at position i, or false when i is out of bounds.
func (s *Store) Get(i int) (string, bool) {
	if i < 0 || i >= len(s.texts) {
		return "", false
	}
	return s.texts[i], true
}

// Len returns the number of stored texts.
func (s *Store) Len() int { return len(s.texts) }

// All returns a copy of the stored texts in insertion order.
func (s *Store) All() []string {
	out := make([]string, len(s.texts))
	copy(out, s.texts)
	return out
}

// Save writes the store as newline-delimited text. Embedded newlines are
// replaced with spaces, which keeps the format one-line-per-chunk at the
// cost of exact fidelity. Written atomically via temp file + rename.
func (s *Store) Save(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".docs-*")
	if err != nil {
		return fmt.Errorf("failed to create temp docs file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, text := range s.texts {
		flat := strings.ReplaceAll(text, "\r\n", " ")
		flat = strings.ReplaceAll(flat, "\n", " ")
		if _, err := w.WriteString(flat + "\n"); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write docs: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush docs: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close docs file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace docs file: %w", err)
	}
	return nil
}

// Load reads a store previously written by Save.
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s := New()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		s.texts = append(s.texts, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read docs file: %w", err)
	}
	return s, nil
}
