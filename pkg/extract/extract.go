// Package extract turns uploaded files into plain text for ingestion.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// FromUpload extracts text from an uploaded file. Files ending in .pdf are
// parsed as PDF; everything else is treated as UTF-8 text with invalid
// bytes dropped.
func FromUpload(filename string, data []byte) (string, error) {
	if strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		text, err := FromPDF(data)
		if err != nil {
			return "", fmt.Errorf("PDF extraction failed for %s: %w", filename, err)
		}
		return text, nil
	}
	return FromText(data), nil
}

// FromText decodes data as UTF-8, dropping invalid byte sequences.
func FromText(data []byte) string {
	return strings.ToValidUTF8(string(data), "")
}

// FromPDF extracts the concatenated plain text of all pages. The pdf
// library reads from a file path, so the payload goes through a temp file.
func FromPDF(data []byte) (string, error) {
	tmp, err := os.CreateTemp("", "upload-*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	return FromPDFFile(tmp.Name())
}

// FromPDFFile extracts the plain text of a PDF on disk.
func FromPDFFile(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	content, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to read PDF text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, content); err != nil {
		return "", fmt.Errorf("failed to buffer PDF text: %w", err)
	}
	return buf.String(), nil
}

// FromFile extracts text from a file on disk, dispatching on the extension
// the same way FromUpload does.
func FromFile(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return FromPDFFile(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return FromText(data), nil
}
