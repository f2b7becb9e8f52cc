// Package download fetches model weights over HTTP so a fresh install can
// provision its local GGUF models without extra tooling.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Model describes one downloadable weights file.
type Model struct {
	Name     string
	Filename string
	URL      string
}

// DefaultModels lists small quantized models suitable for CPU-only hosts.
var DefaultModels = []Model{
	{
		Name:     "7B-q4_0",
		Filename: "ggml-model-q4_0.bin",
		URL:      "https://huggingface.co/TheBloke/Llama-2-7B-GGML/resolve/main/ggml-model-q4_0.bin",
	},
	{
		Name:     "7B-q4_1",
		Filename: "ggml-model-q4_1.bin",
		URL:      "https://huggingface.co/TheBloke/Llama-2-7B-GGML/resolve/main/ggml-model-q4_1.bin",
	},
}

// Progress receives (downloaded, total) byte counts while a fetch runs.
// total is -1 when the server does not report a content length.
type Progress func(downloaded, total int64)

// Fetch downloads url into dest. An existing dest is kept as-is, so
// provisioning is idempotent. The file lands via temp + rename, never as a
// half-written artifact.
func Fetch(ctx context.Context, url, dest string, progress Progress) error {
	if _, err := os.Stat(dest); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create model dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download of %s failed with status %d", url, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := copyWithProgress(tmp, resp.Body, resp.ContentLength, progress); err != nil {
		tmp.Close()
		return fmt.Errorf("download of %s interrupted: %w", url, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("failed to move download into place: %w", err)
	}
	return nil
}

func copyWithProgress(dst io.Writer, src io.Reader, total int64, progress Progress) error {
	buf := make([]byte, 1<<20)
	var done int64
	lastReport := time.Now()

	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
			done += int64(n)
			if progress != nil && (time.Since(lastReport) > 500*time.Millisecond || err == io.EOF) {
				progress(done, total)
				lastReport = time.Now()
			}
		}
		if err == io.EOF {
			if progress != nil {
				progress(done, total)
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}
