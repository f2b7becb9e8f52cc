// Package retrieval orchestrates the ingest and query pipeline: chunking,
// embedding, vector-index maintenance and prompt assembly.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/andrew/multidoc-chat/pkg/chunker"
	"github.com/andrew/multidoc-chat/pkg/docstore"
	"github.com/andrew/multidoc-chat/pkg/llm"
	"github.com/andrew/multidoc-chat/pkg/vector"
)

var (
	// ErrEmbeddingUnavailable is returned by Ingest when no embedding
	// backend is configured.
	ErrEmbeddingUnavailable = errors.New("embedding backend not configured")

	// ErrEmptyInput is returned by Ingest when the batch contains no text.
	ErrEmptyInput = errors.New("no text to ingest")
)

const (
	indexFileName = "index.bin"
	docsFileName  = "docs.txt"

	// noModelAnswer is returned instead of an error when generation is not
	// available, so the service stays usable for smoke-testing retrieval.
	noModelAnswer = "[generation model unavailable: configure an LLM backend to receive answers]"

	promptTemplate = "You are an assistant. Use the context to answer the question.\n\nCONTEXT:\n%s\n\nQUESTION: %s\n\nANSWER:"
)

// Config tunes the retrieval pipeline.
type Config struct {
	DataDir      string // directory holding index.bin and docs.txt
	ChunkSize    int    // characters per chunk
	ChunkOverlap int    // characters shared between consecutive chunks
	TopK         int    // default number of chunks retrieved per query
	MaxTokens    int    // default generation budget

	// Temperature is the sampling temperature for generation. nil selects
	// the default; an explicit zero means deterministic sampling.
	Temperature *float32
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() Config {
	return Config{
		DataDir:      "data",
		ChunkSize:    1000,
		ChunkOverlap: 200,
		TopK:         3,
		MaxTokens:    256,
		Temperature:  float32Ptr(0.7),
	}
}

func float32Ptr(v float32) *float32 { return &v }

// Service owns one vector index and its paired document store, and runs
// the ingest and query flows against them. A single mutex serializes both
// flows: the flat index is not safe for concurrent read-during-write, so
// queries block during ingests and vice versa.
type Service struct {
	cfg    Config
	client llm.Client

	mu    sync.Mutex
	index *vector.FlatIndex
	docs  *docstore.Store
}

// New creates a Service, loading a persisted index/docs pair from
// cfg.DataDir when one exists. A load failure is logged and the service
// starts empty rather than refusing to boot. client may be nil, which puts
// the service in degraded mode.
func New(cfg Config, client llm.Client) (*Service, error) {
	def := DefaultConfig()
	if cfg.DataDir == "" {
		cfg.DataDir = def.DataDir
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = def.ChunkOverlap
	}
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Temperature == nil {
		cfg.Temperature = def.Temperature
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	s := &Service{
		cfg:    cfg,
		client: client,
		index:  vector.NewFlatIndex(),
		docs:   docstore.New(),
	}
	s.loadPersisted()
	return s, nil
}

func (s *Service) loadPersisted() {
	indexPath := filepath.Join(s.cfg.DataDir, indexFileName)
	docsPath := filepath.Join(s.cfg.DataDir, docsFileName)

	if _, err := os.Stat(indexPath); err != nil {
		return
	}
	index, err := vector.LoadFlatIndex(indexPath)
	if err != nil {
		log.Printf("warning: could not load vector index from %s: %v", indexPath, err)
		return
	}
	docs, err := docstore.Load(docsPath)
	if err != nil {
		log.Printf("warning: could not load document store from %s: %v", docsPath, err)
		return
	}
	if index.Len() != docs.Len() {
		log.Printf("warning: persisted index (%d) and docs (%d) out of sync, starting empty",
			index.Len(), docs.Len())
		return
	}
	s.index = index
	s.docs = docs
}

// Degraded reports whether the service is missing its LLM backend and will
// refuse ingests and answer with a placeholder.
func (s *Service) Degraded() bool { return s.client == nil }

// Len returns the number of indexed chunks.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Len()
}

// Ingest chunks every text, embeds all chunks in one batch and appends them
// to the index and document store in the same order, then persists both.
// Returns the number of chunks added.
//
// There is no rollback across the persistence step: if embedding succeeds
// but a write fails, the in-memory state stays ahead of disk until the next
// successful ingest.
func (s *Service) Ingest(ctx context.Context, texts []string) (int, error) {
	if s.client == nil {
		return 0, ErrEmbeddingUnavailable
	}

	var allChunks []string
	for _, text := range texts {
		chunks := chunker.Split(text, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
		if len(chunks) == 0 {
			// Keep the document rather than silently dropping it.
			chunks = []string{text}
		}
		allChunks = append(allChunks, chunks...)
	}
	if len(allChunks) == 0 {
		return 0, ErrEmptyInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	vectors, err := s.client.EmbedBatch(ctx, allChunks)
	if err != nil {
		return 0, fmt.Errorf("embedding failed: %w", err)
	}
	if err := s.index.Add(vectors); err != nil {
		return 0, fmt.Errorf("index update failed: %w", err)
	}
	s.docs.Append(allChunks...)

	// Index first, docs second: a crash between the two leaves the docs
	// file short, which query handles by skipping out-of-range positions.
	if err := s.index.Save(filepath.Join(s.cfg.DataDir, indexFileName)); err != nil {
		return 0, fmt.Errorf("failed to persist index: %w", err)
	}
	if err := s.docs.Save(filepath.Join(s.cfg.DataDir, docsFileName)); err != nil {
		return 0, fmt.Errorf("failed to persist documents: %w", err)
	}
	return len(allChunks), nil
}

// Query retrieves the chunks nearest to the question, assembles the RAG
// prompt and returns the generated answer. An empty index degrades to
// ungrounded generation with an empty context block.
func (s *Service) Query(ctx context.Context, question string, topK, maxTokens int) (string, error) {
	if topK <= 0 {
		topK = s.cfg.TopK
	}
	if maxTokens <= 0 {
		maxTokens = s.cfg.MaxTokens
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	retrieved, err := s.search(ctx, question, topK)
	if err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(promptTemplate, strings.Join(retrieved, "\n\n"), question)
	if s.client == nil {
		return noModelAnswer, nil
	}
	mc := llm.DefaultModelConfig()
	mc.Temperature = *s.cfg.Temperature
	mc.MaxTokens = maxTokens
	answer, err := s.client.Generate(ctx, prompt, mc)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	return answer, nil
}

// search embeds the question and maps the nearest index positions back to
// chunk texts. Must be called with the lock held.
func (s *Service) search(ctx context.Context, question string, topK int) ([]string, error) {
	if s.client == nil || s.index.Len() == 0 {
		return nil, nil
	}
	queryVec, err := s.client.EmbedText(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	_, idxs := s.index.Search(queryVec, topK)
	results := make([]string, 0, len(idxs))
	for _, i := range idxs {
		// Skip positions outside the doc store in case index and store
		// ever desync on disk.
		if text, ok := s.docs.Get(i); ok {
			results = append(results, text)
		}
	}
	return results, nil
}
