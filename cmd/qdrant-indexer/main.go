// Command qdrant-indexer pushes a directory of documents into a Qdrant
// collection, for installs that want a server-side vector database instead
// of the built-in flat index. With -ask it answers a question against the
// collection instead of indexing.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ollama/ollama/api"

	"github.com/andrew/multidoc-chat/pkg/chunker"
	"github.com/andrew/multidoc-chat/pkg/extract"
	"github.com/andrew/multidoc-chat/pkg/models"
	"github.com/andrew/multidoc-chat/pkg/vector"
)

var (
	qdrantAddr   = flag.String("qdrant-addr", "localhost:6334", "Qdrant gRPC address")
	collection   = flag.String("collection", "multidoc_chat", "Qdrant collection name")
	contentDir   = flag.String("content-dir", "content", "Directory containing documents to index")
	embedModel   = flag.String("embed-model", "llama3", "Ollama model used for embeddings")
	chatModel    = flag.String("chat-model", "llama3", "Ollama model used to answer -ask questions")
	vectorSize   = flag.Int("vector-size", 4096, "Embedding dimension of the model")
	chunkSize    = flag.Int("chunk-size", 400, "Characters per chunk")
	chunkOverlap = flag.Int("chunk-overlap", 50, "Characters shared between consecutive chunks")
	searchLimit  = flag.Int("search-limit", 10, "Chunks retrieved per -ask question")
	recreate     = flag.Bool("recreate", false, "Recreate the collection if it exists")
	ask          = flag.String("ask", "", "Answer this question against the collection instead of indexing")
)

func main() {
	flag.Parse()
	ctx := context.Background()

	store, err := vector.NewQdrantStore(*qdrantAddr, *collection, *vectorSize)
	if err != nil {
		log.Fatalf("qdrant connection failed: %v", err)
	}
	defer store.Close()

	ollamaClient, err := newOllamaClient()
	if err != nil {
		log.Fatalf("ollama setup failed: %v", err)
	}

	if *ask != "" {
		if err := runQuestion(ctx, ollamaClient, store, *ask); err != nil {
			log.Fatalf("question failed: %v", err)
		}
		return
	}

	if err := store.EnsureCollection(ctx, *recreate); err != nil {
		log.Fatalf("collection setup failed: %v", err)
	}

	files, err := findDocuments(*contentDir)
	if err != nil {
		log.Fatalf("failed to scan %s: %v", *contentDir, err)
	}
	if len(files) == 0 {
		log.Fatalf("no documents found under %s", *contentDir)
	}
	log.Printf("processing %d documents", len(files))

	totalChunks := 0
	for i, path := range files {
		text, err := extract.FromFile(path)
		if err != nil {
			log.Fatalf("extraction failed for %s: %v", path, err)
		}
		rel, err := filepath.Rel(*contentDir, path)
		if err != nil {
			rel = path
		}

		doc := models.Document{
			ID:      uuid.New().String(),
			Name:    rel,
			Content: text,
			Created: time.Now(),
		}
		chunks := chunker.SplitDocument(doc, *chunkSize, *chunkOverlap)
		if len(chunks) == 0 {
			log.Printf("[%d/%d] %s: no text, skipped", i+1, len(files), path)
			continue
		}

		vectors := make([][]float32, len(chunks))
		for j, chunk := range chunks {
			vectors[j], err = embedWithRetry(ctx, ollamaClient, *embedModel, chunk.Content)
			if err != nil {
				log.Fatalf("embedding failed for %s chunk %d: %v", path, j, err)
			}
		}

		if err := store.Upsert(ctx, chunks, vectors, rel); err != nil {
			log.Fatalf("upsert failed for %s: %v", path, err)
		}
		totalChunks += len(chunks)
		log.Printf("[%d/%d] %s: %d chunks indexed", i+1, len(files), rel, len(chunks))
	}

	fmt.Printf("Indexed %d chunks from %d documents into %q\n", totalChunks, len(files), *collection)
}

// chunkSearcher is the slice of QdrantStore the question flow needs.
type chunkSearcher interface {
	Search(ctx context.Context, vector []float32, limit int) ([]models.SearchResult, error)
}

// retrieveContext embeds the question, retrieves the nearest chunks from the
// store and flattens them into one context block, labeling each chunk with
// its source document.
func retrieveContext(ctx context.Context, embed func(context.Context, string) ([]float32, error), store chunkSearcher, question string, limit int) (string, error) {
	queryVec, err := embed(ctx, question)
	if err != nil {
		return "", fmt.Errorf("failed to embed question: %w", err)
	}
	results, err := store.Search(ctx, queryVec, limit)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No relevant information found.", nil
	}

	var b strings.Builder
	for _, r := range results {
		if r.Source != "" {
			fmt.Fprintf(&b, "# SOURCE: %s\n\n", r.Source)
		}
		b.WriteString(r.Content)
		b.WriteString("\n\n")
	}
	return b.String(), nil
}

// runQuestion answers one question grounded on the collection, streaming the
// model's reply to stdout.
func runQuestion(ctx context.Context, client *api.Client, store *vector.QdrantStore, question string) error {
	embed := func(ctx context.Context, text string) ([]float32, error) {
		return embedWithRetry(ctx, client, *embedModel, text)
	}
	contextBlock, err := retrieveContext(ctx, embed, store, question, *searchLimit)
	if err != nil {
		return err
	}

	stream := true
	req := &api.ChatRequest{
		Model: *chatModel,
		Messages: []api.Message{
			{Role: "system", Content: "Use the following context to answer the question.\n\nCONTEXT:\n" + contextBlock},
			{Role: "user", Content: question},
		},
		Stream: &stream,
	}

	fmt.Println("Question:", question)
	fmt.Print("Answer: ")
	if err := client.Chat(ctx, req, func(resp api.ChatResponse) error {
		fmt.Print(resp.Message.Content)
		return nil
	}); err != nil {
		return fmt.Errorf("chat request failed: %w", err)
	}
	fmt.Println()
	return nil
}

// findDocuments collects the PDF, text and markdown files under root.
func findDocuments(root string) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".pdf", ".txt", ".md":
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// newOllamaClient builds the official API client and verifies the server
// is reachable before a long indexing run starts.
func newOllamaClient() (*api.Client, error) {
	rawURL := os.Getenv("OLLAMA_HOST")
	if rawURL == "" {
		rawURL = "http://localhost:11434"
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid OLLAMA_HOST URL: %w", err)
	}

	client := api.NewClient(parsed, &http.Client{Timeout: 30 * time.Second})

	resp, err := http.Get(rawURL + "/api/tags")
	if err != nil {
		return nil, fmt.Errorf("cannot connect to Ollama server at %s: %w", rawURL, err)
	}
	resp.Body.Close()
	return client, nil
}

// embedWithRetry requests an embedding with exponential backoff; transient
// Ollama hiccups during a long run should not abort the whole index.
func embedWithRetry(ctx context.Context, client *api.Client, model, text string) ([]float32, error) {
	// Oversized prompts destabilize the embeddings endpoint.
	const maxPromptSize = 2048
	if len(text) > maxPromptSize {
		text = text[:maxPromptSize]
	}

	const maxRetries = 3
	baseDelay := time.Second

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		resp, err := client.Embeddings(reqCtx, &api.EmbeddingRequest{Model: model, Prompt: text})
		cancel()
		if err == nil {
			out := make([]float32, len(resp.Embedding))
			for i, v := range resp.Embedding {
				out[i] = float32(v)
			}
			return out, nil
		}
		lastErr = err
		time.Sleep(time.Duration(math.Pow(2, float64(attempt))) * baseDelay)
	}
	return nil, fmt.Errorf("embedding failed after %d attempts: %w", maxRetries, lastErr)
}
