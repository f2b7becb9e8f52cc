// Command rag-server exposes the document-chat pipeline over HTTP: upload
// PDF/TXT files, then ask questions against the indexed content.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/andrew/multidoc-chat/pkg/config"
	"github.com/andrew/multidoc-chat/pkg/extract"
	"github.com/andrew/multidoc-chat/pkg/llm"
	"github.com/andrew/multidoc-chat/pkg/retrieval"
	"github.com/andrew/multidoc-chat/pkg/session"
)

type UploadResponse struct {
	SessionID string `json:"session_id"`
	Indexed   bool   `json:"indexed"`
	Message   string `json:"message,omitempty"`
}

type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type ChatResponse struct {
	Answer string `json:"answer"`
}

type server struct {
	svc         *retrieval.Service
	sessions    *session.Manager
	maxUploadMB int64
}

var (
	configPath = flag.String("config", "config.yaml", "Path to the YAML config file")
	addr       = flag.String("addr", "", "Listen address (overrides config)")
	dataDir    = flag.String("data-dir", "", "Index/document data directory (overrides config)")
	backend    = flag.String("backend", "", "LLM backend: ollama, openai or none (overrides config)")
)

func main() {
	flag.Parse()

	// Optional .env for API keys and backend URLs.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dataDir != "" {
		cfg.Retrieval.DataDir = *dataDir
	}
	if *backend != "" {
		cfg.LLM.Backend = *backend
	}

	client, err := llm.NewClient(llm.Options{
		Backend: cfg.LLM.Backend,
		Model:   cfg.LLM.Model,
		BaseURL: cfg.LLM.OllamaURL,
		APIKey:  cfg.LLM.APIKey(),
	})
	if err != nil {
		log.Fatalf("failed to initialize LLM backend: %v", err)
	}
	if client != nil {
		defer client.Close()
	}

	svc, err := retrieval.New(retrieval.Config{
		DataDir:      cfg.Retrieval.DataDir,
		ChunkSize:    cfg.Retrieval.ChunkSize,
		ChunkOverlap: cfg.Retrieval.ChunkOverlap,
		TopK:         cfg.Retrieval.TopK,
		MaxTokens:    cfg.Retrieval.MaxTokens,
		Temperature:  cfg.LLM.Temperature,
	}, client)
	if err != nil {
		log.Fatalf("failed to initialize retrieval service: %v", err)
	}
	if svc.Degraded() {
		log.Printf("warning: no LLM backend configured, running in degraded mode")
	}
	log.Printf("loaded %d indexed chunks from %s", svc.Len(), cfg.Retrieval.DataDir)

	s := &server{
		svc:         svc,
		sessions:    session.NewManager(),
		maxUploadMB: cfg.Server.MaxUploadMB,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/chat", s.handleChat)
	mux.HandleFunc("/sessions", s.handleSessions)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: mux,
	}

	// Handle interrupts
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Println("\nShutting down...")
		cancel()
	}()

	go func() {
		log.Printf("starting rag-server on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server shutdown failed: %v", err)
	}
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleUpload accepts multiple PDF/TXT files, extracts and ingests their
// text, and returns a fresh session id for subsequent /chat calls. One
// unreadable file fails the whole batch so the index never silently misses
// content the caller believes was ingested.
func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	// ParseMultipartForm only bounds in-memory buffering; the reader caps
	// the request body itself.
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB<<20)
	if err := r.ParseMultipartForm(s.maxUploadMB << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, fmt.Sprintf("Upload exceeds the %d MB limit", s.maxUploadMB), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		http.Error(w, "No files uploaded", http.StatusBadRequest)
		return
	}

	texts := make([]string, 0, len(files))
	for _, header := range files {
		f, err := header.Open()
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open %s: %v", header.Filename, err), http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to read %s: %v", header.Filename, err), http.StatusBadRequest)
			return
		}
		text, err := extract.FromUpload(header.Filename, data)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		texts = append(texts, text)
	}

	n, err := s.svc.Ingest(r.Context(), texts)
	switch {
	case errors.Is(err, retrieval.ErrEmptyInput):
		http.Error(w, "No readable text extracted from uploaded files", http.StatusBadRequest)
		return
	case errors.Is(err, retrieval.ErrEmbeddingUnavailable):
		http.Error(w, "Embedding backend not configured", http.StatusServiceUnavailable)
		return
	case err != nil:
		http.Error(w, "Upload failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	sessionID := s.sessions.Create()
	writeJSON(w, http.StatusOK, UploadResponse{
		SessionID: sessionID,
		Indexed:   true,
		Message:   fmt.Sprintf("Ingested %d chunks", n),
	})
}

// handleChat answers a question for an existing session and records the
// exchange on its transcript.
func (s *server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if _, err := s.sessions.Get(req.SessionID); err != nil {
		http.Error(w, "Invalid or expired session_id. Re-upload documents.", http.StatusBadRequest)
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		http.Error(w, "Message cannot be empty", http.StatusBadRequest)
		return
	}

	answer, err := s.svc.Query(r.Context(), message, 0, 0)
	if err != nil {
		http.Error(w, "Chat failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if err := s.sessions.AppendTurn(req.SessionID, message, answer); err != nil {
		// Session vanished mid-request; the answer is still valid.
		log.Printf("warning: could not record transcript for %s: %v", req.SessionID, err)
	}

	writeJSON(w, http.StatusOK, ChatResponse{Answer: answer})
}

func (s *server) handleSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": s.sessions.IDs()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("error encoding response: %v", err)
	}
}
