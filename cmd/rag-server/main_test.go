package main

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrew/multidoc-chat/pkg/llm"
	"github.com/andrew/multidoc-chat/pkg/models"
	"github.com/andrew/multidoc-chat/pkg/retrieval"
	"github.com/andrew/multidoc-chat/pkg/session"
)

type stubClient struct{}

func (stubClient) Chat(ctx context.Context, messages []models.Message, config llm.ModelConfig) (models.Message, error) {
	return models.Message{Role: models.RoleAssistant, Content: "ok", Timestamp: time.Now()}, nil
}

func (stubClient) Generate(ctx context.Context, prompt string, config llm.ModelConfig) (string, error) {
	return "stub answer", nil
}

func (stubClient) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, 4), nil
}

func (stubClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, 4)
	}
	return out, nil
}

func (stubClient) Close() error { return nil }

func newTestServer(t *testing.T) *server {
	t.Helper()
	svc, err := retrieval.New(retrieval.Config{DataDir: t.TempDir()}, stubClient{})
	require.NoError(t, err)
	return &server{
		svc:         svc,
		sessions:    session.NewManager(),
		maxUploadMB: 8,
	}
}

func multipartUpload(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for name, content := range files {
		part, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func TestHandleUpload_CreatesSession(t *testing.T) {
	s := newTestServer(t)

	body, contentType := multipartUpload(t, map[string]string{
		"sky.txt":   "The sky is blue.",
		"grass.txt": "Grass is green.",
	})
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	s.handleUpload(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Indexed)
	assert.NotEmpty(t, resp.SessionID)
	assert.Contains(t, resp.Message, "2 chunks")
	assert.Equal(t, 2, s.svc.Len())

	_, err := s.sessions.Get(resp.SessionID)
	assert.NoError(t, err)
}

func TestHandleUpload_NoFiles(t *testing.T) {
	s := newTestServer(t)

	body, contentType := multipartUpload(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	s.handleUpload(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleUpload_BrokenPDFFailsBatch(t *testing.T) {
	s := newTestServer(t)

	body, contentType := multipartUpload(t, map[string]string{
		"good.txt": "readable text",
		"bad.pdf":  "not really a pdf",
	})
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	s.handleUpload(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	// Nothing from the batch may land in the index.
	assert.Equal(t, 0, s.svc.Len())
}

func TestHandleUpload_BodyOverLimitRejected(t *testing.T) {
	s := newTestServer(t)
	s.maxUploadMB = 1

	body, contentType := multipartUpload(t, map[string]string{
		"big.txt": strings.Repeat("a", 2<<20),
	})
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	s.handleUpload(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, 0, s.svc.Len())
}

func TestHandleUpload_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.handleUpload(rec, httptest.NewRequest(http.MethodGet, "/upload", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleChat_AnswersAndRecordsTranscript(t *testing.T) {
	s := newTestServer(t)
	id := s.sessions.Create()

	payload, _ := json.Marshal(ChatRequest{SessionID: id, Message: "What color is the sky?"})
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(payload))
	rec := httptest.NewRecorder()

	s.handleChat(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "stub answer", resp.Answer)

	transcript, err := s.sessions.Get(id)
	require.NoError(t, err)
	require.Len(t, transcript.Messages, 2)
	assert.Equal(t, models.RoleUser, transcript.Messages[0].Role)
	assert.Equal(t, models.RoleAssistant, transcript.Messages[1].Role)
}

func TestHandleChat_UnknownSession(t *testing.T) {
	s := newTestServer(t)

	payload, _ := json.Marshal(ChatRequest{SessionID: "missing", Message: "hi"})
	rec := httptest.NewRecorder()
	s.handleChat(rec, httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(payload)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleChat_EmptyMessage(t *testing.T) {
	s := newTestServer(t)
	id := s.sessions.Create()

	payload, _ := json.Marshal(ChatRequest{SessionID: id, Message: "   "})
	rec := httptest.NewRecorder()
	s.handleChat(rec, httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(payload)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandleSessions_ListsIDs(t *testing.T) {
	s := newTestServer(t)
	a := s.sessions.Create()
	b := s.sessions.Create()

	rec := httptest.NewRecorder()
	s.handleSessions(rec, httptest.NewRequest(http.MethodGet, "/sessions", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.ElementsMatch(t, []string{a, b}, resp["sessions"])
}

func TestHandleChat_InvalidBody(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.handleChat(rec, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("{broken")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
