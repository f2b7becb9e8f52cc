// Package session tracks per-conversation transcripts. Sessions only scope
// chat history; retrieval always runs against the shared global index.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/andrew/multidoc-chat/pkg/models"
)

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("session not found")

// Manager holds all live sessions in memory. Sessions live until the
// process exits; there is no eviction.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*models.Transcript
}

// NewManager returns an empty session manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*models.Transcript)}
}

// Create starts a new session and returns its generated id.
func (m *Manager) Create() string {
	id := uuid.New().String()
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = &models.Transcript{
		SessionID: id,
		Created:   now,
		Updated:   now,
	}
	return id
}

// Get returns a copy of the transcript for id.
func (m *Manager) Get(id string) (models.Transcript, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.sessions[id]
	if !ok {
		return models.Transcript{}, ErrSessionNotFound
	}
	cp := *t
	cp.Messages = append([]models.Message(nil), t.Messages...)
	return cp, nil
}

// AppendTurn records one user/assistant exchange on the session.
func (m *Manager) AppendTurn(id, userMessage, assistantMessage string) error {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	t.Messages = append(t.Messages,
		models.Message{Role: models.RoleUser, Content: userMessage, Timestamp: now},
		models.Message{Role: models.RoleAssistant, Content: assistantMessage, Timestamp: now},
	)
	t.Updated = now
	return nil
}

// IDs lists the ids of all live sessions.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}
