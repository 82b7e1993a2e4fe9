// Package test provides in-memory fakes shared by handler tests
package test

import (
	"context"
	"sync"

	"github.com/wrale/game-session-auth/internal/deviceflow"
)

// MemoryStore is a deviceflow.Store backed by a map
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]deviceflow.Session

	// HealthErr is returned by CheckHealth
	HealthErr error
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]deviceflow.Session)}
}

// SaveSession stores a copy of s
func (m *MemoryStore) SaveSession(ctx context.Context, s *deviceflow.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.DeviceCode] = *s
	return nil
}

// GetSession returns a copy of the stored session or nil
func (m *MemoryStore) GetSession(ctx context.Context, deviceCode string) (*deviceflow.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[deviceCode]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// DeleteSession removes a session
func (m *MemoryStore) DeleteSession(ctx context.Context, deviceCode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, deviceCode)
	return nil
}

// CheckHealth returns HealthErr
func (m *MemoryStore) CheckHealth(ctx context.Context) error {
	return m.HealthErr
}

// Len returns the number of stored sessions
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
