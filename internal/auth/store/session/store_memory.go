package session

import (
	"context"
	"sync"
	"time"

	"medivault/internal/auth/models"
	"medivault/pkg/platform/sentinel"
)

// InMemoryStore keeps sessions in a map guarded by a mutex. Suitable for a
// single process; use the Redis store when instances must share state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

func New() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*models.Session)}
}

func (s *InMemoryStore) Create(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; exists {
		return sentinel.ErrConflict
	}
	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if session, ok := s.sessions[id]; ok {
		copied := *session
		return &copied, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) Revoke(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[id]; ok {
		session.ApplyRevocation(at)
	}
	return nil
}

func (s *InMemoryStore) SweepExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, session := range s.sessions {
		if session.IsExpiredAt(now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}
