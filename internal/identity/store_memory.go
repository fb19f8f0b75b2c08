package identity

import (
	"context"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"medivault/pkg/platform/sentinel"
)

// InMemoryStore keeps credentials in a map. It favors clarity over
// performance and backs tests and single-node deployments.
type InMemoryStore struct {
	mu    sync.RWMutex
	users map[string]Credential
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{users: make(map[string]Credential)}
}

// Seed registers a credential, hashing the supplied password with bcrypt.
func (s *InMemoryStore) Seed(cred Credential, password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	cred.PasswordHash = string(hashed)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[cred.Username] = cred
	return nil
}

func (s *InMemoryStore) LookupCredential(_ context.Context, username string) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cred, ok := s.users[username]; ok {
		copied := cred
		return &copied, nil
	}
	return nil, sentinel.ErrNotFound
}
