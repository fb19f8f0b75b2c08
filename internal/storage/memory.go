package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"medivault/pkg/platform/sentinel"
)

// InMemoryStore keeps blobs in a map. It backs tests and single-node
// deployments.
type InMemoryStore struct {
	mu      sync.RWMutex
	objects map[string]Object
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{objects: make(map[string]Object)}
}

func (s *InMemoryStore) Put(_ context.Context, key string, data []byte, meta Metadata) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := Object{
		Key:      key,
		Data:     append([]byte(nil), data...),
		Metadata: make(Metadata, len(meta)),
		StoredAt: time.Now().UTC(),
	}
	for k, v := range meta {
		stored.Metadata[k] = v
	}
	s.objects[key] = stored
	return "mem://" + key, nil
}

func (s *InMemoryStore) Get(_ context.Context, key string) (*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	copied := Object{
		Key:      obj.Key,
		Data:     append([]byte(nil), obj.Data...),
		Metadata: make(Metadata, len(obj.Metadata)),
		StoredAt: obj.StoredAt,
	}
	for k, v := range obj.Metadata {
		copied.Metadata[k] = v
	}
	return &copied, nil
}

func (s *InMemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *InMemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
