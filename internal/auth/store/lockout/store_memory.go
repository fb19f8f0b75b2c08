package lockout

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore keeps failure timestamps per key, pruned to the rolling
// window on every access.
type InMemoryStore struct {
	mu       sync.Mutex
	failures map[string][]time.Time
}

func New() *InMemoryStore {
	return &InMemoryStore{failures: make(map[string][]time.Time)}
}

func (s *InMemoryStore) RecordFailure(_ context.Context, key string, at time.Time, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := prune(s.failures[key], at, window)
	kept = append(kept, at)
	s.failures[key] = kept
	return len(kept), nil
}

func (s *InMemoryStore) Failures(_ context.Context, key string, at time.Time, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := prune(s.failures[key], at, window)
	if len(kept) == 0 {
		delete(s.failures, key)
	} else {
		s.failures[key] = kept
	}
	return len(kept), nil
}

func (s *InMemoryStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, key)
	return nil
}

func prune(stamps []time.Time, at time.Time, window time.Duration) []time.Time {
	cutoff := at.Add(-window)
	kept := stamps[:0]
	for _, stamp := range stamps {
		if stamp.After(cutoff) {
			kept = append(kept, stamp)
		}
	}
	return kept
}
