// Package memory provides the in-memory audit store, partitioned by
// organization to mirror the persisted layout.
package memory

import (
	"context"
	"sync"

	"medivault/internal/audit"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events map[string][]audit.Event // keyed by organization ID
}

func New() *InMemoryStore {
	return &InMemoryStore{events: make(map[string][]audit.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	org := event.Actor.OrganizationID
	s.events[org] = append(s.events[org], event)
	return nil
}

func (s *InMemoryStore) Query(_ context.Context, filter audit.Filter) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []audit.Event
	for _, event := range s.events[filter.OrganizationID] {
		if !matches(event, filter) {
			continue
		}
		matched = append(matched, event)
		if filter.Limit > 0 && len(matched) >= filter.Limit {
			break
		}
	}
	return matched, nil
}

func matches(event audit.Event, filter audit.Filter) bool {
	if filter.ActorID != "" && event.Actor.UserID != filter.ActorID {
		return false
	}
	if filter.Level != "" && event.Level != filter.Level {
		return false
	}
	if !filter.From.IsZero() && event.Timestamp.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && !event.Timestamp.Before(filter.To) {
		return false
	}
	if len(filter.Types) > 0 {
		found := false
		for _, t := range filter.Types {
			if event.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
