package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"medivault/internal/auth/models"
	"medivault/pkg/platform/sentinel"
)

const sessionKeyPrefix = "session:id:"

// RedisStore is the shared-state session store for multi-instance
// deployments. Session documents carry their own TTL so Redis expiry tracks
// session expiry; the sweep is a no-op here.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func sessionKey(id string) string { return sessionKeyPrefix + id }

func (s *RedisStore) Create(ctx context.Context, session *models.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return sentinel.ErrExpired
	}
	ok, err := s.client.SetNX(ctx, sessionKey(session.ID), payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	if !ok {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *RedisStore) FindByID(ctx context.Context, id string) (*models.Session, error) {
	payload, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

func (s *RedisStore) Revoke(ctx context.Context, id string, at time.Time) error {
	session, err := s.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if session.Status == models.SessionStatusRevoked {
		return nil
	}

	session.ApplyRevocation(at)
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	// Keep the revoked document around until its natural expiry so every
	// verify in the fleet observes the revocation.
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, sessionKey(id), payload, ttl).Err()
}

// SweepExpired is a no-op: Redis TTLs remove expired session documents.
func (s *RedisStore) SweepExpired(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}
