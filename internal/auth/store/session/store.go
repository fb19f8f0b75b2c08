// Package session provides the session store abstraction with in-memory and
// Redis implementations. The store interface is how multi-instance
// deployments share session state: swap the in-memory store for Redis and
// revocation becomes visible across processes.
package session

import (
	"context"
	"time"

	"medivault/internal/auth/models"
)

// Store persists sessions. Implementations return sentinel.ErrNotFound when
// a session does not exist.
type Store interface {
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, id string) (*models.Session, error)

	// Revoke marks a session revoked. Idempotent: revoking a missing or
	// already-revoked session is not an error. Once applied, every
	// subsequent FindByID observes the revocation.
	Revoke(ctx context.Context, id string, at time.Time) error

	// SweepExpired removes sessions whose ExpiresAt has passed. This is
	// housekeeping only; expiry is enforced at verification time.
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}
