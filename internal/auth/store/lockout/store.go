// Package lockout tracks failed authentication attempts per client context
// so repeated failures can be throttled before credentials are even checked.
package lockout

import (
	"context"
	"time"
)

// Key builds the lockout identifier from username and client IP. Tracking
// the pair blunts both single-account brute force and credential stuffing
// from one address without letting an attacker lock out a victim remotely.
func Key(username, ip string) string {
	return username + "|" + ip
}

// Store counts authentication failures inside a rolling window.
type Store interface {
	// RecordFailure registers a failure at the given time and returns the
	// number of failures remaining inside the window.
	RecordFailure(ctx context.Context, key string, at time.Time, window time.Duration) (int, error)

	// Failures returns the number of failures inside the window ending at
	// the given time.
	Failures(ctx context.Context, key string, at time.Time, window time.Duration) (int, error)

	// Clear drops the failure history for a key, typically after a
	// successful authentication.
	Clear(ctx context.Context, key string) error
}
