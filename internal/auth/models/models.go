// Package models holds the session manager's domain types and the session
// state machine.
package models

import (
	"time"

	dErrors "medivault/pkg/domain-errors"
)

// SessionStatus tracks the session state machine: Active -> Expired
// (time-driven) and Active -> Revoked (explicit). No transition leaves
// Expired or Revoked.
type SessionStatus string

const (
	SessionStatusActive  SessionStatus = "active"
	SessionStatusRevoked SessionStatus = "revoked"
)

// ClientContext captures where an authentication attempt came from.
type ClientContext struct {
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`
}

// Session is owned exclusively by the session manager. A session is usable
// iff now is within [IssuedAt, ExpiresAt) and it has not been revoked.
type Session struct {
	ID             string        `json:"id"`
	UserID         string        `json:"user_id"`
	Username       string        `json:"username"`
	OrganizationID string        `json:"organization_id"`
	Role           string        `json:"role"`
	Permissions    []string      `json:"permissions"`
	Client         ClientContext `json:"client"`
	Status         SessionStatus `json:"status"`
	IssuedAt       time.Time     `json:"issued_at"`
	ExpiresAt      time.Time     `json:"expires_at"`
	RevokedAt      *time.Time    `json:"revoked_at,omitempty"`
}

// IsExpiredAt reports whether the session lifetime has passed at t.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// IsUsableAt reports whether the session can authorize work at t.
func (s *Session) IsUsableAt(t time.Time) bool {
	return s.Status == SessionStatusActive && !t.Before(s.IssuedAt) && t.Before(s.ExpiresAt)
}

// ApplyRevocation moves the session to Revoked. Idempotent.
func (s *Session) ApplyRevocation(at time.Time) {
	if s.Status == SessionStatusRevoked {
		return
	}
	s.Status = SessionStatusRevoked
	s.RevokedAt = &at
}

// HasPermission reports whether the session carries the named permission.
func (s *Session) HasPermission(perm string) bool {
	for _, p := range s.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// AuthenticateRequest is the input to Service.Authenticate.
type AuthenticateRequest struct {
	Username string
	Password string
	Client   ClientContext
}

// Validate rejects structurally unusable requests before any store access.
func (r *AuthenticateRequest) Validate() error {
	if r.Username == "" {
		return dErrors.New(dErrors.CodeValidation, "username is required")
	}
	if r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "password is required")
	}
	return nil
}

// AuthenticateResult carries the issued session and its signed token.
type AuthenticateResult struct {
	Session *Session
	Token   string
}
