// Package identity defines the credential directory collaborator. The core
// only reads from it; provisioning operators is an external concern.
package identity

import "context"

// Credential is one operator's directory entry. PasswordHash is a bcrypt
// hash; the plaintext password never appears in this package.
type Credential struct {
	UserID         string
	Username       string
	PasswordHash   string
	OrganizationID string
	Role           string
	Permissions    []string
	IsActive       bool
}

// Store looks up operator credentials by username. Implementations return
// sentinel.ErrNotFound for unknown usernames; callers must not surface that
// distinction to end users.
type Store interface {
	LookupCredential(ctx context.Context, username string) (*Credential, error)
}
