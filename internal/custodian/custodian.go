// Package custodian talks to the key-management collaborator that generates
// and unwraps data-encryption keys. The core never persists raw key material;
// only the wrapped form leaves this package for storage.
package custodian

import "context"

// Algorithm identifies the cipher a data key is generated for.
const Algorithm = "AES-256-GCM"

// KeyBits is the data key length in bits.
const KeyBits = 256

// DataKey is an ephemeral data-encryption key. Plaintext exists only for the
// duration of one encrypt or decrypt call; callers zero it when done. Only
// Wrapped may be stored or logged.
type DataKey struct {
	KeyID     string
	Plaintext []byte
	Wrapped   []byte
	Algorithm string
	Bits      int
}

// KeyService is the external key-management collaborator.
type KeyService interface {
	// GenerateDataKey mints a fresh data key and returns both the plaintext
	// form for immediate use and the wrapped form for storage.
	GenerateDataKey(ctx context.Context) (*DataKey, error)

	// Unwrap recovers the plaintext key from its wrapped form.
	Unwrap(ctx context.Context, wrapped []byte) ([]byte, error)
}
