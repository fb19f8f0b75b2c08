// Package storage defines the object storage collaborator that durably keeps
// ciphertext blobs. The vault never hands it plaintext.
package storage

import (
	"context"
	"time"
)

// Metadata is the small string map stored alongside a blob. The vault uses
// it to index the wrapped key id without opening the blob.
type Metadata map[string]string

// Object is a stored blob plus its metadata.
type Object struct {
	Key      string
	Data     []byte
	Metadata Metadata
	StoredAt time.Time
}

// ObjectStore is interface-driven so the in-memory implementation and an
// external blob service are interchangeable without rewiring the vault.
type ObjectStore interface {
	// Put stores the blob under key and returns its location.
	Put(ctx context.Context, key string, data []byte, meta Metadata) (string, error)

	// Get returns the blob stored at key, or sentinel.ErrNotFound.
	Get(ctx context.Context, key string) (*Object, error)

	// Delete removes the blob at key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns the keys under prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}
