package custodian

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"medivault/internal/crypto"
	dErrors "medivault/pkg/domain-errors"
)

// LocalCustodian implements KeyService in-process by wrapping data keys under
// a single master key with AES-256-GCM. It serves tests and single-node
// deployments; production points the Client at an external service instead.
type LocalCustodian struct {
	masterKey []byte
}

// wrappedKey is the stored form: the key ID is bound into the wrap as
// associated data, so a wrapped key cannot be re-attributed to another ID.
type wrappedKey struct {
	KeyID    string                  `json:"key_id"`
	Envelope *crypto.EncryptedRecord `json:"envelope"`
}

// NewLocalCustodian creates a local custodian. The master key must be exactly
// 32 bytes and is held for the custodian's lifetime; it never appears in any
// wrapped output.
func NewLocalCustodian(masterKey []byte) (*LocalCustodian, error) {
	if len(masterKey) != crypto.KeySize {
		return nil, dErrors.New(dErrors.CodeInvalidKeyLength, "master key must be 32 bytes")
	}
	key := make([]byte, len(masterKey))
	copy(key, masterKey)
	return &LocalCustodian{masterKey: key}, nil
}

func (c *LocalCustodian) GenerateDataKey(_ context.Context) (*DataKey, error) {
	plaintext, err := crypto.NewKey()
	if err != nil {
		return nil, err
	}

	keyID := uuid.NewString()
	envelope, err := crypto.Encrypt(plaintext, c.masterKey, []byte(keyID))
	if err != nil {
		return nil, err
	}

	wrapped, err := json.Marshal(wrappedKey{KeyID: keyID, Envelope: envelope})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not encode wrapped key")
	}

	return &DataKey{
		KeyID:     keyID,
		Plaintext: plaintext,
		Wrapped:   wrapped,
		Algorithm: Algorithm,
		Bits:      KeyBits,
	}, nil
}

func (c *LocalCustodian) Unwrap(_ context.Context, wrapped []byte) ([]byte, error) {
	var stored wrappedKey
	if err := json.Unmarshal(wrapped, &stored); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "wrapped key is malformed")
	}
	return crypto.Decrypt(stored.Envelope, c.masterKey, []byte(stored.KeyID))
}

// KeyIDOf extracts the key ID a wrapped key was minted under without
// unwrapping it. Storage layers index stored records by this ID.
func KeyIDOf(wrapped []byte) (string, error) {
	var stored wrappedKey
	if err := json.Unmarshal(wrapped, &stored); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeValidation, "wrapped key is malformed")
	}
	return stored.KeyID, nil
}
