// Package vault orchestrates record protection: it issues a fresh data key
// per record, seals the payload, and stores the opaque blob next to the
// wrapped key. Plaintext key material never outlives a single call.
package vault

import (
	"time"

	"github.com/goccy/go-json"

	"medivault/internal/crypto"
	dErrors "medivault/pkg/domain-errors"
)

// RecordMetadata describes a record being protected. SubjectID is the raw
// patient identifier; it is only ever written to the audit trail as a salted
// hash and never appears in the stored blob's metadata.
type RecordMetadata struct {
	RecordID       string
	OrganizationID string
	SubjectID      string
	ContentType    string
}

func (m *RecordMetadata) Validate() error {
	if m.RecordID == "" {
		return dErrors.New(dErrors.CodeValidation, "record ID is required")
	}
	if m.OrganizationID == "" {
		return dErrors.New(dErrors.CodeValidation, "organization ID is required")
	}
	return nil
}

// StoredRecord is what callers keep to get their data back.
type StoredRecord struct {
	Location    string    `json:"location"`
	ObjectKey   string    `json:"object_key"`
	KeyID       string    `json:"key_id"`
	EncryptedAt time.Time `json:"encrypted_at"`
}

// storedEnvelope is the on-storage blob layout: the sealed record plus the
// wrapped form of the key that sealed it. The key id is duplicated into the
// blob's storage metadata so it can be indexed without opening the blob.
type storedEnvelope struct {
	Version    int                  `json:"version"`
	KeyID      string               `json:"key_id"`
	WrappedKey []byte               `json:"wrapped_key"`
	Record     *crypto.SealedRecord `json:"record"`
}

const envelopeVersion = 1

func (e *storedEnvelope) marshal() ([]byte, error) {
	return json.Marshal(e)
}

func unmarshalEnvelope(blob []byte) (*storedEnvelope, error) {
	var env storedEnvelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeIntegrity, "stored blob corrupted")
	}
	if env.Record == nil || len(env.WrappedKey) == 0 {
		return nil, dErrors.New(dErrors.CodeIntegrity, "stored blob missing envelope sections")
	}
	return &env, nil
}
