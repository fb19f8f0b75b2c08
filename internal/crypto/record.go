package crypto

import (
	"time"

	"github.com/goccy/go-json"

	dErrors "medivault/pkg/domain-errors"
)

// SealedRecord wraps a structured payload with two independent integrity
// checks: the AEAD tag over the payload, and a separate HMAC over the
// resulting ciphertext. Either check failing is treated as tampering. The
// encryption timestamp is bound into the associated data and also carried
// inside the ciphertext, so the stored copy cannot be silently re-dated.
type SealedRecord struct {
	Envelope     *EncryptedRecord `json:"envelope"`
	IntegrityTag []byte           `json:"integrity_tag"`
	EncryptedAt  time.Time        `json:"encrypted_at"`
}

// innerRecord is what actually gets encrypted: the caller's payload plus the
// timestamp the outer record claims.
type innerRecord struct {
	Payload     json.RawMessage `json:"payload"`
	EncryptedAt time.Time       `json:"encrypted_at"`
}

// SealRecord encrypts a structured payload under key, binding the encryption
// timestamp into the authentication computation, then layers an HMAC over the
// ciphertext as a second integrity check.
func SealRecord(payload any, key []byte, now time.Time) (*SealedRecord, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "payload is not serializable")
	}

	now = now.UTC().Truncate(time.Microsecond)
	inner, err := json.Marshal(innerRecord{Payload: raw, EncryptedAt: now})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not frame record")
	}

	aad := []byte(now.Format(time.RFC3339Nano))
	envelope, err := Encrypt(inner, key, aad)
	if err != nil {
		return nil, err
	}

	return &SealedRecord{
		Envelope:     envelope,
		IntegrityTag: HMAC(envelope.Ciphertext, key),
		EncryptedAt:  now,
	}, nil
}

// OpenRecord verifies both integrity layers before any plaintext is released:
// the HMAC over the ciphertext first, then the AEAD tag during decryption.
// The recovered timestamp must match the one the record claims; a mismatch
// means the outer metadata was swapped and fails closed.
func OpenRecord(record *SealedRecord, key []byte, out any) error {
	if record == nil || record.Envelope == nil {
		return dErrors.New(dErrors.CodeIntegrity, "malformed sealed record")
	}

	if !VerifyHMAC(record.Envelope.Ciphertext, record.IntegrityTag, key) {
		return dErrors.New(dErrors.CodeIntegrity, "integrity tag mismatch")
	}

	aad := []byte(record.EncryptedAt.UTC().Truncate(time.Microsecond).Format(time.RFC3339Nano))
	inner, err := Decrypt(record.Envelope, key, aad)
	if err != nil {
		return err
	}

	var decoded innerRecord
	if err := json.Unmarshal(inner, &decoded); err != nil {
		return dErrors.Wrap(err, dErrors.CodeIntegrity, "record payload corrupted")
	}
	if !decoded.EncryptedAt.Equal(record.EncryptedAt) {
		return dErrors.New(dErrors.CodeMetadataMismatch, "encryption timestamp mismatch")
	}

	if err := json.Unmarshal(decoded.Payload, out); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "payload does not match target type")
	}
	return nil
}

// Marshal encodes a sealed record as a single opaque blob for storage.
func (r *SealedRecord) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// UnmarshalSealedRecord decodes a stored blob back into a sealed record.
func UnmarshalSealedRecord(blob []byte) (*SealedRecord, error) {
	var record SealedRecord
	if err := json.Unmarshal(blob, &record); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeIntegrity, "stored record corrupted")
	}
	return &record, nil
}
