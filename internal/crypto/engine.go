// Package crypto implements the envelope encryption engine: authenticated
// encryption with associated data, key derivation, salted hashing, and keyed
// integrity tags. Key custody and storage live elsewhere; this package only
// ever sees key material for the duration of a single call.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"

	dErrors "medivault/pkg/domain-errors"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32

	// NonceSize is the AES-GCM nonce length in bytes (96 bits).
	NonceSize = 12

	// SaltSize is the salt length for key derivation and identifier hashing.
	SaltSize = 32

	// KDFIterations is the PBKDF2-SHA256 iteration count. OWASP puts the
	// 2023 floor at 210k for SHA-256.
	KDFIterations = 210_000
)

// EncryptedRecord is the output of one authenticated encryption call. The
// Ciphertext carries the GCM authentication tag; AssociatedData is stored in
// the clear but bound into the tag, so moving a record between contexts is
// detectable at decrypt time.
type EncryptedRecord struct {
	Nonce          []byte `json:"nonce"`
	Ciphertext     []byte `json:"ciphertext"`
	AssociatedData []byte `json:"associated_data,omitempty"`
}

// ZeroKey overwrites key material in place. Callers zero plaintext keys as
// soon as the encrypt or decrypt call that needed them returns.
func ZeroKey(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// NewKey generates a fresh random 32-byte key.
func NewKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("could not generate key: %w", err)
	}
	return key, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, dErrors.New(dErrors.CodeInvalidKeyLength,
			fmt.Sprintf("key must be %d bytes, got %d", KeySize, len(key)))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("could not init cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// Encrypt performs AES-256-GCM authenticated encryption with a fresh random
// nonce per call. The associated data is authenticated but not encrypted.
func Encrypt(plaintext, key, associatedData []byte) (*EncryptedRecord, error) {
	gcm, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("could not generate nonce: %w", err)
	}

	return &EncryptedRecord{
		Nonce:          nonce,
		Ciphertext:     gcm.Seal(nil, nonce, plaintext, associatedData),
		AssociatedData: associatedData,
	}, nil
}

// Decrypt verifies and decrypts a record. GCM verifies the authentication tag
// over ciphertext and associated data before releasing any plaintext, so a
// failed call never returns partial output. A tag or associated-data mismatch
// surfaces as an integrity failure without detail.
func Decrypt(record *EncryptedRecord, key, associatedData []byte) ([]byte, error) {
	gcm, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	if record == nil || len(record.Nonce) != NonceSize {
		return nil, dErrors.New(dErrors.CodeIntegrity, "malformed encrypted record")
	}

	plaintext, err := gcm.Open(nil, record.Nonce, record.Ciphertext, associatedData)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeIntegrity, "authentication failed")
	}
	return plaintext, nil
}

// DeriveKey stretches a secret into a 32-byte key via PBKDF2-SHA256. A random
// salt is generated when none is supplied; the same (secret, salt) pair always
// yields the same key.
func DeriveKey(secret, salt []byte) (key, usedSalt []byte, err error) {
	if len(secret) == 0 {
		return nil, nil, dErrors.New(dErrors.CodeValidation, "secret cannot be empty")
	}
	if salt == nil {
		salt = make([]byte, SaltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, nil, fmt.Errorf("could not generate salt: %w", err)
		}
	}
	return pbkdf2.Key(secret, salt, KDFIterations, KeySize, sha256.New), salt, nil
}

// Hash produces a salted one-way hash of data, suitable for pseudonymizing
// identifiers that must never be reversed. Uses the same KDF as DeriveKey.
func Hash(data, salt []byte) (sum, usedSalt []byte, err error) {
	return DeriveKey(data, salt)
}

// HashHex is Hash with a fixed salt and hex-encoded output, for callers that
// embed the digest in logs or events.
func HashHex(data, salt []byte) (string, error) {
	sum, _, err := Hash(data, salt)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum), nil
}

// VerifyHash recomputes the salted hash and compares in constant time.
func VerifyHash(data, sum, salt []byte) bool {
	computed, _, err := Hash(data, salt)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(computed, sum) == 1
}

// HMAC computes an HMAC-SHA256 tag over data.
func HMAC(data, key []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// VerifyHMAC compares an HMAC tag in constant time.
func VerifyHMAC(data, tag, key []byte) bool {
	return hmac.Equal(HMAC(data, key), tag)
}
