package crypto

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "medivault/pkg/domain-errors"
)

type vitalsPayload struct {
	PatientRef string `json:"patient_ref"`
	HeartRate  int    `json:"heart_rate"`
}

func TestSealOpenRoundTrip(t *testing.T) {
	key := testKey(t)
	now := time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC)

	sealed, err := SealRecord(vitalsPayload{PatientRef: "P1", HeartRate: 72}, key, now)
	require.NoError(t, err)
	require.NotEmpty(t, sealed.IntegrityTag)
	assert.Equal(t, now.Truncate(time.Microsecond), sealed.EncryptedAt)

	var got vitalsPayload
	require.NoError(t, OpenRecord(sealed, key, &got))
	assert.Equal(t, "P1", got.PatientRef)
	assert.Equal(t, 72, got.HeartRate)
}

func TestSealedBlobHidesPayload(t *testing.T) {
	key := testKey(t)
	sealed, err := SealRecord(vitalsPayload{PatientRef: "P1"}, key, time.Now())
	require.NoError(t, err)

	blob, err := sealed.Marshal()
	require.NoError(t, err)
	assert.NotContains(t, string(blob), "P1")

	restored, err := UnmarshalSealedRecord(blob)
	require.NoError(t, err)

	var got vitalsPayload
	require.NoError(t, OpenRecord(restored, key, &got))
	assert.Equal(t, "P1", got.PatientRef)
}

func TestOpenRecordHMACTamper(t *testing.T) {
	key := testKey(t)
	sealed, err := SealRecord(vitalsPayload{PatientRef: "P1"}, key, time.Now())
	require.NoError(t, err)

	sealed.IntegrityTag[0] ^= 0x01

	var got vitalsPayload
	err = OpenRecord(sealed, key, &got)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeIntegrity))
}

func TestOpenRecordCiphertextTamper(t *testing.T) {
	key := testKey(t)
	sealed, err := SealRecord(vitalsPayload{PatientRef: "P1"}, key, time.Now())
	require.NoError(t, err)

	sealed.Envelope.Ciphertext[0] ^= 0x01

	var got vitalsPayload
	err = OpenRecord(sealed, key, &got)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeIntegrity))
}

func TestOpenRecordRedatedTimestamp(t *testing.T) {
	key := testKey(t)
	sealed, err := SealRecord(vitalsPayload{PatientRef: "P1"}, key, time.Now())
	require.NoError(t, err)

	// Re-dating the stored record changes the associated data, so the AEAD
	// tag no longer verifies.
	sealed.EncryptedAt = sealed.EncryptedAt.Add(time.Hour)

	var got vitalsPayload
	err = OpenRecord(sealed, key, &got)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeIntegrity))
}

func TestOpenRecordInnerTimestampMismatch(t *testing.T) {
	key := testKey(t)
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	sealed, err := SealRecord(vitalsPayload{PatientRef: "P1"}, key, now)
	require.NoError(t, err)

	// Simulate a writer that framed a different timestamp inside the
	// ciphertext than the one bound into the associated data.
	aad := []byte(sealed.EncryptedAt.Format(time.RFC3339Nano))
	inner, err := Decrypt(sealed.Envelope, key, aad)
	require.NoError(t, err)

	var decoded innerRecord
	require.NoError(t, json.Unmarshal(inner, &decoded))
	decoded.EncryptedAt = decoded.EncryptedAt.Add(time.Minute)
	reframed, err := json.Marshal(decoded)
	require.NoError(t, err)

	envelope, err := Encrypt(reframed, key, aad)
	require.NoError(t, err)
	forged := &SealedRecord{
		Envelope:     envelope,
		IntegrityTag: HMAC(envelope.Ciphertext, key),
		EncryptedAt:  sealed.EncryptedAt,
	}

	var got vitalsPayload
	err = OpenRecord(forged, key, &got)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeMetadataMismatch))
}

func TestOpenRecordWrongKey(t *testing.T) {
	sealed, err := SealRecord(vitalsPayload{PatientRef: "P1"}, testKey(t), time.Now())
	require.NoError(t, err)

	var got vitalsPayload
	err = OpenRecord(sealed, testKey(t), &got)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeIntegrity))
}

func TestUnmarshalSealedRecordGarbage(t *testing.T) {
	_, err := UnmarshalSealedRecord([]byte("{not json"))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeIntegrity))
}

func TestOpenRecordNil(t *testing.T) {
	var got vitalsPayload
	err := OpenRecord(nil, testKey(t), &got)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeIntegrity))
}
