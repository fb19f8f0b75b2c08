package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "medivault/pkg/domain-errors"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key, err := NewKey()
	require.NoError(t, err)
	return key
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := testKey(t)

	for _, plaintext := range [][]byte{
		[]byte("hello"),
		[]byte(""),
		bytes.Repeat([]byte{0xAB}, 64*1024),
	} {
		record, err := Encrypt(plaintext, key, nil)
		require.NoError(t, err)

		got, err := Decrypt(record, key, nil)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	key := testKey(t)

	first, err := Encrypt([]byte("same input"), key, nil)
	require.NoError(t, err)
	second, err := Encrypt([]byte("same input"), key, nil)
	require.NoError(t, err)

	assert.NotEqual(t, first.Nonce, second.Nonce)
	assert.NotEqual(t, first.Ciphertext, second.Ciphertext)
}

func TestEncryptRejectsBadKeyLength(t *testing.T) {
	for _, size := range []int{0, 16, 31, 33, 64} {
		_, err := Encrypt([]byte("data"), make([]byte, size), nil)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidKeyLength))
	}
}

func TestDecryptFailsClosedOnTampering(t *testing.T) {
	key := testKey(t)
	record, err := Encrypt([]byte("patient vitals"), key, []byte("ctx"))
	require.NoError(t, err)

	// Flipping any single ciphertext byte (tag included, GCM appends it)
	// must fail with an integrity error and no plaintext.
	for i := range record.Ciphertext {
		tampered := &EncryptedRecord{
			Nonce:          record.Nonce,
			Ciphertext:     append([]byte{}, record.Ciphertext...),
			AssociatedData: record.AssociatedData,
		}
		tampered.Ciphertext[i] ^= 0x01

		plaintext, err := Decrypt(tampered, key, []byte("ctx"))
		require.Error(t, err, "byte %d", i)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeIntegrity))
		assert.Nil(t, plaintext)
	}
}

func TestDecryptBindsAssociatedData(t *testing.T) {
	key := testKey(t)
	record, err := Encrypt([]byte("secret"), key, []byte("record-a"))
	require.NoError(t, err)

	_, err = Decrypt(record, key, []byte("record-b"))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeIntegrity))
}

func TestDecryptWrongKey(t *testing.T) {
	record, err := Encrypt([]byte("secret"), testKey(t), nil)
	require.NoError(t, err)

	_, err = Decrypt(record, testKey(t), nil)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeIntegrity))
}

func TestDeriveKeyDeterministic(t *testing.T) {
	secret := []byte("operator passphrase")

	key1, salt, err := DeriveKey(secret, nil)
	require.NoError(t, err)
	require.Len(t, key1, KeySize)
	require.Len(t, salt, SaltSize)

	key2, _, err := DeriveKey(secret, salt)
	require.NoError(t, err)
	assert.Equal(t, key1, key2)

	other, _, err := DeriveKey([]byte("different"), salt)
	require.NoError(t, err)
	assert.NotEqual(t, key1, other)
}

func TestDeriveKeyEmptySecret(t *testing.T) {
	_, _, err := DeriveKey(nil, nil)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestHashAndVerify(t *testing.T) {
	sum, salt, err := Hash([]byte("P1"), nil)
	require.NoError(t, err)

	assert.True(t, VerifyHash([]byte("P1"), sum, salt))
	assert.False(t, VerifyHash([]byte("P2"), sum, salt))
	assert.False(t, VerifyHash([]byte("P1"), sum, bytes.Repeat([]byte{1}, SaltSize)))
}

func TestHashHexFixedLength(t *testing.T) {
	salt := bytes.Repeat([]byte{7}, SaltSize)

	short, err := HashHex([]byte("P1"), salt)
	require.NoError(t, err)
	long, err := HashHex(bytes.Repeat([]byte("long-identifier"), 20), salt)
	require.NoError(t, err)

	assert.Len(t, short, KeySize*2)
	assert.Len(t, long, KeySize*2)
	assert.NotEqual(t, short, long)
	assert.NotContains(t, short, "P1")
}

func TestHMACVerify(t *testing.T) {
	key := testKey(t)
	tag := HMAC([]byte("metadata"), key)

	assert.True(t, VerifyHMAC([]byte("metadata"), tag, key))
	assert.False(t, VerifyHMAC([]byte("metadata!"), tag, key))

	tag[0] ^= 0x01
	assert.False(t, VerifyHMAC([]byte("metadata"), tag, key))
}

func TestZeroKey(t *testing.T) {
	key := testKey(t)
	ZeroKey(key)
	assert.Equal(t, make([]byte, KeySize), key)
}
