package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	err := New(CodeRateLimited, "too many attempts")
	assert.True(t, HasCode(err, CodeRateLimited))
	assert.False(t, HasCode(err, CodeInvalidCredentials))
	assert.False(t, HasCode(nil, CodeRateLimited))
}

func TestWrapPreservesChain(t *testing.T) {
	base := errors.New("connection refused")
	wrapped := Wrap(base, CodeStorageUnavailable, "put failed")

	require.Error(t, wrapped)
	assert.True(t, HasCode(wrapped, CodeStorageUnavailable))
	assert.ErrorIs(t, wrapped, base)

	// Wrapping again keeps both codes reachable.
	outer := Wrap(wrapped, CodeInternal, "upload aborted")
	assert.True(t, HasCode(outer, CodeInternal))
	assert.True(t, HasCode(outer, CodeStorageUnavailable))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))
}

func TestErrorsIsByCodeAndMessage(t *testing.T) {
	err := New(CodeInvalidToken, "invalid token")
	assert.ErrorIs(t, err, New(CodeInvalidToken, "invalid token"))
	assert.NotErrorIs(t, err, New(CodeInvalidToken, "other message"))
	assert.NotErrorIs(t, err, New(CodeSessionExpired, "invalid token"))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeIntegrity, CodeOf(New(CodeIntegrity, "tag mismatch")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))

	wrapped := fmt.Errorf("outer: %w", New(CodeMetadataMismatch, "timestamp drift"))
	assert.Equal(t, CodeMetadataMismatch, CodeOf(wrapped))
}
