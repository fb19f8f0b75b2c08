package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testMasterKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	testSalt      = "00112233445566778899aabbccddeeff"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("MEDIVAULT_AUTH_SIGNING_KEY", "unit-test-signing-key")
	t.Setenv("MEDIVAULT_CRYPTO_MASTER_KEY", testMasterKey)
	t.Setenv("MEDIVAULT_CRYPTO_AUDIT_SALT", testSalt)
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8443", cfg.Server.Addr)
	assert.Equal(t, time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, 5, cfg.Auth.MaxFailures)
	assert.Equal(t, 15*time.Minute, cfg.Auth.FailureWindow)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestEnvOverridesDefaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MEDIVAULT_SERVER_ADDR", ":9000")
	t.Setenv("MEDIVAULT_AUTH_SESSION_TTL", "30m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 30*time.Minute, cfg.Auth.SessionTTL)
}

func TestFileLayerBetweenDefaultsAndEnv(t *testing.T) {
	setRequiredEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":7000\"\nauth:\n  max_failures: 8\n"), 0o600))
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("MEDIVAULT_AUTH_MAX_FAILURES", "3")

	cfg, err := Load()
	require.NoError(t, err)

	// File beats defaults; env beats file.
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, 3, cfg.Auth.MaxFailures)
}

func TestValidateRejectsBadKeys(t *testing.T) {
	setRequiredEnv(t)

	t.Run("missing signing key", func(t *testing.T) {
		t.Setenv("MEDIVAULT_AUTH_SIGNING_KEY", "")
		_, err := Load()
		assert.ErrorContains(t, err, "signing_key")
	})

	t.Run("short master key", func(t *testing.T) {
		t.Setenv("MEDIVAULT_CRYPTO_MASTER_KEY", "abcd")
		_, err := Load()
		assert.ErrorContains(t, err, "master_key")
	})

	t.Run("non-hex master key", func(t *testing.T) {
		t.Setenv("MEDIVAULT_CRYPTO_MASTER_KEY", "not hex at all")
		_, err := Load()
		assert.ErrorContains(t, err, "master_key")
	})
}

func TestDecodedKeyMaterial(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	key, err := cfg.MasterKey()
	require.NoError(t, err)
	assert.Len(t, key, 32)

	salt, err := cfg.AuditSalt()
	require.NoError(t, err)
	assert.Len(t, salt, 16)
}
