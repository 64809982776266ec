package security

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCipher_RoundTrip(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "keys", KeyFileName)
	c, err := NewCipher(keyPath)
	require.NoError(t, err)
	assert.Equal(t, keyPath, c.KeyPath())

	info, err := os.Stat(keyPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	assert.Equal(t, int64(keySize), info.Size())

	encrypted, err := c.Encrypt("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", encrypted)

	again, err := c.Encrypt("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, encrypted, again, "every encryption uses a fresh nonce")

	reopened, err := NewCipher(keyPath)
	require.NoError(t, err)
	plain, err := reopened.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", plain)
}

func TestCipher_Empty(t *testing.T) {
	c, err := NewCipher(filepath.Join(t.TempDir(), KeyFileName))
	require.NoError(t, err)

	encrypted, err := c.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, encrypted)
	plain, err := c.Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, plain)
}

func TestCipher_DecryptErrors(t *testing.T) {
	c, err := NewCipher(filepath.Join(t.TempDir(), KeyFileName))
	require.NoError(t, err)

	_, err = c.Decrypt("not base64!")
	require.Error(t, err)

	_, err = c.Decrypt(base64.StdEncoding.EncodeToString([]byte("short")))
	require.ErrorIs(t, err, ErrCiphertextTooShort)

	other, err := NewCipher(filepath.Join(t.TempDir(), KeyFileName))
	require.NoError(t, err)
	encrypted, err := other.Encrypt("s3cret")
	require.NoError(t, err)
	_, err = c.Decrypt(encrypted)
	require.Error(t, err, "a different key cannot open the value")
}

func TestCipher_InvalidKeyFile(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), KeyFileName)
	require.NoError(t, os.WriteFile(keyPath, []byte("too short"), 0600))
	_, err := NewCipher(keyPath)
	require.Error(t, err)
}

func TestCipher_EncryptIfNeeded(t *testing.T) {
	c, err := NewCipher(filepath.Join(t.TempDir(), KeyFileName))
	require.NoError(t, err)

	encrypted, err := c.EncryptIfNeeded("plain")
	require.NoError(t, err)
	assert.NotEqual(t, "plain", encrypted)

	unchanged, err := c.EncryptIfNeeded(encrypted)
	require.NoError(t, err)
	assert.Equal(t, encrypted, unchanged)

	plain, err := c.Decrypt(unchanged)
	require.NoError(t, err)
	assert.Equal(t, "plain", plain)
}
