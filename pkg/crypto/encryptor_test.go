package crypto

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEncryptor_Ephemeral(t *testing.T) {
	enc, err := NewEncryptor("")
	require.NoError(t, err)
	assert.Len(t, enc.identities, 1)
	assert.Contains(t, enc.PublicKey(), "age1")
}

func TestNewEncryptor_SameKeySameRecipient(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	enc1, err := NewEncryptor(key)
	require.NoError(t, err)
	enc2, err := NewEncryptor(" " + key + " ")
	require.NoError(t, err)

	assert.Equal(t, enc1.PublicKey(), enc2.PublicKey())
}

func TestNewEncryptor_InvalidKey(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	_, err = NewEncryptor(key + ",invalid-key-format")
	assert.ErrorContains(t, err, "parsing identity 2")
}

func TestGenerateKey_Unique(t *testing.T) {
	key1, err := GenerateKey()
	require.NoError(t, err)
	key2, err := GenerateKey()
	require.NoError(t, err)

	assert.NotEqual(t, key1, key2)
	assert.Contains(t, key1, "AGE-SECRET-KEY-")
}

func TestEncrypt_Decrypt(t *testing.T) {
	enc, err := NewEncryptor("")
	require.NoError(t, err)

	plaintext := []byte(`{"port": 3389, "state": "open"}`)

	ciphertext, err := enc.Encrypt(plaintext)
	require.NoError(t, err)
	assert.True(t, IsSealed(ciphertext))
	assert.False(t, IsSealed(plaintext))

	decrypted, err := enc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestSeal_Open_Streaming(t *testing.T) {
	enc, err := NewEncryptor("")
	require.NoError(t, err)

	// Larger than one age chunk (64 KiB).
	plaintext := bytes.Repeat([]byte(`{"A":"203.0.113.10"}`), 8<<10)

	var sealed bytes.Buffer
	w, err := enc.Seal(&sealed)
	require.NoError(t, err)
	_, err = io.Copy(w, bytes.NewReader(plaintext))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := enc.Open(&sealed)
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestDecrypt_AfterRotation(t *testing.T) {
	oldKey, err := GenerateKey()
	require.NoError(t, err)
	newKey, err := GenerateKey()
	require.NoError(t, err)

	before, err := NewEncryptor(oldKey)
	require.NoError(t, err)
	ciphertext, err := before.Encrypt([]byte("questionnaire"))
	require.NoError(t, err)

	after, err := NewEncryptor(newKey + "," + oldKey)
	require.NoError(t, err)
	assert.NotEqual(t, before.PublicKey(), after.PublicKey())

	plain, err := after.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "questionnaire", string(plain))

	// The old key alone cannot read data sealed after the rotation.
	fresh, err := after.Encrypt([]byte("port scan"))
	require.NoError(t, err)
	_, err = before.Decrypt(fresh)
	assert.Error(t, err)
}

func TestDecrypt_Garbage(t *testing.T) {
	enc, err := NewEncryptor("")
	require.NoError(t, err)

	_, err = enc.Decrypt([]byte("not encrypted"))
	assert.ErrorIs(t, err, ErrNotSealed)
}
