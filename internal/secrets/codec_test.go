package secrets

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec(testKey)
	require.NoError(t, err)
	return c
}

func TestCodecRoundTrip(t *testing.T) {
	c := newTestCodec(t)

	for _, plaintext := range []string{
		"hello",
		"",
		"a much longer secret with spaces and unicode: ключ 秘密 🤫",
		strings.Repeat("x", 4096),
	} {
		ct, err := c.EncryptField(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, ct)

		got, err := c.DecryptField(ct)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestCodecNonDeterministicCiphertext(t *testing.T) {
	c := newTestCodec(t)

	ct1, err := c.EncryptField("same input")
	require.NoError(t, err)
	ct2, err := c.EncryptField("same input")
	require.NoError(t, err)

	// Fresh nonce per call, so identical plaintexts never collide at rest.
	assert.NotEqual(t, ct1, ct2)
}

func TestCodecTamperedCiphertext(t *testing.T) {
	c := newTestCodec(t)

	ct, err := c.EncryptField("hello")
	require.NoError(t, err)

	blob, err := base64.StdEncoding.DecodeString(ct)
	require.NoError(t, err)
	blob[len(blob)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(blob)

	_, err = c.DecryptField(tampered)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestCodecWrongKey(t *testing.T) {
	c := newTestCodec(t)
	other, err := NewCodec("ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")
	require.NoError(t, err)

	ct, err := c.EncryptField("hello")
	require.NoError(t, err)

	_, err = other.DecryptField(ct)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestCodecGarbageInput(t *testing.T) {
	c := newTestCodec(t)

	for _, input := range []string{"", "not base64 !!!", "YWJj", base64.StdEncoding.EncodeToString([]byte("short"))} {
		_, err := c.DecryptField(input)
		assert.ErrorIs(t, err, ErrDecryptionFailed, "input %q", input)
	}
}

func TestNewCodecKeyFormats(t *testing.T) {
	// hex
	_, err := NewCodec(testKey)
	assert.NoError(t, err)

	// base64
	_, err = NewCodec(base64.StdEncoding.EncodeToString(make([]byte, 32)))
	assert.NoError(t, err)

	// wrong sizes
	for _, key := range []string{"", "abcd", "0123456789abcdef"} {
		_, err = NewCodec(key)
		assert.ErrorIs(t, err, ErrInvalidKey, "key %q", key)
	}
}
