package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cipherKey = "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"

func TestTokenCipher_RoundTrip(t *testing.T) {
	c, err := NewTokenCipher(cipherKey)
	require.NoError(t, err)

	sealed, err := c.Seal("my-access-token")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "my-access-token")

	opened, err := c.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "my-access-token", opened)
}

func TestTokenCipher_NoncesDiffer(t *testing.T) {
	c, err := NewTokenCipher(cipherKey)
	require.NoError(t, err)

	a, err := c.Seal("same-plaintext")
	require.NoError(t, err)
	b, err := c.Seal("same-plaintext")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestTokenCipher_WrongKey(t *testing.T) {
	c1, err := NewTokenCipher(cipherKey)
	require.NoError(t, err)
	c2, err := NewTokenCipher(strings.Repeat("42", 32))
	require.NoError(t, err)

	sealed, err := c1.Seal("token")
	require.NoError(t, err)

	_, err = c2.Open(sealed)
	assert.Error(t, err)
}

func TestTokenCipher_TamperedCiphertext(t *testing.T) {
	c, err := NewTokenCipher(cipherKey)
	require.NoError(t, err)

	sealed, err := c.Seal("token")
	require.NoError(t, err)

	// Flip the last hex digit.
	last := sealed[len(sealed)-1]
	flipped := "0"
	if last == '0' {
		flipped = "1"
	}
	_, err = c.Open(sealed[:len(sealed)-1] + flipped)
	assert.Error(t, err)
}

func TestTokenCipher_RejectsInvalidKeys(t *testing.T) {
	_, err := NewTokenCipher("zz")
	assert.Error(t, err, "non-hex key")

	_, err = NewTokenCipher("abcd")
	assert.Error(t, err, "short key")
}

func TestTokenCipher_OpenGarbage(t *testing.T) {
	c, err := NewTokenCipher(cipherKey)
	require.NoError(t, err)

	_, err = c.Open("not-hex!")
	assert.Error(t, err)

	_, err = c.Open("abcd") // shorter than a nonce
	assert.Error(t, err)
}
