package token

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNumeric(t *testing.T) {
	t.Parallel()

	seen := map[string]bool{}
	for range 200 {
		code, err := NewNumeric(12)
		require.NoError(t, err)
		require.Len(t, code, 12)
		assert.NotEqual(t, byte('0'), code[0])
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9', code)
		}
		seen[code] = true
	}
	assert.Greater(t, len(seen), 190)

	_, err := NewNumeric(0)
	assert.ErrorIs(t, err, ErrInvalidLength)
	_, err = NewNumeric(maxDigits + 1)
	assert.ErrorIs(t, err, ErrInvalidLength)
}

func TestNumericGenerator(t *testing.T) {
	t.Parallel()

	gen := NumericGenerator(8)
	code, err := gen()
	require.NoError(t, err)
	assert.Len(t, code, 8)
}

func TestNewOpaque(t *testing.T) {
	t.Parallel()

	tok, err := NewOpaque(32)
	require.NoError(t, err)
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	require.NoError(t, err)
	assert.Len(t, raw, 32)

	_, err = NewOpaque(-1)
	assert.ErrorIs(t, err, ErrInvalidLength)
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	assert.Len(t, Fingerprint("abc"), 12)
	assert.Equal(t, Fingerprint("abc"), Fingerprint("abc"))
	assert.NotEqual(t, Fingerprint("abc"), Fingerprint("abd"))
}
