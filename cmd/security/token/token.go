package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
)

// ErrInvalidLength is returned for a non-positive or oversized length.
var ErrInvalidLength = errors.New("token length out of range")

const (
	maxDigits      = 32
	maxOpaqueBytes = 256
)

var ten = big.NewInt(10)

// NewNumeric returns a string of exactly digits decimal digits.
// The first digit is never zero so the value survives numeric round-trips.
func NewNumeric(digits int) (string, error) {
	if digits <= 0 || digits > maxDigits {
		return "", ErrInvalidLength
	}

	var b strings.Builder
	b.Grow(digits)
	for i := range digits {
		limit, offset := ten, int64(0)
		if i == 0 {
			limit, offset = big.NewInt(9), 1
		}
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64() + offset))
	}
	return b.String(), nil
}

// NumericGenerator returns a generator of fixed-width numeric codes.
func NumericGenerator(digits int) func() (string, error) {
	return func() (string, error) { return NewNumeric(digits) }
}

// NewOpaque returns nBytes of randomness encoded as unpadded base64url.
func NewOpaque(nBytes int) (string, error) {
	if nBytes <= 0 || nBytes > maxOpaqueBytes {
		return "", ErrInvalidLength
	}
	buf := make([]byte, nBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Fingerprint is a short, non-reversible label for a secret, safe for logs.
func Fingerprint(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:6])
}
