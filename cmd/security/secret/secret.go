package secret

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/argon2"
)

// Public, stable errors for callers.
var (
	ErrSecretTooShort = errors.New("secret too short")
	ErrSecretTooLong  = errors.New("secret too long")
	ErrInvalidHash    = errors.New("invalid secret hash")
)

// Hash derives an encoded Argon2id hash of s.
func (c Config) Hash(s string) (string, error) {
	if err := c.Validate(s); err != nil {
		return "", err
	}

	salt := make([]byte, c.Params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}

	key := argon2.IDKey([]byte(s), salt, c.Params.Iterations, c.Params.MemoryKiB, c.Params.Parallelism, c.Params.KeyLength)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		c.Params.MemoryKiB,
		c.Params.Iterations,
		c.Params.Parallelism,
		b64.EncodeToString(salt),
		b64.EncodeToString(key),
	), nil
}

// Verify reports whether s matches encoded. A malformed or out-of-bounds hash
// yields ErrInvalidHash.
func (c Config) Verify(encoded, s string) (bool, error) {
	params, salt, want, err := decode(encoded)
	if err != nil {
		return false, err
	}
	if !params.within(c.Params) {
		return false, ErrInvalidHash
	}

	// #nosec G115 -- want is bounded by within().
	got := argon2.IDKey([]byte(s), salt, params.Iterations, params.MemoryKiB, params.Parallelism, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// Validate checks s against the length policy.
func (c Config) Validate(s string) error {
	n := utf8.RuneCountInString(s)
	switch {
	case n < c.MinLength:
		return ErrSecretTooShort
	case c.MaxLength > 0 && n > c.MaxLength:
		return ErrSecretTooLong
	}
	return nil
}

// within accepts hashes made with cheaper settings, up to twice the limits.
func (p Params) within(limits Params) bool {
	return p.MemoryKiB <= limits.MemoryKiB*2 &&
		p.Iterations <= limits.Iterations*2 &&
		uint32(p.Parallelism) <= uint32(limits.Parallelism)*2 &&
		p.SaltLength >= 8 && p.SaltLength <= 64 &&
		p.KeyLength >= 16 && p.KeyLength <= 128
}

func decode(encoded string) (Params, []byte, []byte, error) {
	parts := strings.Split(strings.TrimSpace(encoded), "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" || parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return Params{}, nil, nil, ErrInvalidHash
	}

	var mem, it, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &it, &par); err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}
	if mem == 0 || it == 0 || par == 0 || par > 255 {
		return Params{}, nil, nil, ErrInvalidHash
	}

	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}

	return Params{
		MemoryKiB:   mem,
		Iterations:  it,
		Parallelism: uint8(par),        // #nosec G115 -- checked above.
		SaltLength:  uint32(len(salt)), // #nosec G115 -- base64 of a short field.
		KeyLength:   uint32(len(key)),  // #nosec G115 -- base64 of a short field.
	}, salt, key, nil
}

// CheckHash reports whether encoded is a well-formed hash this Config would verify.
func (c Config) CheckHash(encoded string) error {
	params, _, _, err := decode(encoded)
	if err != nil {
		return err
	}
	if !params.within(c.Params) {
		return ErrInvalidHash
	}
	return nil
}
