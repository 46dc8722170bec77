package pin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidCode(t *testing.T) {
	t.Parallel()

	for _, ok := range []string{"12345678", "123456789012345"} {
		assert.True(t, ValidCode(ok), ok)
	}
	for _, bad := range []string{"1234567", "1234567890123456", "1234abcd", "", " 12345678"} {
		assert.False(t, ValidCode(bad), bad)
	}
}

func TestContainsLetters(t *testing.T) {
	t.Parallel()

	assert.True(t, ContainsLetters("1234a678"))
	assert.True(t, ContainsLetters("Z"))
	assert.False(t, ContainsLetters("12345678"))
	assert.False(t, ContainsLetters("12-34_56"))
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	got, err := ParseDate(" 2024-02-29 ")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), got)

	_, err = ParseDate("2023-02-29")
	assert.ErrorIs(t, err, ErrInvalidDate)
	assert.True(t, IsValidation(err))
}

func TestDeriveStatus(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, StatusActive, DeriveStatus(Pin{ExpiresAt: now}, now))
	assert.Equal(t, StatusActive, DeriveStatus(Pin{ExpiresAt: now.Add(time.Second), Status: StatusExpired}, now))
	assert.Equal(t, StatusExpired, DeriveStatus(Pin{ExpiresAt: now.Add(-time.Second), Status: StatusActive}, now))
	assert.Equal(t, StatusArchived, DeriveStatus(Pin{ExpiresAt: now.Add(time.Hour), Status: StatusArchived}, now))
}

func TestErrorKinds(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, ConflictError{Op: "x", Field: FieldUserID}, ErrDuplicateUser)
	assert.ErrorIs(t, ConflictError{Op: "x", Field: FieldPin}, ErrDuplicatePin)
	assert.True(t, IsDuplicate(ConflictError{Op: "x", Field: FieldPin}))

	cause := assert.AnError
	se := storeErr("op", cause)
	assert.True(t, IsStore(se))
	assert.ErrorIs(t, se, cause)
	assert.Equal(t, se, storeErr("outer", se), "already-wrapped store errors pass through")

	assert.ErrorIs(t, OpError{Op: "x", Kind: ErrInvalidPage}, ErrValidation)
	assert.True(t, IsNotFound(notFound("x", "")))
}
