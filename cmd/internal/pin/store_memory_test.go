package pin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_IsolatesCopies(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	p := Pin{ID: "a", Code: "12345678", UserID: "u1", Metadata: Metadata{Labels: map[string]string{"k": "v"}}}
	_, err := st.Insert(ctx, p)
	require.NoError(t, err)

	p.Metadata.Labels["k"] = "mutated"

	got, err := st.FindOne(ctx, Filter{Code: "12345678"})
	require.NoError(t, err)
	assert.Equal(t, "v", got.Metadata.Labels["k"])
}

func TestMemoryStore_UpdateReindexes(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	_, err := st.Insert(ctx, Pin{ID: "a", Code: "11111111", UserID: "u1"})
	require.NoError(t, err)
	_, err = st.Insert(ctx, Pin{ID: "b", Code: "22222222", UserID: "u2"})
	require.NoError(t, err)

	_, err = st.Update(ctx, Pin{ID: "a", Code: "22222222", UserID: "u1"})
	assert.ErrorIs(t, err, ErrDuplicatePin)

	_, err = st.Update(ctx, Pin{ID: "a", Code: "33333333", UserID: "u1"})
	require.NoError(t, err)

	_, err = st.FindOne(ctx, Filter{Code: "11111111"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = st.Insert(ctx, Pin{ID: "c", Code: "11111111", UserID: "u3"})
	require.NoError(t, err, "old code is free again")

	_, err = st.Update(ctx, Pin{ID: "missing", Code: "9", UserID: "9"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_DeleteRequiresSelector(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	_, err := st.DeleteOne(ctx, Filter{})
	assert.ErrorIs(t, err, ErrMissingSelector)
	_, err = st.DeleteMany(ctx, Filter{})
	assert.ErrorIs(t, err, ErrMissingSelector)
}

func TestFilter_ExpiryBounds(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := Pin{ExpiresAt: now}

	assert.True(t, Filter{ExpiresFrom: now, ExpiresTo: now}.Match(p))
	assert.False(t, Filter{ExpiresFrom: now.Add(time.Second)}.Match(p))
	assert.False(t, Filter{ExpiresTo: now.Add(-time.Second)}.Match(p))
	assert.False(t, Filter{ExpiredBefore: now}.Match(p))
	assert.True(t, Filter{ExpiredBefore: now.Add(time.Nanosecond)}.Match(p))
	assert.True(t, Filter{}.IsZero())
	assert.False(t, Filter{Lettered: true}.IsZero())
}
