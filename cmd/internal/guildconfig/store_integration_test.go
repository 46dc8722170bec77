package guildconfig

import (
	"context"
	"testing"
	"time"

	"pinbot/cmd/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration tests are enabled when PINBOT_DATABASE_URL or PINBOT_MONGO_TEST_URI is set.

func storeRoundTrip(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := st.Get(ctx, "g1")
	assert.ErrorIs(t, err, ErrNotFound)

	cfg := ServerConfig{GuildID: "g1", GuildName: "Guild", CreatedAt: created, UpdatedAt: created}
	cfg.Roles.Special1M = RoleRef{ID: "r1", Name: "Special 1m"}
	_, err = st.Put(ctx, cfg)
	require.NoError(t, err)

	cfg.Roles.Special1M.ID = "r2"
	cfg.CreatedAt = created.Add(time.Hour)
	cfg.UpdatedAt = created.Add(time.Hour)
	saved, err := st.Put(ctx, cfg)
	require.NoError(t, err)
	assert.True(t, saved.CreatedAt.Equal(created))
	assert.True(t, saved.UpdatedAt.Equal(created.Add(time.Hour)))

	got, err := st.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "r2", got.Roles.Special1M.ID)

	all, err := st.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	storeRoundTrip(t, NewMemoryStore())
}

func TestPostgresStore_RoundTrip(t *testing.T) {
	pool := storetest.OpenPool(t)
	schema := storetest.MigratedSchema(t, pool)
	storeRoundTrip(t, NewPostgresStore(pool, schema))
}

func TestMongoStore_RoundTrip(t *testing.T) {
	db := storetest.OpenMongo(t)
	st, err := NewMongoStore(context.Background(), db)
	require.NoError(t, err)
	storeRoundTrip(t, st)
}
