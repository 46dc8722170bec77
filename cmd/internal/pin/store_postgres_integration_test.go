package pin

import (
	"context"
	"testing"

	"pinbot/cmd/internal/store/storetest"

	"github.com/stretchr/testify/require"
)

// Integration tests are enabled when PINBOT_DATABASE_URL is set.

func TestPostgresStore_Contract(t *testing.T) {
	pool := storetest.OpenPool(t)
	schema := storetest.MigratedSchema(t, pool)

	st, err := NewPostgresStore(pool, WithSchema(schema))
	require.NoError(t, err)
	storeContract(t, st)
}

func TestPostgresStore_ServiceRoundTrip(t *testing.T) {
	pool := storetest.OpenPool(t)
	schema := storetest.MigratedSchema(t, pool)

	st, err := NewPostgresStore(pool, WithSchema(schema))
	require.NoError(t, err)
	svc, err := NewService(st)
	require.NoError(t, err)

	ctx := context.Background()
	p, err := svc.AddPin(ctx, AddInput{Code: "12345678", UserID: "u1", UserTag: "alice", RoleName: "special lifetime", RoleID: "r1"})
	require.NoError(t, err)
	require.Equal(t, StatusActive, p.Status)

	found, err := svc.FindByUserID(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.True(t, found[0].ExpiresAt.Equal(p.ExpiresAt))
}
