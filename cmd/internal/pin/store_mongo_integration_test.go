package pin

import (
	"context"
	"testing"

	"pinbot/cmd/internal/store/storetest"

	"github.com/stretchr/testify/require"
)

// Integration tests are enabled when PINBOT_MONGO_TEST_URI is set.

func TestMongoStore_Contract(t *testing.T) {
	db := storetest.OpenMongo(t)

	st, err := NewMongoStore(context.Background(), db)
	require.NoError(t, err)
	storeContract(t, st)
}
