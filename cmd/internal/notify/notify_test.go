package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"pinbot/cmd/internal/pin"
	"pinbot/cmd/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type flakySender struct {
	fail map[string]bool
	sent []string
}

func (s *flakySender) SendDM(_ context.Context, userID, message string) error {
	if s.fail[userID] {
		return errors.New("cannot send messages to this user")
	}
	s.sent = append(s.sent, userID+":"+message)
	return nil
}

func newQueue(st Store) *Queue {
	q := NewQueue(st, discard)
	q.now = func() time.Time { return testNow }
	return q
}

// The archive path writes through pin.ArchiveNotifier.
var _ pin.ArchiveNotifier = (*Queue)(nil)

func TestQueue(t *testing.T) {
	st := NewMemoryStore()
	q := newQueue(st)
	ctx := context.Background()

	require.NoError(t, q.Queue(ctx, "u1", "hello", time.Time{}))
	err := q.Queue(ctx, "", "hello", testNow)
	assert.True(t, pin.IsValidation(err))

	all := st.All()
	require.Len(t, all, 1)
	assert.Equal(t, StatusPending, all[0].Status)
	assert.Equal(t, testNow, all[0].SendAt)
}

func TestDispatch_SendsDueOnly(t *testing.T) {
	st := NewMemoryStore()
	q := newQueue(st)
	ctx := context.Background()

	require.NoError(t, q.Queue(ctx, "u1", "now", testNow))
	require.NoError(t, q.Queue(ctx, "u2", "later", testNow.Add(time.Hour)))

	sender := &flakySender{}
	d := NewDispatcher(st, sender, WithClock(func() time.Time { return testNow }), WithLogger(discard))

	stats, err := d.Dispatch(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, Stats{Sent: 1}, stats)
	assert.Equal(t, []string{"u1:now"}, sender.sent)

	stats, err = d.Dispatch(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats, "sent notifications are not resent")
}

func TestDispatch_FailsAfterMaxAttempts(t *testing.T) {
	st := NewMemoryStore()
	q := newQueue(st)
	ctx := context.Background()
	require.NoError(t, q.Queue(ctx, "blocked", "hi", testNow))

	sender := &flakySender{fail: map[string]bool{"blocked": true}}
	d := NewDispatcher(st, sender, WithClock(func() time.Time { return testNow }), WithLogger(discard))

	for i := 1; i < MaxAttempts; i++ {
		stats, err := d.Dispatch(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, Stats{Retried: 1}, stats)
	}
	stats, err := d.Dispatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, Stats{Failed: 1}, stats)

	n := st.All()[0]
	assert.Equal(t, StatusFailed, n.Status)
	assert.Equal(t, MaxAttempts, n.Attempts)
	assert.Contains(t, n.LastError, "cannot send")

	stats, err = d.Dispatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}

func TestDispatch_RespectsLimit(t *testing.T) {
	st := NewMemoryStore()
	q := newQueue(st)
	ctx := context.Background()
	for _, u := range []string{"a", "b", "c"} {
		require.NoError(t, q.Queue(ctx, u, "m", testNow))
	}

	d := NewDispatcher(st, &flakySender{}, WithClock(func() time.Time { return testNow }), WithLogger(discard))
	stats, err := d.Dispatch(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Sent)
}

// Integration tests are enabled when PINBOT_DATABASE_URL or PINBOT_MONGO_TEST_URI is set.

func storeContract(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()

	q := newQueue(st)
	require.NoError(t, q.Queue(ctx, "u1", "first", testNow.Add(-time.Minute)))
	require.NoError(t, q.Queue(ctx, "u2", "future", testNow.Add(time.Hour)))

	due, err := st.Due(ctx, testNow, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "first", due[0].Message)

	due[0].Status = StatusSent
	due[0].Attempts = 1
	require.NoError(t, st.Save(ctx, due[0]))

	due, err = st.Due(ctx, testNow.Add(2*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "u2", due[0].UserID)

	assert.ErrorIs(t, st.Save(ctx, Notification{ID: "missing", Status: StatusSent}), errNotFound)
}

func TestMemoryStore_Contract(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestPostgresStore_Contract(t *testing.T) {
	pool := storetest.OpenPool(t)
	storeContract(t, NewPostgresStore(pool, storetest.MigratedSchema(t, pool)))
}

func TestMongoStore_Contract(t *testing.T) {
	st, err := NewMongoStore(context.Background(), storetest.OpenMongo(t))
	require.NoError(t, err)
	storeContract(t, st)
}
