package pin

import (
	"context"
	"sync"
	"testing"
	"time"

	"pinbot/cmd/internal/audit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type queuedNote struct {
	userID  string
	message string
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []queuedNote
}

func (n *recordingNotifier) Queue(_ context.Context, userID, message string, _ time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, queuedNote{userID: userID, message: message})
	return nil
}

func TestExpiringWithin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.add(t, "11111111", "u1", "a", "Special 1m")
	f.add(t, "22222222", "u2", "b", "Special 3m")
	f.add(t, "33333333", "u3", "c", "Special Lifetime")

	got, err := f.svc.ExpiringWithin(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "11111111", got[0].Code)

	got, err = f.svc.ExpiringWithin(ctx, 100*24*time.Hour)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestArchiveExpired(t *testing.T) {
	notes := &recordingNotifier{}
	f := newFixture(t, WithArchiveNotifier(notes))
	ctx := context.Background()

	f.add(t, "11111111", "u1", "a", "Special 1m")
	f.add(t, "22222222", "u2", "b", "Special 1y")

	f.svc.now = func() time.Time { return testNow.Add(40 * 24 * time.Hour) }

	archived, err := f.svc.ArchiveExpired(ctx, "scheduler")
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, "11111111", archived[0].Code)
	assert.Equal(t, StatusArchived, archived[0].Status)

	left, err := f.store.Find(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "22222222", left[0].Code)

	moved := f.store.Archived()
	require.Len(t, moved, 1)
	assert.Equal(t, StatusArchived, moved[0].Status)
	assert.Equal(t, testNow.Add(40*24*time.Hour), moved[0].ArchivedAt)

	require.Len(t, notes.notes, 1)
	assert.Equal(t, queuedNote{userID: "u1", message: "Your pin 11111111 has been archived."}, notes.notes[0])

	entries := f.entries(t)
	assert.Equal(t, audit.ActionArchive, entries[0].Action)
	assert.Equal(t, "scheduler", entries[0].PerformedBy)

	again, err := f.svc.ArchiveExpired(ctx, "scheduler")
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestFlagLettered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.add(t, "11111111", "u1", "a", "Special 1m")
	f.add(t, "2222b222", "u2", "b", "Special 1m")
	f.add(t, "3333c333", "u3", "c", "Special 3m")

	// Simulate a legacy record written before the flag existed.
	legacy, err := f.store.FindOne(ctx, Filter{Code: "3333c333"})
	require.NoError(t, err)
	legacy.Metadata.ContainsLetters = false
	_, err = f.store.Update(ctx, legacy)
	require.NoError(t, err)

	rep, err := f.svc.FlagLettered(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Scanned)
	assert.Equal(t, 2, rep.WithLetters)
	assert.Equal(t, 1, rep.NewlyMarked)
	assert.Equal(t, map[string]int{"Special 1m": 1, "Special 3m": 1}, rep.ByRole)

	fixed, err := f.store.FindOne(ctx, Filter{Code: "3333c333"})
	require.NoError(t, err)
	assert.True(t, fixed.Metadata.ContainsLetters)

	rep, err = f.svc.FlagLettered(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.NewlyMarked)
}

func TestBackfill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.Insert(ctx, Pin{
		ID:        "01HQ0000000000000000000000",
		Code:      "44444444",
		UserID:    "legacy",
		ExpiresAt: testNow.Add(-time.Hour),
		Status:    StatusActive,
	})
	require.NoError(t, err)
	f.add(t, "55555555", "fresh", "f", "Special 1m")

	n, err := f.svc.Backfill(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	p, err := f.store.FindOne(ctx, Filter{UserID: "legacy"})
	require.NoError(t, err)
	assert.Equal(t, BackfillRoleID, p.RoleID)
	assert.Equal(t, BackfillRoleName, p.RoleName)
	assert.Equal(t, StatusExpired, p.Status)
	assert.False(t, p.CreatedAt.IsZero())
	assert.Equal(t, testNow, p.UpdatedAt)

	n, err = f.svc.Backfill(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "second pass is a no-op")
}
