package audit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu   sync.Mutex
	seen []Entry
}

func (p *capturePublisher) Publish(e Entry) {
	p.mu.Lock()
	p.seen = append(p.seen, e)
	p.mu.Unlock()
}

func newTestLog(store Store, now *time.Time, opts ...Option) *Log {
	base := []Option{
		WithClock(func() time.Time { return *now }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return NewLog(store, append(base, opts...)...)
}

func ptr(s string) *string { return &s }

func TestRecord_AppendsAndPublishes(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	pub := &capturePublisher{}
	l := newTestLog(store, &now, WithPublisher(pub))
	ctx := context.Background()

	require.NoError(t, l.Record(ctx, ActionAdd, ptr("12345678"), "admin", map[string]string{"roleName": "Special 1m"}))
	require.NoError(t, l.Record(ctx, ActionDelete, nil, "admin", nil))

	assert.Equal(t, 2, store.Len())
	require.Len(t, pub.seen, 2)

	first := pub.seen[0]
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, ActionAdd, first.Action)
	assert.Equal(t, "12345678", *first.Pin)
	assert.Equal(t, now, first.PerformedAt)
	assert.JSONEq(t, `{"roleName":"Special 1m"}`, string(first.Details))

	second := pub.seen[1]
	assert.Nil(t, second.Pin)
	assert.JSONEq(t, `{}`, string(second.Details))
	assert.Less(t, first.ID, second.ID, "ids sort in append order")
}

func TestRecord_Rejects(t *testing.T) {
	now := time.Now().UTC()
	l := newTestLog(NewMemoryStore(), &now)
	ctx := context.Background()

	assert.ErrorIs(t, l.Record(ctx, Action("rename"), nil, "x", nil), ErrInvalidInput)
	assert.Error(t, l.Record(ctx, ActionAdd, nil, "x", map[string]any{"bad": make(chan int)}))

	var nilLog *Log
	assert.ErrorIs(t, nilLog.Record(ctx, ActionAdd, nil, "x", nil), ErrInvalidInput)
}

func TestList_FiltersNewestFirst(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	l := newTestLog(store, &now)
	ctx := context.Background()

	for i := range 6 {
		now = now.Add(time.Hour)
		action := ActionAdd
		if i%2 == 1 {
			action = ActionUpdateExpiry
		}
		require.NoError(t, l.Record(ctx, action, ptr("11111111"), "admin", map[string]int{"i": i}))
	}
	require.NoError(t, l.Record(ctx, ActionDelete, ptr("22222222"), "admin", nil))

	all, err := l.List(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 7)
	assert.Equal(t, ActionDelete, all[0].Action)

	expiry, err := l.List(ctx, Query{Action: ActionUpdateExpiry})
	require.NoError(t, err)
	require.Len(t, expiry, 3)
	var d struct{ I int }
	require.NoError(t, json.Unmarshal(expiry[0].Details, &d))
	assert.Equal(t, 5, d.I)

	byPin, err := l.List(ctx, Query{Pin: "22222222"})
	require.NoError(t, err)
	assert.Len(t, byPin, 1)

	since, err := l.List(ctx, Query{Since: time.Date(2024, 5, 1, 5, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.Len(t, since, 3)

	limited, err := l.List(ctx, Query{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestQueryLimit(t *testing.T) {
	t.Parallel()

	assert.Equal(t, defaultListLimit, Query{}.limit())
	assert.Equal(t, maxListLimit, Query{Limit: 10_000}.limit())
	assert.Equal(t, 7, Query{Limit: 7}.limit())
}
