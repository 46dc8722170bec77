package notify

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps notifications in process.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]Notification
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: map[string]Notification{}}
}

func (s *MemoryStore) Insert(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[n.ID] = n
	return nil
}

func (s *MemoryStore) Due(ctx context.Context, now time.Time, limit int) ([]Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []Notification{}
	for _, n := range s.items {
		if n.Status == StatusPending && !n.SendAt.After(now) {
			out = append(out, n)
		}
	}
	slices.SortFunc(out, func(a, b Notification) int {
		if c := a.SendAt.Compare(b.SendAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Save(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[n.ID]
	if !ok {
		return errNotFound
	}
	cur.Status, cur.Attempts, cur.LastError = n.Status, n.Attempts, n.LastError
	s.items[n.ID] = cur
	return nil
}

// All returns every stored notification ordered by id.
func (s *MemoryStore) All() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, 0, len(s.items))
	for _, n := range s.items {
		out = append(out, n)
	}
	slices.SortFunc(out, func(a, b Notification) int { return strings.Compare(a.ID, b.ID) })
	return out
}
