package pin

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used for tests and local runs.
type MemoryStore struct {
	mu       sync.RWMutex
	byID     map[string]Pin
	byCode   map[string]string
	byUser   map[string]string
	archived []ArchivedPin
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   map[string]Pin{},
		byCode: map[string]string{},
		byUser: map[string]string{},
	}
}

func (s *MemoryStore) Insert(ctx context.Context, p Pin) (Pin, error) {
	const op = "pin.MemoryStore.Insert"
	if err := ctx.Err(); err != nil {
		return Pin{}, err
	}
	if strings.TrimSpace(p.ID) == "" {
		return Pin{}, OpError{Op: op, Kind: ErrValidation, Msg: "id required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byCode[p.Code]; ok {
		return Pin{}, ConflictError{Op: op, Field: FieldPin}
	}
	if _, ok := s.byUser[p.UserID]; ok {
		return Pin{}, ConflictError{Op: op, Field: FieldUserID}
	}
	if _, ok := s.byID[p.ID]; ok {
		return Pin{}, StoreError{Op: op, Err: errDuplicateID}
	}

	p = p.clone()
	s.byID[p.ID] = p
	s.byCode[p.Code] = p.ID
	s.byUser[p.UserID] = p.ID
	return p.clone(), nil
}

func (s *MemoryStore) FindOne(ctx context.Context, f Filter) (Pin, error) {
	if err := ctx.Err(); err != nil {
		return Pin{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.sortedLocked() {
		if f.Match(p) {
			return p.clone(), nil
		}
	}
	return Pin{}, notFound("pin.MemoryStore.FindOne", "")
}

func (s *MemoryStore) Find(ctx context.Context, f Filter) ([]Pin, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Pin{}
	for _, p := range s.sortedLocked() {
		if f.Match(p) {
			out = append(out, p.clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) Count(ctx context.Context, f Filter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, p := range s.byID {
		if f.Match(p) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Update(ctx context.Context, p Pin) (Pin, error) {
	const op = "pin.MemoryStore.Update"
	if err := ctx.Err(); err != nil {
		return Pin{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.byID[p.ID]
	if !ok {
		return Pin{}, notFound(op, p.ID)
	}
	if id, ok := s.byCode[p.Code]; ok && id != p.ID {
		return Pin{}, ConflictError{Op: op, Field: FieldPin}
	}
	if id, ok := s.byUser[p.UserID]; ok && id != p.ID {
		return Pin{}, ConflictError{Op: op, Field: FieldUserID}
	}

	delete(s.byCode, cur.Code)
	delete(s.byUser, cur.UserID)
	p = p.clone()
	s.byID[p.ID] = p
	s.byCode[p.Code] = p.ID
	s.byUser[p.UserID] = p.ID
	return p.clone(), nil
}

func (s *MemoryStore) DeleteOne(ctx context.Context, f Filter) (Pin, error) {
	const op = "pin.MemoryStore.DeleteOne"
	if err := ctx.Err(); err != nil {
		return Pin{}, err
	}
	if f.IsZero() {
		return Pin{}, OpError{Op: op, Kind: ErrMissingSelector}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.sortedLocked() {
		if f.Match(p) {
			s.removeLocked(p)
			return p.clone(), nil
		}
	}
	return Pin{}, notFound(op, "")
}

func (s *MemoryStore) DeleteMany(ctx context.Context, f Filter) ([]Pin, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.IsZero() {
		return nil, OpError{Op: "pin.MemoryStore.DeleteMany", Kind: ErrMissingSelector}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := []Pin{}
	for _, p := range s.sortedLocked() {
		if f.Match(p) {
			s.removeLocked(p)
			out = append(out, p.clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) Search(ctx context.Context, q SearchQuery) ([]Pin, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Pin
	for _, p := range s.sortedLocked() {
		if q.match(p) {
			matched = append(matched, p)
		}
	}
	total := len(matched)

	start := min(max(q.Offset, 0), total)
	end := total
	if q.Limit > 0 {
		end = min(start+q.Limit, total)
	}

	out := make([]Pin, 0, end-start)
	for _, p := range matched[start:end] {
		out = append(out, p.clone())
	}
	return out, total, nil
}

func (s *MemoryStore) Archive(ctx context.Context, p Pin, archivedAt time.Time) error {
	const op = "pin.MemoryStore.Archive"
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.byID[p.ID]
	if !ok {
		return notFound(op, p.ID)
	}
	cur.Status = StatusArchived
	s.archived = append(s.archived, ArchivedPin{Pin: cur.clone(), ArchivedAt: archivedAt})
	s.removeLocked(cur)
	return nil
}

// Archived returns a copy of the archive.
func (s *MemoryStore) Archived() []ArchivedPin {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.archived)
}

func (s *MemoryStore) removeLocked(p Pin) {
	delete(s.byID, p.ID)
	delete(s.byCode, p.Code)
	delete(s.byUser, p.UserID)
}

func (s *MemoryStore) sortedLocked() []Pin {
	out := make([]Pin, 0, len(s.byID))
	for _, p := range s.byID {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b Pin) int { return strings.Compare(a.ID, b.ID) })
	return out
}
