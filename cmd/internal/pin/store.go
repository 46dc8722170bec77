package pin

import (
	"context"
	"strings"
	"time"
)

// Filter selects pins by exact field values. Zero fields are ignored and
// non-zero fields are ANDed.
type Filter struct {
	Code     string
	UserID   string
	UserTag  string
	RoleName string

	// ExpiresFrom and ExpiresTo bound ExpiresAt inclusively.
	ExpiresFrom time.Time
	ExpiresTo   time.Time
	// ExpiredBefore selects ExpiresAt strictly before the instant.
	ExpiredBefore time.Time

	// Lettered selects codes containing an ASCII letter.
	Lettered bool
}

// IsZero reports whether f selects every pin.
func (f Filter) IsZero() bool {
	return f.Code == "" && f.UserID == "" && f.UserTag == "" && f.RoleName == "" &&
		f.ExpiresFrom.IsZero() && f.ExpiresTo.IsZero() && f.ExpiredBefore.IsZero() && !f.Lettered
}

// Match reports whether p satisfies f.
func (f Filter) Match(p Pin) bool {
	switch {
	case f.Code != "" && p.Code != f.Code:
		return false
	case f.UserID != "" && p.UserID != f.UserID:
		return false
	case f.UserTag != "" && p.UserTag != f.UserTag:
		return false
	case f.RoleName != "" && p.RoleName != f.RoleName:
		return false
	case !f.ExpiresFrom.IsZero() && p.ExpiresAt.Before(f.ExpiresFrom):
		return false
	case !f.ExpiresTo.IsZero() && p.ExpiresAt.After(f.ExpiresTo):
		return false
	case !f.ExpiredBefore.IsZero() && !p.ExpiresAt.Before(f.ExpiredBefore):
		return false
	case f.Lettered && !ContainsLetters(p.Code):
		return false
	}
	return true
}

// SearchField is the single field a search matches against.
type SearchField string

const (
	FieldSearchPin      SearchField = "pin"
	FieldSearchUserTag  SearchField = "userTag"
	FieldSearchRoleName SearchField = "roleName"
)

// Valid reports whether f is a searchable field.
func (f SearchField) Valid() bool {
	switch f {
	case FieldSearchPin, FieldSearchUserTag, FieldSearchRoleName:
		return true
	}
	return false
}

// SearchQuery is a case-insensitive substring match on one field.
type SearchQuery struct {
	Field  SearchField
	Term   string
	Offset int
	Limit  int
}

func (q SearchQuery) match(p Pin) bool {
	var v string
	switch q.Field {
	case FieldSearchPin:
		v = p.Code
	case FieldSearchUserTag:
		v = p.UserTag
	case FieldSearchRoleName:
		v = p.RoleName
	}
	return strings.Contains(strings.ToLower(v), strings.ToLower(q.Term))
}

// Store is the persistence boundary for pins.
//
// Implementations enforce uniqueness of Code and UserID and report
// violations as ConflictError. Missing records are ErrNotFound and any other
// failure is a StoreError.
type Store interface {
	Insert(ctx context.Context, p Pin) (Pin, error)
	FindOne(ctx context.Context, f Filter) (Pin, error)
	Find(ctx context.Context, f Filter) ([]Pin, error)
	Count(ctx context.Context, f Filter) (int, error)
	// Update replaces the record with p.ID.
	Update(ctx context.Context, p Pin) (Pin, error)
	DeleteOne(ctx context.Context, f Filter) (Pin, error)
	// DeleteMany removes every match and returns the removed records.
	DeleteMany(ctx context.Context, f Filter) ([]Pin, error)
	// Search returns one window of matches ordered by ID, and the total match count.
	Search(ctx context.Context, q SearchQuery) ([]Pin, int, error)
	// Archive copies p into the archive with status archived and removes it from the live set.
	Archive(ctx context.Context, p Pin, archivedAt time.Time) error
}
