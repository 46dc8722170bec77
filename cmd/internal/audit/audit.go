// Package audit is the append-only log of mutating pin actions.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Action names a mutating operation.
type Action string

const (
	ActionAdd          Action = "add"
	ActionUpdate       Action = "update"
	ActionDelete       Action = "delete"
	ActionUpdateExpiry Action = "updateExpiry"
	ActionArchive      Action = "archive"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionAdd, ActionUpdate, ActionDelete, ActionUpdateExpiry, ActionArchive:
		return true
	}
	return false
}

// Entry is one immutable audit record.
type Entry struct {
	ID          string          `json:"id"`
	Action      Action          `json:"action"`
	Pin         *string         `json:"pin,omitempty"`
	PerformedBy string          `json:"performedBy"`
	Details     json.RawMessage `json:"details"`
	PerformedAt time.Time       `json:"performedAt"`
}

// Query filters List. Zero fields are ignored.
type Query struct {
	Pin    string
	Action Action
	Since  time.Time
	Limit  int
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func (q Query) limit() int {
	switch {
	case q.Limit <= 0:
		return defaultListLimit
	case q.Limit > maxListLimit:
		return maxListLimit
	}
	return q.Limit
}

func (q Query) match(e Entry) bool {
	if q.Pin != "" && (e.Pin == nil || *e.Pin != q.Pin) {
		return false
	}
	if q.Action != "" && e.Action != q.Action {
		return false
	}
	if !q.Since.IsZero() && e.PerformedAt.Before(q.Since) {
		return false
	}
	return true
}

// Store is the persistence boundary for audit entries. There is no update or delete.
type Store interface {
	Append(ctx context.Context, e Entry) error
	// List returns matching entries newest first.
	List(ctx context.Context, q Query) ([]Entry, error)
}

// ErrInvalidInput is returned for malformed entries or queries.
var ErrInvalidInput = errors.New("invalid input")
