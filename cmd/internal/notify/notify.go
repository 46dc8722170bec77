// Package notify queues direct messages to users and dispatches them.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"pinbot/cmd/internal/ids"
	"pinbot/cmd/internal/pin"
)

// Status is the delivery state of a notification.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// MaxAttempts is the number of sends before a notification is marked failed.
const MaxAttempts = 3

// Notification is one queued message.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Message   string    `json:"message"`
	SendAt    time.Time `json:"sendAt"`
	Status    Status    `json:"status"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"lastError,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists notifications.
type Store interface {
	Insert(ctx context.Context, n Notification) error
	// Due returns pending notifications with SendAt <= now, oldest first.
	Due(ctx context.Context, now time.Time, limit int) ([]Notification, error)
	// Save writes Status, Attempts and LastError of an existing notification.
	Save(ctx context.Context, n Notification) error
}

// Sender delivers one message to a user.
type Sender interface {
	SendDM(ctx context.Context, userID, message string) error
}

var errNotFound = errors.New("notification not found")

// Queue writes pending notifications.
type Queue struct {
	store Store
	now   func() time.Time
	log   *slog.Logger
}

// NewQueue constructs a Queue. A nil logger uses slog.Default.
func NewQueue(store Store, log *slog.Logger) *Queue {
	if log == nil {
		log = slog.Default()
	}
	return &Queue{store: store, now: func() time.Time { return time.Now().UTC() }, log: log}
}

// Queue stores a pending message for userID to be sent at or after sendAt.
func (q *Queue) Queue(ctx context.Context, userID, message string, sendAt time.Time) error {
	const op = "notify.Queue"
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(message) == "" {
		return pin.OpError{Op: op, Kind: pin.ErrValidation, Msg: "user id and message required"}
	}
	now := q.now()
	if sendAt.IsZero() {
		sendAt = now
	}
	id, err := ids.NewULID(now)
	if err != nil {
		return err
	}
	n := Notification{
		ID:        id,
		UserID:    userID,
		Message:   message,
		SendAt:    sendAt.UTC(),
		Status:    StatusPending,
		CreatedAt: now,
	}
	if err := q.store.Insert(ctx, n); err != nil {
		return err
	}
	q.log.Debug("notify.queue", "id", n.ID, "user_id", userID)
	return nil
}
