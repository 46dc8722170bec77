package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"pinbot/cmd/internal/ids"
)

// Publisher receives every appended entry, for live fan-out.
// Publish must not block.
type Publisher interface {
	Publish(e Entry)
}

// Log records audit entries into a Store.
type Log struct {
	store Store
	pub   Publisher
	now   func() time.Time
	log   *slog.Logger
}

// Option configures Log.
type Option func(*Log)

// WithPublisher attaches a live publisher.
func WithPublisher(p Publisher) Option { return func(l *Log) { l.pub = p } }

// WithClock overrides the clock.
func WithClock(now func() time.Time) Option { return func(l *Log) { l.now = now } }

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option { return func(l *Log) { l.log = log } }

// NewLog constructs a Log.
func NewLog(store Store, opts ...Option) *Log {
	l := &Log{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		log:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Record appends an entry. details is marshalled to JSON; nil becomes an empty object.
func (l *Log) Record(ctx context.Context, action Action, pin *string, performedBy string, details any) error {
	if l == nil || l.store == nil {
		return ErrInvalidInput
	}
	if !action.Valid() {
		return fmt.Errorf("%w: action %q", ErrInvalidInput, action)
	}

	raw := json.RawMessage(`{}`)
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("audit details: %w", err)
		}
		raw = b
	}

	now := l.now()
	id, err := ids.NewULID(now)
	if err != nil {
		return err
	}

	e := Entry{
		ID:          id,
		Action:      action,
		Pin:         pin,
		PerformedBy: performedBy,
		Details:     raw,
		PerformedAt: now,
	}
	if err := l.store.Append(ctx, e); err != nil {
		return err
	}

	l.log.Debug("audit.append", "id", e.ID, "action", e.Action, "performed_by", e.PerformedBy)
	if l.pub != nil {
		l.pub.Publish(e)
	}
	return nil
}

// List reads entries through the underlying store.
func (l *Log) List(ctx context.Context, q Query) ([]Entry, error) {
	if l == nil || l.store == nil {
		return nil, ErrInvalidInput
	}
	return l.store.List(ctx, q)
}
