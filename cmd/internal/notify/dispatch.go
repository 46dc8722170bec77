package notify

import (
	"context"
	"log/slog"
	"time"

	"pinbot/cmd/internal/metrics"
)

// DefaultBatch is the Dispatch limit used when none is given.
const DefaultBatch = 100

// Stats counts the outcomes of one Dispatch.
type Stats struct {
	Sent    int `json:"sent"`
	Retried int `json:"retried"`
	Failed  int `json:"failed"`
}

// Dispatcher sends due notifications.
type Dispatcher struct {
	store  Store
	sender Sender
	now    func() time.Time
	log    *slog.Logger
}

// DispatcherOption configures Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithClock overrides the dispatcher clock.
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

// WithLogger sets the dispatcher logger.
func WithLogger(log *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.log = log }
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(store Store, sender Sender, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		store:  store,
		sender: sender,
		now:    func() time.Time { return time.Now().UTC() },
		log:    slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Dispatch sends up to limit due notifications. A send error leaves the
// notification pending until MaxAttempts is reached, then marks it failed.
func (d *Dispatcher) Dispatch(ctx context.Context, limit int) (Stats, error) {
	if limit <= 0 {
		limit = DefaultBatch
	}
	due, err := d.store.Due(ctx, d.now(), limit)
	if err != nil {
		return Stats{}, err
	}

	var st Stats
	for _, n := range due {
		if err := ctx.Err(); err != nil {
			return st, err
		}

		n.Attempts++
		result := "sent"
		if err := d.sender.SendDM(ctx, n.UserID, n.Message); err != nil {
			n.LastError = err.Error()
			if n.Attempts >= MaxAttempts {
				n.Status = StatusFailed
				result = "failed"
				st.Failed++
			} else {
				result = "retry"
				st.Retried++
			}
			d.log.Warn("notify.send.fail", "id", n.ID, "user_id", n.UserID, "attempts", n.Attempts, "err", err)
		} else {
			n.Status = StatusSent
			n.LastError = ""
			st.Sent++
		}
		metrics.NotificationsTotal.WithLabelValues(result).Inc()

		if err := d.store.Save(ctx, n); err != nil {
			return st, err
		}
	}

	if len(due) > 0 {
		d.log.Info("notify.dispatch", "due", len(due), "sent", st.Sent, "retried", st.Retried, "failed", st.Failed)
	}
	return st, nil
}
