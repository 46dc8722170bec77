package feed

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"pinbot/cmd/internal/audit"
	"pinbot/cmd/internal/ids"
	"pinbot/cmd/internal/metrics"
	v1 "pinbot/shared/contracts/feed/v1"
)

// Hub fans audit entries out to subscribed clients. It implements audit.Publisher.
type Hub struct {
	log *slog.Logger

	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub constructs an empty Hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{log: log, clients: make(map[string]*Client)}
}

// Subscribe adds c to the fan-out set.
func (h *Hub) Subscribe(c *Client) {
	h.mu.Lock()
	h.clients[c.SessionID] = c
	n := len(h.clients)
	h.mu.Unlock()
	metrics.FeedSubscribers.Set(float64(n))
}

// Unsubscribe removes the session from the fan-out set.
func (h *Hub) Unsubscribe(sessionID string) {
	h.mu.Lock()
	delete(h.clients, sessionID)
	n := len(h.clients)
	h.mu.Unlock()
	metrics.FeedSubscribers.Set(float64(n))
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish sends e to every subscriber without blocking.
// A subscriber whose queue is full misses the entry.
func (h *Hub) Publish(e audit.Entry) {
	env := newEnvelope(v1.TypeAuditEntry, mustJSON(entryPayload(e)), time.Now().UTC())

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.clients {
		select {
		case <-c.Done():
		case c.Send <- env:
		default:
			h.log.Warn("feed.drop", "session_id", id, "entry_id", e.ID)
		}
	}
}

var _ audit.Publisher = (*Hub)(nil)

func entryPayload(e audit.Entry) v1.AuditEntryPayload {
	details := e.Details
	if len(details) == 0 {
		details = json.RawMessage(`{}`)
	}
	return v1.AuditEntryPayload{
		ID:          e.ID,
		Action:      string(e.Action),
		Pin:         e.Pin,
		PerformedBy: e.PerformedBy,
		Details:     details,
		PerformedAt: e.PerformedAt,
	}
}

func newEnvelope(typ string, payload json.RawMessage, ts time.Time) v1.Envelope {
	return v1.Envelope{
		V:       v1.Version,
		Type:    typ,
		ID:      ids.MustULID(ts),
		TS:      ts,
		Payload: payload,
	}
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}
