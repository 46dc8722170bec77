// Package v1 defines the pinbot audit feed protocol, version 1.
//
// It is shared by the server and feed clients so the wire format has one
// definition. Every frame is a JSON Envelope.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Version is the protocol version embedded into every envelope.
const Version = "v1"

// Subprotocol is negotiated during the WebSocket upgrade.
const Subprotocol = "pinbot.audit.v1"

// Type constants (wire-stable).
const (
	// TypeHello authenticates a session (client -> server).
	TypeHello = "hello"
	// TypeHelloAck confirms the session (server -> client).
	TypeHelloAck = "hello_ack"

	// TypeAuditEntry carries one new audit entry (server -> client).
	TypeAuditEntry = "audit_entry"

	// TypeHistoryFetch requests recent entries (client -> server).
	TypeHistoryFetch = "history_fetch"
	// TypeHistoryChunk answers a history fetch (server -> client).
	TypeHistoryChunk = "history_chunk"

	// TypeError reports a protocol or server error (server -> client).
	TypeError = "error"
)

// Envelope is the canonical wire wrapper.
type Envelope struct {
	V       string          `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	TS      time.Time       `json:"ts,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate performs structural validation of an Envelope.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.V) == "" {
		return errors.New("missing field: v")
	}
	if e.V != Version {
		return fmt.Errorf("unsupported protocol version: %q", e.V)
	}
	switch e.Type {
	case TypeHello, TypeHelloAck, TypeAuditEntry, TypeHistoryFetch, TypeHistoryChunk, TypeError:
		return nil
	case "":
		return errors.New("missing field: type")
	default:
		return fmt.Errorf("unknown type: %q", e.Type)
	}
}

// HelloPayload carries the feed token.
type HelloPayload struct {
	Token string `json:"token"`
}

// HelloAckPayload names the accepted session.
type HelloAckPayload struct {
	SessionID string `json:"session_id"`
}

// AuditEntryPayload mirrors one audit log entry.
type AuditEntryPayload struct {
	ID          string          `json:"id"`
	Action      string          `json:"action"`
	Pin         *string         `json:"pin,omitempty"`
	PerformedBy string          `json:"performed_by"`
	Details     json.RawMessage `json:"details"`
	PerformedAt time.Time       `json:"performed_at"`
}

// HistoryFetchPayload asks for the newest entries, optionally of one action.
type HistoryFetchPayload struct {
	Limit  int    `json:"limit,omitempty"`
	Action string `json:"action,omitempty"`
}

// HistoryChunkPayload returns entries newest first.
type HistoryChunkPayload struct {
	Entries []AuditEntryPayload `json:"entries"`
}

// ErrorPayload is a generic error response payload.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
