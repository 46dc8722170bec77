// Package feed serves the audit log as a live WebSocket feed.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"pinbot/cmd/internal/audit"
	"pinbot/cmd/internal/ids"
	v1 "pinbot/shared/contracts/feed/v1"

	"github.com/coder/websocket"
)

const (
	maxFrameBytes = 16 << 10

	defaultSendQueue    = 256
	minSendQueue        = 32
	defaultWriteTimeout = 5 * time.Second
	defaultReadIdle     = 2 * time.Minute
	defaultHelloTimeout = 10 * time.Second
	closeGrace          = time.Second

	defaultHeartbeat        = 25 * time.Second
	defaultHeartbeatTimeout = 5 * time.Second
	maxPingFailures         = 3

	defaultRateEvents = 60
	defaultRateWindow = 10 * time.Second

	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// TokenVerifier checks a presented token against an encoded hash.
type TokenVerifier interface {
	Verify(encodedHash, token string) (bool, error)
}

// History reads recent audit entries.
type History interface {
	List(ctx context.Context, q audit.Query) ([]audit.Entry, error)
}

// Config tunes a Gateway. Zero durations and sizes take defaults.
type Config struct {
	// TokenHash is the argon2id hash clients must match. Empty disables the feed.
	TokenHash      string
	AllowedOrigins []string
	OriginRequired bool

	WriteTimeout     time.Duration
	ReadIdleTimeout  time.Duration
	HelloTimeout     time.Duration
	SendQueueSize    int
	HeartbeatEvery   time.Duration
	HeartbeatTimeout time.Duration
	RateEvents       int
	RateWindow       time.Duration
}

func (c Config) withDefaults() Config {
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.ReadIdleTimeout <= 0 {
		c.ReadIdleTimeout = defaultReadIdle
	}
	if c.HelloTimeout <= 0 {
		c.HelloTimeout = defaultHelloTimeout
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = defaultSendQueue
	}
	c.SendQueueSize = max(c.SendQueueSize, minSendQueue)
	if c.HeartbeatEvery <= 0 {
		c.HeartbeatEvery = defaultHeartbeat
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	if c.RateEvents <= 0 {
		c.RateEvents = defaultRateEvents
	}
	if c.RateWindow <= 0 {
		c.RateWindow = defaultRateWindow
	}
	return c
}

// Gateway is the /feed WebSocket endpoint.
//
// A session must open with hello{token}. Once accepted it receives every new
// audit entry and may request history.
type Gateway struct {
	log      *slog.Logger
	hub      *Hub
	history  History
	verifier TokenVerifier
	cfg      Config
	patterns []string
}

// NewGateway constructs a Gateway.
func NewGateway(log *slog.Logger, hub *Hub, history History, verifier TokenVerifier, cfg Config) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	if hub == nil {
		hub = NewHub(log)
	}
	cfg = cfg.withDefaults()
	return &Gateway{
		log:      log,
		hub:      hub,
		history:  history,
		verifier: verifier,
		cfg:      cfg,
		patterns: originPatterns(cfg.AllowedOrigins),
	}
}

// Enabled reports whether a token hash is configured.
func (g *Gateway) Enabled() bool {
	return strings.TrimSpace(g.cfg.TokenHash) != "" && g.verifier != nil
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !g.Enabled() {
		http.NotFound(w, r)
		return
	}
	if err := enforceOrigin(r, g.cfg.OriginRequired, g.cfg.AllowedOrigins); err != nil {
		g.log.Info("feed.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{v1.Subprotocol},
		OriginPatterns: g.patterns,
	})
	if err != nil {
		g.log.Error("feed.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	if sp := conn.Subprotocol(); sp != v1.Subprotocol {
		g.log.Info("feed.reject.subprotocol", "got", sp, "want", v1.Subprotocol)
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	g.serve(r.Context(), conn)
}

func (g *Gateway) serve(parent context.Context, conn *websocket.Conn) {
	client := NewClient(ids.NewRunID(), g.cfg.SendQueueSize)
	log := g.log.With("session_id", client.SessionID)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var (
		closeOnce sync.Once
		authed    bool
	)
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			if authed {
				g.hub.Unsubscribe(client.SessionID)
			}
			client.Close()
			_ = conn.Close(code, reason)
			cancel()
		})
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case env := <-client.Send:
				if err := writeEnvelope(ctx, conn, env, g.cfg.WriteTimeout); err != nil {
					log.Info("feed.write.fail", "close_status", websocket.CloseStatus(err), "err", err)
					shutdown(websocket.StatusAbnormalClosure, "write failed")
					return
				}
			}
		}
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)
		t := time.NewTicker(g.cfg.HeartbeatEvery)
		defer t.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case <-t.C:
				hbCtx, hbCancel := context.WithTimeout(ctx, g.cfg.HeartbeatTimeout)
				err := conn.Ping(hbCtx)
				hbCancel()
				if err == nil {
					failures = 0
					continue
				}
				failures++
				log.Info("feed.ping.fail", "failures", failures, "err", err)
				if failures >= maxPingFailures {
					shutdown(websocket.StatusGoingAway, "heartbeat failed")
					return
				}
			}
		}
	}()

	rl := NewRateLimiter(g.cfg.RateEvents, g.cfg.RateWindow)

readLoop:
	for {
		idle := g.cfg.ReadIdleTimeout
		if !authed {
			idle = g.cfg.HelloTimeout
		}
		readCtx, readCancel := context.WithTimeout(ctx, idle)
		env, err := readEnvelope(readCtx, conn)
		readCancel()

		if err != nil {
			var syntaxErr *json.SyntaxError
			switch {
			case errors.As(err, &syntaxErr):
				g.trySendError(ctx, client, "bad_json", "invalid JSON")
				continue readLoop
			case websocket.CloseStatus(err) != -1:
				shutdown(websocket.StatusNormalClosure, "peer closed")
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				shutdown(websocket.StatusNormalClosure, "context done")
			case errors.Is(err, net.ErrClosed), errors.Is(err, io.EOF):
				shutdown(websocket.StatusAbnormalClosure, "conn closed")
			default:
				log.Info("feed.read.fail", "err", err)
				shutdown(websocket.StatusAbnormalClosure, "read failed")
			}
			break readLoop
		}

		if !rl.Allow(time.Now()) {
			g.trySendError(ctx, client, "rate_limited", "too many events")
			shutdown(websocket.StatusPolicyViolation, "rate limited")
			break readLoop
		}
		if err := env.Validate(); err != nil {
			g.trySendError(ctx, client, "bad_envelope", err.Error())
			continue readLoop
		}

		if !authed {
			if env.Type != v1.TypeHello {
				g.trySendError(ctx, client, "unauthenticated", "hello required")
				shutdown(websocket.StatusPolicyViolation, "hello required")
				break readLoop
			}
			if err := g.onHello(env); err != nil {
				log.Info("feed.hello.reject", "err", err)
				g.trySendError(ctx, client, "hello_failed", err.Error())
				shutdown(websocket.StatusPolicyViolation, "hello failed")
				break readLoop
			}
			authed = true
			g.hub.Subscribe(client)
			log.Info("feed.subscribe")
			ack := newEnvelope(v1.TypeHelloAck, mustJSON(v1.HelloAckPayload{SessionID: client.SessionID}), time.Now().UTC())
			if !enqueue(ctx, client, ack) {
				shutdown(websocket.StatusTryAgainLater, "backpressure")
				break readLoop
			}
			continue readLoop
		}

		switch env.Type {
		case v1.TypeHistoryFetch:
			if err := g.onHistoryFetch(ctx, client, env); err != nil {
				g.trySendError(ctx, client, "history_failed", err.Error())
			}
		default:
			g.trySendError(ctx, client, "unsupported", fmt.Sprintf("unsupported type: %s", env.Type))
		}
	}

	shutdown(websocket.StatusNormalClosure, "bye")
	<-writerDone
	select {
	case <-heartbeatDone:
	case <-time.After(closeGrace):
	}
}

func (g *Gateway) onHello(env v1.Envelope) error {
	var p v1.HelloPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	tok := strings.TrimSpace(p.Token)
	if tok == "" {
		return errors.New("missing token")
	}
	ok, err := g.verifier.Verify(g.cfg.TokenHash, tok)
	if err != nil {
		g.log.Error("feed.token.verify.fail", "err", err)
		return errors.New("token verification unavailable")
	}
	if !ok {
		return errors.New("invalid token")
	}
	return nil
}

func (g *Gateway) onHistoryFetch(ctx context.Context, client *Client, env v1.Envelope) error {
	if g.history == nil {
		return errors.New("history unavailable")
	}
	var p v1.HistoryFetchPayload
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
	}

	limit := p.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)

	q := audit.Query{Limit: limit}
	if p.Action != "" {
		a := audit.Action(p.Action)
		if !a.Valid() {
			return fmt.Errorf("unknown action: %s", p.Action)
		}
		q.Action = a
	}

	entries, err := g.history.List(ctx, q)
	if err != nil {
		g.log.Error("feed.history.fail", "session_id", client.SessionID, "err", err)
		return errors.New("history unavailable")
	}

	out := v1.HistoryChunkPayload{Entries: make([]v1.AuditEntryPayload, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, entryPayload(e))
	}
	if !enqueue(ctx, client, newEnvelope(v1.TypeHistoryChunk, mustJSON(out), time.Now().UTC())) {
		return errors.New("backpressure: history_chunk")
	}
	return nil
}

func (g *Gateway) trySendError(ctx context.Context, client *Client, code, msg string) {
	_ = enqueue(ctx, client, newEnvelope(v1.TypeError, mustJSON(v1.ErrorPayload{Code: code, Message: msg}), time.Now().UTC()))
}

func enqueue(ctx context.Context, client *Client, env v1.Envelope) bool {
	select {
	case <-ctx.Done():
		return false
	case <-client.Done():
		return false
	case client.Send <- env:
		return true
	default:
		return false
	}
}

func readEnvelope(ctx context.Context, conn *websocket.Conn) (v1.Envelope, error) {
	mt, data, err := conn.Read(ctx)
	if err != nil {
		return v1.Envelope{}, err
	}
	if mt != websocket.MessageText && mt != websocket.MessageBinary {
		return v1.Envelope{}, fmt.Errorf("unsupported message type: %v", mt)
	}
	var env v1.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return v1.Envelope{}, err
	}
	return env, nil
}

func writeEnvelope(parent context.Context, conn *websocket.Conn, env v1.Envelope, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}
