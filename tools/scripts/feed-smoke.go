// Package main is a CI-friendly smoke test for the pinbot audit feed.
//
// It validates:
//   - handshake + subprotocol selection
//   - hello/ack with a valid token on two sessions
//   - rejection of a wrong token
//   - history fetch
//   - optionally, live audit_entry fanout to both sessions (-watch)
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	v1 "pinbot/shared/contracts/feed/v1"

	"github.com/coder/websocket"
)

const maxReadBytes = 1 << 20 // 1MiB

type smokeClient struct {
	name      string
	conn      *websocket.Conn
	sessionID string

	inbox chan v1.Envelope
	errCh chan error
}

func main() {
	var (
		feedURL = flag.String("url", "ws://127.0.0.1:8080/feed", "feed WebSocket URL")
		origin  = flag.String("origin", "http://localhost", "Origin header to send")
		token   = flag.String("token", os.Getenv("PINBOT_FEED_TOKEN"), "feed token (default $PINBOT_FEED_TOKEN)")
		limit   = flag.Int("limit", 20, "history entries to fetch")
		watch   = flag.Duration("watch", 0, "wait this long for a live audit_entry on both sessions")
		timeout = flag.Duration("timeout", 7*time.Second, "per-step timeout")
		verbose = flag.Bool("v", false, "verbose output")
	)
	flag.Parse()

	if err := validateWSURL(*feedURL); err != nil {
		fatalf("invalid -url: %v", err)
	}
	if err := validateOrigin(*origin); err != nil {
		fatalf("invalid -origin: %v", err)
	}
	if strings.TrimSpace(*token) == "" {
		fatalf("missing -token")
	}

	root := context.Background()

	a := dial(root, "A", *feedURL, *origin, *timeout)
	defer closeWS(a.conn)
	a.mustHello(root, *token, *timeout)

	b := dial(root, "B", *feedURL, *origin, *timeout)
	defer closeWS(b.conn)
	b.mustHello(root, *token, *timeout)

	if *verbose {
		fmt.Printf("connected: A=%s B=%s origin=%q\n", a.sessionID, b.sessionID, *origin)
	}

	bad := dial(root, "C", *feedURL, *origin, *timeout)
	defer closeWS(bad.conn)
	bad.mustRejectHello(root, *token+"x", *timeout)

	entries := a.mustHistory(root, *limit, *timeout)
	if *verbose {
		for _, e := range entries {
			fmt.Printf("history: %s %s by %s\n", e.Action, deref(e.Pin), e.PerformedBy)
		}
	}

	if *watch > 0 {
		ea := a.mustReadUntilType(root, v1.TypeAuditEntry, *watch)
		eb := b.mustReadUntilType(root, v1.TypeAuditEntry, *timeout)
		var pa, pb v1.AuditEntryPayload
		mustUnmarshal(ea.Payload, &pa)
		mustUnmarshal(eb.Payload, &pb)
		if pa.ID != pb.ID {
			fatalf("fanout mismatch: A=%s B=%s", pa.ID, pb.ID)
		}
		if *verbose {
			fmt.Printf("live: %s %s\n", pa.Action, deref(pa.Pin))
		}
	}

	fmt.Printf("OK: A=%s B=%s history=%d\n", a.sessionID, b.sessionID, len(entries))
}

func validateWSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	return nil
}

func validateOrigin(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin must be http/https, got: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("origin missing host")
	}
	return nil
}

func dial(parent context.Context, name, feedURL, origin string, stepTimeout time.Duration) *smokeClient {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}

	conn, resp, err := websocket.Dial(ctx, feedURL, &websocket.DialOptions{
		Subprotocols: []string{v1.Subprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("connect %s: %v", name, err)
	}
	if got := conn.Subprotocol(); got != v1.Subprotocol {
		fatalf("subprotocol mismatch (%s): got=%q want=%q", name, got, v1.Subprotocol)
	}
	conn.SetReadLimit(maxReadBytes)

	c := &smokeClient{
		name:  name,
		conn:  conn,
		inbox: make(chan v1.Envelope, 512),
		errCh: make(chan error, 1),
	}
	c.startReadLoop()
	return c
}

func (c *smokeClient) mustHello(parent context.Context, token string, stepTimeout time.Duration) {
	c.mustWrite(parent, v1.TypeHello, v1.HelloPayload{Token: token}, stepTimeout)

	ack := c.mustReadUntilType(parent, v1.TypeHelloAck, stepTimeout)
	var p v1.HelloAckPayload
	mustUnmarshal(ack.Payload, &p)
	if strings.TrimSpace(p.SessionID) == "" {
		fatalf("hello_ack missing session_id (%s)", c.name)
	}
	c.sessionID = p.SessionID
}

// mustRejectHello expects an error envelope or a close, never hello_ack.
func (c *smokeClient) mustRejectHello(parent context.Context, token string, stepTimeout time.Duration) {
	c.mustWrite(parent, v1.TypeHello, v1.HelloPayload{Token: token}, stepTimeout)

	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()
	select {
	case <-ctx.Done():
		fatalf("wrong token neither rejected nor closed (%s)", c.name)
	case <-c.errCh:
	case env, ok := <-c.inbox:
		if ok && env.Type != v1.TypeError {
			fatalf("wrong token accepted (%s): got %q", c.name, env.Type)
		}
	}
}

func (c *smokeClient) mustHistory(parent context.Context, limit int, stepTimeout time.Duration) []v1.AuditEntryPayload {
	c.mustWrite(parent, v1.TypeHistoryFetch, v1.HistoryFetchPayload{Limit: limit}, stepTimeout)

	env := c.mustReadUntilType(parent, v1.TypeHistoryChunk, stepTimeout)
	var p v1.HistoryChunkPayload
	mustUnmarshal(env.Payload, &p)
	if len(p.Entries) > limit {
		fatalf("history over limit: got=%d limit=%d", len(p.Entries), limit)
	}
	for i := 1; i < len(p.Entries); i++ {
		if p.Entries[i].PerformedAt.After(p.Entries[i-1].PerformedAt) {
			fatalf("history not newest first at %d", i)
		}
	}
	return p.Entries
}

func (c *smokeClient) startReadLoop() {
	go func() {
		defer close(c.inbox)

		for {
			_, data, err := c.conn.Read(context.Background())
			if err != nil {
				c.fail(err)
				return
			}

			var env v1.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				c.fail(fmt.Errorf("bad json: %w", err))
				return
			}
			if err := env.Validate(); err != nil {
				c.fail(fmt.Errorf("bad envelope: %w", err))
				return
			}

			select {
			case c.inbox <- env:
			default:
				c.fail(errors.New("inbox overflow: consumer too slow"))
				return
			}
		}
	}()
}

func (c *smokeClient) fail(err error) {
	select {
	case c.errCh <- err:
	default:
	}
}

func (c *smokeClient) mustReadUntilType(parent context.Context, wantType string, wait time.Duration) v1.Envelope {
	ctx, cancel := context.WithTimeout(parent, wait)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			fatalf("timeout waiting for %q (%s): %v", wantType, c.name, ctx.Err())
		case err := <-c.errCh:
			fatalf("connection error while waiting for %q (%s): %v", wantType, c.name, err)
		case env, ok := <-c.inbox:
			if !ok {
				fatalf("connection closed while waiting for %q (%s)", wantType, c.name)
			}
			switch env.Type {
			case wantType:
				return env
			case v1.TypeError:
				var ep v1.ErrorPayload
				_ = json.Unmarshal(env.Payload, &ep)
				fatalf("server error (%s): code=%q msg=%q", c.name, ep.Code, ep.Message)
			case v1.TypeAuditEntry:
				// Live entries may interleave with replies.
				continue
			default:
				fatalf("unexpected envelope type (%s): got=%q want=%q", c.name, env.Type, wantType)
			}
		}
	}
}

func (c *smokeClient) mustWrite(parent context.Context, typ string, payload any, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	raw, err := json.Marshal(payload)
	if err != nil {
		fatalf("marshal payload: %v", err)
	}
	b, err := json.Marshal(v1.Envelope{
		V:       v1.Version,
		Type:    typ,
		ID:      fmt.Sprintf("%s-%s-%d", c.name, typ, time.Now().UnixNano()),
		TS:      time.Now().UTC(),
		Payload: raw,
	})
	if err != nil {
		fatalf("marshal envelope: %v", err)
	}
	if err := c.conn.Write(ctx, websocket.MessageText, b); err != nil {
		fatalf("write failed (%s): %v", c.name, err)
	}
}

func mustUnmarshal(raw json.RawMessage, v any) {
	if err := json.Unmarshal(raw, v); err != nil {
		fatalf("unmarshal payload: %v", err)
	}
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func closeWS(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
