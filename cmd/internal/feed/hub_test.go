package feed

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"pinbot/cmd/internal/audit"
	v1 "pinbot/shared/contracts/feed/v1"
)

func TestHub_PublishFansOut(t *testing.T) {
	h := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	a := NewClient("a", minSendQueue)
	b := NewClient("b", minSendQueue)
	h.Subscribe(a)
	h.Subscribe(b)

	h.Publish(audit.Entry{ID: "01J", Action: audit.ActionArchive, PerformedBy: "system", PerformedAt: time.Now().UTC()})

	for _, c := range []*Client{a, b} {
		select {
		case env := <-c.Send:
			if env.Type != v1.TypeAuditEntry || env.V != v1.Version {
				t.Fatalf("unexpected envelope: %+v", env)
			}
			var p v1.AuditEntryPayload
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if p.Action != "archive" || string(p.Details) != "{}" {
				t.Fatalf("unexpected payload: %+v", p)
			}
		default:
			t.Fatalf("client %s received nothing", c.SessionID)
		}
	}
}

func TestHub_PublishDropsWhenFull(t *testing.T) {
	h := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	c := NewClient("slow", 1)
	h.Subscribe(c)

	for range cap(c.Send) + 5 {
		h.Publish(audit.Entry{ID: "x", Action: audit.ActionAdd})
	}
	if len(c.Send) != cap(c.Send) {
		t.Fatalf("expected full queue, got %d/%d", len(c.Send), cap(c.Send))
	}

	h.Unsubscribe("slow")
	if h.Len() != 0 {
		t.Fatalf("expected no subscribers")
	}
}

func TestRateLimiter_SlidingWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Second)
	t0 := time.Unix(1_700_000_000, 0)

	if !rl.Allow(t0) || !rl.Allow(t0.Add(100*time.Millisecond)) {
		t.Fatalf("first two events must pass")
	}
	if rl.Allow(t0.Add(200 * time.Millisecond)) {
		t.Fatalf("third event within window must be limited")
	}
	if !rl.Allow(t0.Add(1100 * time.Millisecond)) {
		t.Fatalf("event after the window must pass")
	}
}

func TestEnforceOrigin(t *testing.T) {
	cases := []struct {
		name     string
		origin   string
		required bool
		allowed  []string
		ok       bool
	}{
		{"no origin optional", "", false, nil, true},
		{"no origin required", "", true, []string{"https://a.example"}, false},
		{"empty allowlist", "https://a.example", false, nil, false},
		{"exact", "https://a.example", false, []string{"https://a.example"}, true},
		{"host match other port", "https://a.example:8443", false, []string{"a.example"}, true},
		{"wildcard", "https://x.example", false, []string{"*"}, true},
		{"mismatch", "https://b.example", false, []string{"https://a.example"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/feed", nil)
			if tc.origin != "" {
				r.Header.Set("Origin", tc.origin)
			}
			err := enforceOrigin(r, tc.required, tc.allowed)
			if (err == nil) != tc.ok {
				t.Fatalf("enforceOrigin(%q) err=%v, want ok=%v", tc.origin, err, tc.ok)
			}
		})
	}
}

func TestOriginPatterns(t *testing.T) {
	got := originPatterns([]string{"https://b.example", "*", "http://a.example:3000", "B.example"})
	if len(got) != 2 || got[0] != "a.example" || got[1] != "b.example" {
		t.Fatalf("unexpected patterns: %v", got)
	}
}
