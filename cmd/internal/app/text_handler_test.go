package app

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestTextHandler_Line(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewTextHandler(&buf, slog.LevelInfo))

	log.Info("pin.add", "code", "12345678", "note", "two words", "took", 1500*time.Millisecond)

	line := buf.String()
	for _, want := range []string{
		"lvl=INFO",
		"msg=pin.add",
		"code=12345678",
		`note="two words"`,
		"took=1.5s",
	} {
		if !strings.Contains(line, want) {
			t.Fatalf("missing %q in %q", want, line)
		}
	}
	if !strings.HasSuffix(line, "\n") {
		t.Fatalf("line must end with newline: %q", line)
	}
}

func TestTextHandler_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewTextHandler(&buf, slog.LevelWarn))

	log.Info("dropped")
	log.Error("kept", "err", errors.New("boom"))

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("info must be filtered: %q", out)
	}
	if !strings.Contains(out, "lvl=ERROR") || !strings.Contains(out, "err=boom") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestTextHandler_GroupsAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewTextHandler(&buf, slog.LevelDebug)).
		With("guild", "g1").
		WithGroup("sweep").
		With("tier", "special1m")

	log.Debug("reconcile.done", slog.Group("counts", "added", 2), "failed", 0)

	out := buf.String()
	for _, want := range []string{
		"lvl=DEBUG",
		" guild=g1",
		" sweep.tier=special1m",
		" sweep.counts.added=2",
		" sweep.failed=0",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestNewLogger_Formats(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "info", "json").Info("hello", "k", "v")
	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"k":"v"`) {
		t.Fatalf("expected json line, got %q", buf.String())
	}

	buf.Reset()
	newLogger(&buf, "info", "text").Info("hello", "k", "v")
	if !strings.HasPrefix(buf.String(), "ts=") || !strings.Contains(buf.String(), "k=v") {
		t.Fatalf("expected text line, got %q", buf.String())
	}
}
