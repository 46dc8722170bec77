package ids

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewULID_MonotonicWithinMillisecond(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	prev := ""
	for i := 0; i < 50; i++ {
		id, err := NewULID(now)
		if err != nil {
			t.Fatalf("NewULID: %v", err)
		}
		if len(id) != 26 {
			t.Fatalf("unexpected ulid length %d", len(id))
		}
		if prev != "" && id <= prev {
			t.Fatalf("ulid not increasing: %q <= %q", id, prev)
		}
		prev = id
	}
}

func TestULIDTime_RoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	id := MustULID(now)

	got, ok := ULIDTime(id)
	if !ok {
		t.Fatalf("ULIDTime(%q) not ok", id)
	}
	if !got.Equal(now) {
		t.Fatalf("ULIDTime=%v want=%v", got, now)
	}

	if _, ok := ULIDTime("not-a-ulid"); ok {
		t.Fatalf("expected invalid ulid to fail")
	}
}

func TestNewRunID(t *testing.T) {
	t.Parallel()

	id := NewRunID()
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("run id %q is not a uuid: %v", id, err)
	}
}
