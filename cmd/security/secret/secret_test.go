package secret

import (
	"strings"
	"testing"
)

// cheap keeps the suite fast; production cost comes from DefaultConfig.
func cheap() Config {
	cfg := DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return cfg
}

func TestHashAndVerify(t *testing.T) {
	cfg := cheap()

	h, err := cfg.Hash("feed-token-0123456789")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(h, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected encoding: %s", h)
	}

	ok, err := cfg.Verify(h, "feed-token-0123456789")
	if err != nil || !ok {
		t.Fatalf("expected match, got ok=%v err=%v", ok, err)
	}

	ok, err = cfg.Verify(h, "feed-token-9876543210")
	if err != nil || ok {
		t.Fatalf("expected mismatch, got ok=%v err=%v", ok, err)
	}
}

func TestHash_Length(t *testing.T) {
	cfg := cheap()
	if _, err := cfg.Hash("short"); err != ErrSecretTooShort {
		t.Fatalf("expected ErrSecretTooShort, got %v", err)
	}
	cfg.MaxLength = 20
	if _, err := cfg.Hash(strings.Repeat("x", 21)); err != ErrSecretTooLong {
		t.Fatalf("expected ErrSecretTooLong, got %v", err)
	}
}

func TestVerify_RejectsMalformed(t *testing.T) {
	cfg := cheap()
	for _, h := range []string{
		"",
		"not-a-hash",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0$a2V5a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0$a2V5a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdHNhbHRzYWx0$a2V5a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=8192,t=1,p=1$!!$a2V5a2V5a2V5a2V5a2V5a2V5",
	} {
		if ok, err := cfg.Verify(h, "whatever-whatever"); ok || err != ErrInvalidHash {
			t.Fatalf("%q: expected ErrInvalidHash, got ok=%v err=%v", h, ok, err)
		}
	}
}

func TestVerify_RejectsExcessiveCost(t *testing.T) {
	strong := cheap()
	strong.Params.MemoryKiB = 64 * 1024
	h, err := strong.Hash("feed-token-0123456789")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	if ok, err := cheap().Verify(h, "feed-token-0123456789"); ok || err != ErrInvalidHash {
		t.Fatalf("expected ErrInvalidHash for out-of-bounds params, got ok=%v err=%v", ok, err)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("PINBOT_ARGON2_MEMORY_KIB", "16384")
	t.Setenv("PINBOT_ARGON2_ITERATIONS", "2")
	t.Setenv("PINBOT_ARGON2_PARALLELISM", "1")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}
	if cfg.Params.MemoryKiB != 16384 || cfg.Params.Iterations != 2 || cfg.Params.Parallelism != 1 {
		t.Fatalf("unexpected params: %+v", cfg.Params)
	}

	t.Setenv("PINBOT_ARGON2_ITERATIONS", "99")
	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected range error")
	}
}

func TestCheckHash(t *testing.T) {
	cfg := cheap()
	h, err := cfg.Hash("feed-token-0123456789")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if err := cfg.CheckHash(h); err != nil {
		t.Fatalf("CheckHash: %v", err)
	}
	if err := cfg.CheckHash("$argon2id$v=19$m=x"); err != ErrInvalidHash {
		t.Fatalf("expected ErrInvalidHash, got %v", err)
	}
}
