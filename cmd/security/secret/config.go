package secret

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Params controls Argon2id cost. MemoryKiB is in KiB as argon2.IDKey expects.
type Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Config is the hashing cost plus the accepted secret length.
type Config struct {
	Params    Params
	MinLength int
	MaxLength int
}

// DefaultConfig returns the baseline used for feed tokens.
func DefaultConfig() Config {
	threads := min(max(runtime.NumCPU(), 1), 4)
	return Config{
		Params: Params{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4].
			SaltLength:  16,
			KeyLength:   32,
		},
		MinLength: 16,
		MaxLength: 512,
	}
}

// FromEnv loads DefaultConfig overridden by
// PINBOT_ARGON2_MEMORY_KIB, PINBOT_ARGON2_ITERATIONS and PINBOT_ARGON2_PARALLELISM.
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v, ok := os.LookupEnv("PINBOT_ARGON2_MEMORY_KIB"); ok {
		u, err := parseUint32(v, 8*1024, 1024*1024)
		if err != nil {
			return Config{}, fmt.Errorf("PINBOT_ARGON2_MEMORY_KIB: %w", err)
		}
		cfg.Params.MemoryKiB = u
	}
	if v, ok := os.LookupEnv("PINBOT_ARGON2_ITERATIONS"); ok {
		u, err := parseUint32(v, 1, 20)
		if err != nil {
			return Config{}, fmt.Errorf("PINBOT_ARGON2_ITERATIONS: %w", err)
		}
		cfg.Params.Iterations = u
	}
	if v, ok := os.LookupEnv("PINBOT_ARGON2_PARALLELISM"); ok {
		u, err := parseUint32(v, 1, 64)
		if err != nil {
			return Config{}, fmt.Errorf("PINBOT_ARGON2_PARALLELISM: %w", err)
		}
		cfg.Params.Parallelism = uint8(u) // #nosec G115 -- bounded to 64.
	}
	return cfg, nil
}

func parseUint32(s string, lo, hi uint32) (uint32, error) {
	u64, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an unsigned integer")
	}
	u := uint32(u64)
	if u < lo || u > hi {
		return 0, fmt.Errorf("out of range [%d..%d]", lo, hi)
	}
	return u, nil
}
