// Package tier defines the closed set of subscription tiers and their expiration policy.
//
// Role names are parsed once at the boundary. After a successful Parse every
// operation in this package is total.
package tier

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Tier is one of the four subscription tiers.
type Tier int

const (
	Special1M Tier = iota + 1
	Special3M
	Special1Y
	SpecialLifetime
)

// ErrUnknown is returned by Parse for names outside the tier set.
var ErrUnknown = errors.New("unknown tier")

// All lists tiers in configuration order.
var All = []Tier{Special1M, Special3M, Special1Y, SpecialLifetime}

// LifetimeSentinel is the fixed expiration stored for lifetime pins.
var LifetimeSentinel = time.Date(2099, time.December, 31, 0, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

// Parse maps a role display name ("Special 1m") or config key ("special1m") to a Tier.
// Matching is case-insensitive and ignores surrounding whitespace.
func Parse(s string) (Tier, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	switch norm {
	case "special 1m", "special1m":
		return Special1M, nil
	case "special 3m", "special3m":
		return Special3M, nil
	case "special 1y", "special1y":
		return Special1Y, nil
	case "special lifetime", "speciallifetime", "special-lifetime":
		return SpecialLifetime, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknown, s)
}

// Valid reports whether t is one of the four tiers.
func (t Tier) Valid() bool { return t >= Special1M && t <= SpecialLifetime }

// Key is the stable config/option key ("special1m", ..., "speciallifetime").
func (t Tier) Key() string {
	switch t {
	case Special1M:
		return "special1m"
	case Special3M:
		return "special3m"
	case Special1Y:
		return "special1y"
	case SpecialLifetime:
		return "speciallifetime"
	}
	return ""
}

// DisplayName is the role name the tier is known by on the server.
func (t Tier) DisplayName() string {
	switch t {
	case Special1M:
		return "Special 1m"
	case Special3M:
		return "Special 3m"
	case Special1Y:
		return "Special 1y"
	case SpecialLifetime:
		return "Special Lifetime"
	}
	return ""
}

func (t Tier) String() string { return t.DisplayName() }

// Duration is the access window granted by t. Lifetime reports zero.
func (t Tier) Duration() time.Duration {
	switch t {
	case Special1M:
		return 30 * day
	case Special3M:
		return 90 * day
	case Special1Y:
		return 365 * day
	}
	return 0
}

// ExpiresAt computes the expiration for a pin issued at now.
func (t Tier) ExpiresAt(now time.Time) time.Time {
	if t == SpecialLifetime {
		return LifetimeSentinel
	}
	return now.Add(t.Duration())
}

// IsLifetime reports whether exp is the lifetime sentinel.
// It compares instants, so any location or monotonic reading is ignored.
func IsLifetime(exp time.Time) bool {
	return exp.Equal(LifetimeSentinel)
}

// FormatRemaining renders the time left until exp for display.
func FormatRemaining(exp, now time.Time) string {
	if IsLifetime(exp) {
		return "Lifetime access"
	}
	left := exp.Sub(now)
	if left <= 0 {
		return "expired"
	}
	days := int(math.Ceil(left.Hours() / 24))
	if days == 1 {
		return "1 day remaining"
	}
	return fmt.Sprintf("%d days remaining", days)
}
