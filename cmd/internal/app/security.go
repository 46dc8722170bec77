package app

import (
	"errors"
	"fmt"
	"net/http"

	"pinbot/cmd/security/secret"
)

// ValidateSecurityConfig fails startup on a feed hash the verifier would reject,
// so a typo does not silently leave the feed closed.
func ValidateSecurityConfig(cfg Config, hashCfg secret.Config) error {
	if cfg.FeedTokenHash == "" {
		return nil
	}
	if err := hashCfg.CheckHash(cfg.FeedTokenHash); err != nil {
		return fmt.Errorf("security policy: PINBOT_FEED_TOKEN_HASH: %w", err)
	}
	if cfg.FeedOriginRequired && len(cfg.FeedAllowedOrigins) == 0 {
		return errors.New("security policy: PINBOT_FEED_ORIGIN_REQUIRED=true but PINBOT_FEED_ALLOWED_ORIGINS is empty")
	}
	return nil
}

// WithSecurityHeaders sets conservative response headers for plain HTTP routes.
func WithSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
