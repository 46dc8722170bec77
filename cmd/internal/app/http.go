package app

import (
	"net/http"
	"time"

	"pinbot/cmd/internal/feed"
	"pinbot/cmd/internal/metrics"
)

func registerHTTP(mux *http.ServeMux, log Logger, cfg Config, backend *Backend, gw *feed.Gateway) {
	route := func(pattern, name string, h http.Handler) {
		mux.Handle(pattern, metrics.Instrument(name, WithSecurityHeaders(h)))
	}

	route("GET /healthz", "/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}))

	route("GET /readyz", "/readyz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cfg.ReadinessRequireDB && !backend.Durable() {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}
		if err := backend.Ping(r.Context(), 2*time.Second); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			log.Info("readyz.db.not_ready", "store", backend.Kind, "err", err)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	}))

	route("GET /metrics", "/metrics", metrics.Handler())

	// The WebSocket upgrade sets its own headers.
	mux.Handle("GET /feed", metrics.Instrument("/feed", gw))
}
