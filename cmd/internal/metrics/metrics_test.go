package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInstrument_CountsByRouteAndStatus(t *testing.T) {
	h := Instrument("/readyz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/readyz", "503"))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz?x=1", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rr.Code)
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/readyz", "503"))
	if after-before != 1 {
		t.Fatalf("counter delta=%v want 1", after-before)
	}
	if got := testutil.ToFloat64(httpInFlight); got != 0 {
		t.Fatalf("in-flight gauge=%v want 0", got)
	}
}

func TestInitIdempotentAndHandlerServes(t *testing.T) {
	Init()
	Init()

	AuditWriteFailures.WithLabelValues("add").Inc()

	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "pinbot_audit_write_failures_total") {
		t.Fatalf("metrics output missing audit counter")
	}
}

func TestStatusWriter_HijackUnsupported(t *testing.T) {
	sw := &statusWriter{ResponseWriter: httptest.NewRecorder(), code: http.StatusOK}
	if _, _, err := sw.Hijack(); err == nil {
		t.Fatalf("expected hijack error on recorder")
	}
	if sw.Unwrap() == nil {
		t.Fatalf("Unwrap returned nil")
	}
}
