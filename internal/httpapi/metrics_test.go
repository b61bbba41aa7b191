package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestItoa(t *testing.T) {
	cases := map[int]string{0: "0", 200: "200", 404: "404", 503: "503"}
	for n, want := range cases {
		if got := itoa(n); got != want {
			t.Fatalf("itoa(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestStatusRecorder_CapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rec, status: 200}
	sr.WriteHeader(http.StatusTeapot)
	if sr.status != http.StatusTeapot {
		t.Fatalf("status = %d", sr.status)
	}
}

func TestRoutePatternOrPath_FallsBackToPath(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/some/raw/path", nil)
	if got := routePatternOrPath(req); got != "/some/raw/path" {
		t.Fatalf("got %q", got)
	}
}

func TestRoutePatternOrPath_UsesChiPattern(t *testing.T) {
	r := chi.NewRouter()
	var got string
	r.Get("/batch/{jobID}", func(w http.ResponseWriter, req *http.Request) {
		got = routePatternOrPath(req)
	})
	req := httptest.NewRequest(http.MethodGet, "/batch/abc-123", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)
	if got != "/batch/{jobID}" {
		t.Fatalf("pattern = %q", got)
	}
}

func TestMetricsMiddleware_PassesThrough(t *testing.T) {
	h := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
}
