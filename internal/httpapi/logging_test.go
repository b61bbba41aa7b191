package httpapi

import (
	"net/http/httptest"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"":        LevelOff,
		"off":     LevelOff,
		"error":   LevelError,
		"info":    LevelInfo,
		"debug":   LevelDebug,
		"garbage": LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestRequestLogLevel_QueryOverridesHeader(t *testing.T) {
	req := httptest.NewRequest("GET", "/infer?log=debug", nil)
	req.Header.Set("X-Log-Level", "error")
	if got := requestLogLevel(req); got != LevelDebug {
		t.Fatalf("got %d", got)
	}
}

func TestRequestLogLevel_HeaderFallback(t *testing.T) {
	req := httptest.NewRequest("GET", "/infer", nil)
	req.Header.Set("X-Log-Level", "error")
	if got := requestLogLevel(req); got != LevelError {
		t.Fatalf("got %d", got)
	}
}
