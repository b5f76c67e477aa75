package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type readiness struct{ ok bool }

func (r readiness) Readiness(context.Context) (bool, map[string]string) {
	if r.ok {
		return true, map[string]string{"store": "up"}
	}
	return false, map[string]string{"store": "down"}
}

func TestHandler_Routes(t *testing.T) {
	api := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "api:"+r.URL.Path)
	})
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "# metrics")
	})
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Handler(log, api, readiness{ok: false}, metrics)

	cases := []struct {
		path string
		code int
		body string
	}{
		{"/healthz", http.StatusOK, "ok"},
		{"/readyz", http.StatusServiceUnavailable, `"not_ready"`},
		{"/metrics", http.StatusOK, "# metrics"},
		{"/sessions/abc/layer", http.StatusOK, "api:/sessions/abc/layer"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if rec.Code != tc.code {
			t.Fatalf("%s: status=%d want %d", tc.path, rec.Code, tc.code)
		}
		if !strings.Contains(rec.Body.String(), tc.body) {
			t.Fatalf("%s: body=%q want %q", tc.path, rec.Body.String(), tc.body)
		}
		if rec.Header().Get("X-Request-ID") == "" {
			t.Fatalf("%s: missing X-Request-ID", tc.path)
		}
	}
}
