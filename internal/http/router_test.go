package httpapi

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/robertrittmuller/stagemaster-ai/internal/http/handlers"
)

func TestRouterHealthAndRequestID(t *testing.T) {
	router := NewRouter(&handlers.App{}, RouterOptions{Logger: zerolog.Nop()})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing X-Request-ID")
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/unknown", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown route = %d", rec.Code)
	}
}

func TestRouterRateLimitsWrites(t *testing.T) {
	router := NewRouter(&handlers.App{}, RouterOptions{Logger: zerolog.Nop(), RateLimitPerMin: 1})

	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/v1/jobs", strings.NewReader("{"))
		req.RemoteAddr = "203.0.113.5:4000"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}
	if code := post(); code != http.StatusBadRequest {
		t.Fatalf("first post = %d, want 400 from the handler", code)
	}
	if code := post(); code != http.StatusTooManyRequests {
		t.Fatalf("second post = %d, want 429", code)
	}

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/healthz", nil)
		req.RemoteAddr = "203.0.113.5:4000"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("reads must not be rate limited, got %d", rec.Code)
		}
	}
}

func TestRouterServesStaticFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "results"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "results", "job.png"), []byte("png-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	router := NewRouter(&handlers.App{}, RouterOptions{Logger: zerolog.Nop(), StaticDir: dir})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/results/job.png", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "png-bytes" {
		t.Fatalf("static = %d %q", rec.Code, rec.Body.String())
	}

	without := NewRouter(&handlers.App{}, RouterOptions{Logger: zerolog.Nop()})
	rec = httptest.NewRecorder()
	without.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/results/job.png", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("static without dir = %d", rec.Code)
	}
}
