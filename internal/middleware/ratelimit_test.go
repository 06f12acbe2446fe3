package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestLimiter(burst int) *LoginLimiter {
	return NewLoginLimiter(LoginLimiterConfig{
		Rate:            rate.Limit(1.0 / 60.0), // effectively no refill within a test
		Burst:           burst,
		CleanupInterval: time.Minute,
	}, testLogger())
}

func hit(t *testing.T, handler http.Handler, remoteAddr string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Code
}

func TestLoginLimiter_ExhaustsBurst(t *testing.T) {
	ll := newTestLimiter(3)
	defer ll.Stop()

	handler := ll.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		if code := hit(t, handler, "10.0.0.1:1234"); code != http.StatusOK {
			t.Fatalf("request %d: got %d, want 200", i+1, code)
		}
	}
	if code := hit(t, handler, "10.0.0.1:1234"); code != http.StatusTooManyRequests {
		t.Fatalf("over-budget request: got %d, want 429", code)
	}
}

func TestLoginLimiter_AddressesAreIndependent(t *testing.T) {
	ll := newTestLimiter(1)
	defer ll.Stop()

	handler := ll.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	if code := hit(t, handler, "10.0.0.1:1234"); code != http.StatusOK {
		t.Fatalf("first address: got %d, want 200", code)
	}
	if code := hit(t, handler, "10.0.0.1:9999"); code != http.StatusTooManyRequests {
		t.Fatal("same address on a different port must share the limiter")
	}
	if code := hit(t, handler, "10.0.0.2:1234"); code != http.StatusOK {
		t.Fatalf("second address: got %d, want 200", code)
	}
	if ll.EntryCount() != 2 {
		t.Errorf("EntryCount = %d, want 2", ll.EntryCount())
	}
}

func TestLoginLimiter_RetryAfterHeader(t *testing.T) {
	ll := newTestLimiter(1)
	defer ll.Stop()

	handler := ll.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	hit(t, handler, "10.0.0.1:1234")

	req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("got %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 response should carry a Retry-After hint")
	}
}
