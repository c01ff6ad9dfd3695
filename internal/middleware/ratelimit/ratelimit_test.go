package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, n int) (*Limiter, *time.Time) {
	t.Helper()
	rl := NewLimiter(Config{Requests: n, Period: time.Minute, CleanupInterval: time.Hour})
	t.Cleanup(rl.Stop)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestAllowWindow(t *testing.T) {
	rl, now := newTestLimiter(t, 2)

	for i := 0; i < 2; i++ {
		if ok, _ := rl.Allow("a"); !ok {
			t.Fatalf("request %d rejected", i+1)
		}
	}
	*now = now.Add(20 * time.Second)
	ok, reset := rl.Allow("a")
	if ok {
		t.Fatal("third request allowed")
	}
	if reset != 40*time.Second {
		t.Errorf("reset = %v, want 40s", reset)
	}
	if ok, _ := rl.Allow("b"); !ok {
		t.Error("other client limited")
	}

	*now = now.Add(41 * time.Second)
	if ok, _ := rl.Allow("a"); !ok {
		t.Error("request after window rejected")
	}

	m := rl.GetMetrics()
	if m.Allowed != 4 || m.Rejected != 1 || m.ClientCount != 2 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestSweep(t *testing.T) {
	rl, now := newTestLimiter(t, 1)
	rl.Allow("a")
	*now = now.Add(30 * time.Second)
	rl.Allow("b")
	*now = now.Add(31 * time.Second)

	if got := rl.Sweep(); got != 1 {
		t.Errorf("Sweep() = %d, want 1", got)
	}
	if got := rl.ActiveClients(); got != 1 {
		t.Errorf("ActiveClients() = %d, want 1", got)
	}
}

func TestMiddleware(t *testing.T) {
	rl, _ := newTestLimiter(t, 1)
	h := rl.Middleware(func(r *http.Request) string { return r.RemoteAddr }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	codes := []int{}
	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/refresh", nil))
		codes = append(codes, rr.Code)
		if i == 1 && rr.Header().Get("Retry-After") != "60" {
			t.Errorf("Retry-After = %q, want 60", rr.Header().Get("Retry-After"))
		}
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}
}
