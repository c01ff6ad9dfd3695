package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	applog "asistencia/internal/log"
)

func TestMiddlewareCountsAndLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Handler: slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})})
	m := NewMiddleware(logger, func(*http.Request) string { return "192.0.2.1" })

	var seenID string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = GetRequestID(r.Context())
		if applog.FromContext(r.Context()) == nil {
			t.Error("no request logger in context")
		}
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	for _, p := range []string{"/", "/ui/kpi", "/missing"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, p, nil))
		if got := rr.Header().Get(RequestIDHeader); got == "" || got != seenID {
			t.Errorf("%s: header id %q, context id %q", p, got, seenID)
		}
	}

	got := m.GetMetrics()
	if got.TotalRequests != 3 || got.InFlight != 0 {
		t.Errorf("metrics = %+v", got)
	}
	if diff := cmp.Diff(map[string]int64{"2xx": 2, "4xx": 1}, got.ByStatusClass); diff != "" {
		t.Errorf("status classes (-want +got):\n%s", diff)
	}

	out := buf.String()
	for _, want := range []string{"HTTP request started", "HTTP request completed", "status_code=404", "level=WARN", "client_ip=192.0.2.1"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestGenerateRequestID(t *testing.T) {
	a, b := GenerateRequestID(), GenerateRequestID()
	if !strings.HasPrefix(a, "req_") || len(a) != len("req_")+16 {
		t.Errorf("unexpected id %q", a)
	}
	if a == b {
		t.Error("ids should differ")
	}
}

func TestGetRequestIDMissing(t *testing.T) {
	if got := GetRequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context()); got != "" {
		t.Errorf("GetRequestID = %q", got)
	}
}
