package http

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"asistencia/internal/core"
	applog "asistencia/internal/log"
	"asistencia/internal/middleware/ratelimit"
	"asistencia/internal/middleware/trace"
	"asistencia/internal/sheets/memory"
	"asistencia/internal/snapshot"
)

var fixture = core.Table{
	Header: []string{
		core.ColTimestamp, core.ColID, core.ColName, core.ColSession, core.ColTopic,
		core.ColYear, core.ColMonth, core.ColRegion, core.ColProvince, core.ColFacilitator,
		core.ColLocCode, core.ColLocName,
	},
	Rows: [][]string{
		{"", "8-123-456", "Ana Gómez", "S1", "Excel", "2024", "Enero", "Metro", "Panamá", "Luis", "10", "Centro A"},
		{"", "8 123 456", "Ana G.", "S2", "Word", "2024", "Febrero", "Metro", "Panamá", "Luis", "10", "Centro A"},
		{"", "4-55-66", "Beto Ruiz", "S3", "Excel", "2025", "Enero", "Oeste", "Coclé", "Marta", "20", "Centro B"},
	},
}

type fakePublisher struct {
	mu      sync.Mutex
	reasons []string
	err     error
}

func (f *fakePublisher) PublishMirrorRequest(_ context.Context, reason, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reasons = append(f.reasons, reason)
	return f.err
}

func (f *fakePublisher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reasons)
}

func newTestServer(t *testing.T, table core.Table, mutate func(*Options)) (*Server, *memory.Store) {
	t.Helper()
	store := memory.New(table)
	opts := Options{
		Addr:     ":0",
		Snapshot: snapshot.New(store, "memory:test", time.Minute, nil),
	}
	if mutate != nil {
		mutate(&opts)
	}
	srv := NewServer(opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, store
}

func do(t *testing.T, srv *Server, method, target string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestDashboardPages(t *testing.T) {
	srv, _ := newTestServer(t, fixture, nil)

	tests := []struct {
		name    string
		target  string
		want    []string
		notWant []string
	}{
		{
			name:   "index",
			target: "/",
			want:   []string{"Asistencia de dinamizadores", "Panamá", "Coclé", "3 de 3 registros", `hx-get="/ui/kpi"`},
		},
		{
			name:   "index with filter",
			target: "/?year=2025",
			want:   []string{"1 de 3 registros", "Limpiar"},
		},
		{
			name:   "kpi",
			target: "/ui/kpi",
			want:   []string{"Indicadores", "Sesiones por mes", "/export/summary.csv"},
		},
		{
			name:   "roster",
			target: "/ui/roster",
			want:   []string{"Ana Gómez", "Beto Ruiz", "10 - Centro A"},
		},
		{
			name:    "roster by location",
			target:  "/ui/roster?location=Centro+B",
			want:    []string{"Beto Ruiz"},
			notWant: []string{"Ana Gómez"},
		},
		{
			name:    "top one",
			target:  "/ui/top?n=1",
			want:    []string{"Ana Gómez", `value="1"`},
			notWant: []string{"Beto Ruiz"},
		},
		{
			name:   "participation",
			target: "/ui/participation",
			want:   []string{"10 - Centro A", "20 - Centro B", "2 de 2 infoplazas"},
		},
		{
			name:    "participation zero only",
			target:  "/ui/participation?year=2025&zero=1",
			want:    []string{"10 - Centro A", "Ver todas las infoplazas"},
			notWant: []string{"20 - Centro B"},
		},
		{
			name:   "detail",
			target: "/ui/participation/detail?location=10+-+Centro+A",
			want:   []string{"Ana Gómez", "2 registros en 2 sesiones"},
		},
		{
			name:   "detail without activity",
			target: "/ui/participation/detail?year=2025&location=10+-+Centro+A",
			want:   []string{"Sin participación registrada"},
		},
		{
			name:   "detail unknown location",
			target: "/ui/participation/detail?location=99+-+Nada",
			want:   []string{"no encontrada en el catálogo"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodGet, tt.target)
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
			}
			body := rr.Body.String()
			for _, w := range tt.want {
				if !strings.Contains(body, w) {
					t.Errorf("body missing %q", w)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(body, w) {
					t.Errorf("body unexpectedly contains %q", w)
				}
			}
		})
	}
}

func TestDetailRequiresLocation(t *testing.T) {
	srv, _ := newTestServer(t, fixture, nil)
	if rr := do(t, srv, http.MethodGet, "/ui/participation/detail"); rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestDetailForLocationWithBlankCodeOrName(t *testing.T) {
	table := core.Table{
		Header: []string{core.ColID, core.ColName, core.ColSession, core.ColLocCode, core.ColLocName},
		Rows: [][]string{
			{"8-1-1", "Ana Pérez", "S1", "", "Centro Sin Código"},
			{"4-2-2", "Beto Ruiz", "S2", "20", ""},
		},
	}
	srv, _ := newTestServer(t, table, nil)

	rr := do(t, srv, http.MethodGet, "/ui/participation")
	if got := strings.Count(rr.Body.String(), "/ui/participation/detail?"); got != 2 {
		t.Fatalf("detail links = %d, want 2", got)
	}

	tests := []struct {
		label string
		want  string
	}{
		{" - Centro Sin Código", "Ana Pérez"},
		{"20 - ", "Beto Ruiz"},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			target := "/ui/participation/detail?" + url.Values{"location": {tt.label}}.Encode()
			rr := do(t, srv, http.MethodGet, target)
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d", rr.Code)
			}
			body := rr.Body.String()
			if strings.Contains(body, "no encontrada en el catálogo") {
				t.Errorf("catalog location reported as unknown")
			}
			if !strings.Contains(body, tt.want) {
				t.Errorf("body missing contributor %q:\n%s", tt.want, body)
			}
		})
	}
}

func TestSectionsReportMissingColumns(t *testing.T) {
	table := core.Table{
		Header: []string{core.ColID, core.ColYear},
		Rows:   [][]string{{"8-1-1", "2024"}},
	}
	srv, _ := newTestServer(t, table, nil)

	for _, target := range []string{"/ui/roster", "/ui/top", "/ui/participation"} {
		rr := do(t, srv, http.MethodGet, target)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d", target, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "Faltan columnas en la hoja") {
			t.Errorf("%s: missing-columns warning not rendered", target)
		}
	}

	rr := do(t, srv, http.MethodGet, "/export/roster.csv")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("export status = %d, want 422", rr.Code)
	}
	if body := rr.Body.String(); !strings.Contains(body, `<div class="error">`) || !strings.Contains(body, "Faltan columnas") {
		t.Errorf("export error body = %q", body)
	}
	// KPIs need no column.
	if rr := do(t, srv, http.MethodGet, "/ui/kpi"); rr.Code != http.StatusOK {
		t.Errorf("kpi status = %d", rr.Code)
	}
}

func TestExport(t *testing.T) {
	srv, _ := newTestServer(t, fixture, nil)

	tests := []struct {
		target   string
		status   int
		filename string
		contains string
	}{
		{"/export/roster.csv", http.StatusOK, "dinamizadores.csv", "Beto Ruiz"},
		{"/export/roster.csv?location=Centro+A", http.StatusOK, "dinamizadores.csv", "Ana Gómez"},
		{"/export/top.csv?n=1", http.StatusOK, "top_dinamizadores.csv", "Ana Gómez"},
		{"/export/participation.csv?year=2025&zero=1", http.StatusOK, "resumen_participacion_infoplazas.csv", "10 - Centro A"},
		{"/export/summary.csv", http.StatusOK, "indicadores.csv", ""},
		{"/export/unknown.csv", http.StatusNotFound, "", ""},
		{"/export/roster.txt", http.StatusNotFound, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rr := do(t, srv, http.MethodGet, tt.target)
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			if tt.status != http.StatusOK {
				return
			}
			if ct := rr.Header().Get("Content-Type"); ct != "text/csv; charset=utf-8" {
				t.Errorf("Content-Type = %q", ct)
			}
			if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, tt.filename) {
				t.Errorf("Content-Disposition = %q, want %q", cd, tt.filename)
			}
			if cc := rr.Header().Get("Cache-Control"); !strings.Contains(cc, "no-store") {
				t.Errorf("Cache-Control = %q", cc)
			}
			if !strings.Contains(rr.Body.String(), tt.contains) {
				t.Errorf("body missing %q:\n%s", tt.contains, rr.Body.String())
			}
		})
	}

	rr := do(t, srv, http.MethodGet, "/export/roster.csv?location=Centro+A")
	if strings.Contains(rr.Body.String(), "Beto Ruiz") {
		t.Error("location filter not applied to export")
	}
	if got := srv.exports.Load(); got < 5 {
		t.Errorf("exports counter = %d", got)
	}
}

func TestExportLogCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Handler: slog.NewTextHandler(&buf, nil)})
	srv, _ := newTestServer(t, fixture, func(o *Options) { o.Logger = logger })

	rr := do(t, srv, http.MethodGet, "/export/roster.csv")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	id := rr.Header().Get(trace.RequestIDHeader)
	if id == "" {
		t.Fatal("missing request ID header")
	}

	var line string
	for _, l := range strings.Split(buf.String(), "\n") {
		if strings.Contains(l, "Report exported") {
			line = l
		}
	}
	if line == "" {
		t.Fatalf("no export log line in:\n%s", buf.String())
	}
	if !strings.Contains(line, applog.FieldRequestID+"="+id) {
		t.Errorf("export log line lacks request ID %q: %s", id, line)
	}
}

func TestCharts(t *testing.T) {
	srv, _ := newTestServer(t, fixture, nil)

	for _, name := range []string{"sessions-by-month", "identities-by-month", "identities-by-region", "identities-by-province", "top"} {
		rr := do(t, srv, http.MethodGet, "/charts/"+name+".svg")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d", name, rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); ct != "image/svg+xml" {
			t.Errorf("%s Content-Type = %q", name, ct)
		}
		if !strings.Contains(rr.Body.String(), "<svg") {
			t.Errorf("%s body is not SVG", name)
		}
	}

	for _, target := range []string{"/charts/pie.svg", "/charts/top.png"} {
		if rr := do(t, srv, http.MethodGet, target); rr.Code != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404", target, rr.Code)
		}
	}
}

func TestRefresh(t *testing.T) {
	pub := &fakePublisher{}
	srv, store := newTestServer(t, fixture, func(o *Options) { o.Publisher = pub })

	if rr := do(t, srv, http.MethodGet, "/ui/roster"); strings.Contains(rr.Body.String(), "Carla") {
		t.Fatal("unexpected row before refresh")
	}

	updated := core.Table{Header: fixture.Header, Rows: append([][]string{}, fixture.Rows...)}
	updated.Rows = append(updated.Rows, []string{"", "3-3-3", "Carla Paz", "S4", "Excel", "2025", "Marzo", "Oeste", "Coclé", "Marta", "20", "Centro B"})
	if err := store.ReplaceTable(context.Background(), "test", updated); err != nil {
		t.Fatal(err)
	}

	rr := do(t, srv, http.MethodPost, "/refresh", "HX-Request", "true")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
	trigger := rr.Header().Get("HX-Trigger")
	if !strings.Contains(trigger, EventSnapshotRefreshed) || !strings.Contains(trigger, `"mirror_queued":true`) {
		t.Errorf("HX-Trigger = %q", trigger)
	}
	if pub.calls() != 1 {
		t.Errorf("publisher calls = %d, want 1", pub.calls())
	}

	if rr := do(t, srv, http.MethodGet, "/ui/roster"); !strings.Contains(rr.Body.String(), "Carla Paz") {
		t.Error("refresh did not reload the snapshot")
	}

	rr = do(t, srv, http.MethodPost, "/refresh")
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/" {
		t.Errorf("plain refresh: status = %d, location = %q", rr.Code, rr.Header().Get("Location"))
	}
}

func TestRefreshPublishFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	srv, _ := newTestServer(t, fixture, func(o *Options) { o.Publisher = pub })

	rr := do(t, srv, http.MethodPost, "/refresh", "HX-Request", "true")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), `"mirror_queued":false`) {
		t.Errorf("HX-Trigger = %q", rr.Header().Get("HX-Trigger"))
	}
	if got := srv.publishErrors.Load(); got != 1 {
		t.Errorf("publishErrors = %d", got)
	}
}

func TestRefreshRateLimited(t *testing.T) {
	srv, _ := newTestServer(t, fixture, func(o *Options) {
		o.RefreshLimit = ratelimit.Config{Requests: 1, Period: time.Hour}
	})

	if rr := do(t, srv, http.MethodPost, "/refresh", "HX-Request", "true"); rr.Code != http.StatusNoContent {
		t.Fatalf("first status = %d", rr.Code)
	}
	rr := do(t, srv, http.MethodPost, "/refresh", "HX-Request", "true")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("Retry-After not set")
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), EventNotification) {
		t.Errorf("HX-Trigger = %q", rr.Header().Get("HX-Trigger"))
	}
}

func TestHealthAndReadiness(t *testing.T) {
	srv, store := newTestServer(t, fixture, nil)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d: %s", path, rr.Code, rr.Body.String())
		}
		if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("%s Content-Type = %q", path, ct)
		}
	}

	store.Fail(errors.New("sheet unavailable"))
	srv.snap.Invalidate()
	rr := do(t, srv, http.MethodGet, "/readyz")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("degraded readyz status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"snapshot":"degraded"`) {
		t.Errorf("body = %s", rr.Body.String())
	}

	rr = do(t, srv, http.MethodGet, "/")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Error al cargar datos") {
		t.Errorf("degraded index: status = %d", rr.Code)
	}
}

func TestReadyCheckFailure(t *testing.T) {
	srv, _ := newTestServer(t, fixture, func(o *Options) {
		o.ReadyCheck = func(context.Context) error { return errors.New("database is locked") }
	})
	rr := do(t, srv, http.MethodGet, "/readyz")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "database is locked") {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestMetrics(t *testing.T) {
	srv, _ := newTestServer(t, fixture, nil)
	do(t, srv, http.MethodGet, "/export/roster.csv")
	do(t, srv, http.MethodGet, "/wp-admin/setup.php")

	rr := do(t, srv, http.MethodGet, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		"exports_total 1",
		"probe_requests_total 1",
		"snapshot_loads_total 1",
		`http_responses_total{class="2xx"}`,
		"# TYPE uptime_seconds gauge",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestProbeBlocked(t *testing.T) {
	srv, _ := newTestServer(t, fixture, nil)
	for _, path := range []string{"/.env", "/wp-admin/"} {
		if rr := do(t, srv, http.MethodGet, path); rr.Code != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404", path, rr.Code)
		}
	}
}

func TestMissingTemplates(t *testing.T) {
	srv, _ := newTestServer(t, fixture, func(o *Options) { o.Templates = fstest.MapFS{} })

	if rr := do(t, srv, http.MethodGet, "/"); rr.Code != http.StatusInternalServerError {
		t.Errorf("index status = %d, want 500", rr.Code)
	}
	rr := do(t, srv, http.MethodGet, "/readyz")
	if rr.Code != http.StatusServiceUnavailable || !strings.Contains(rr.Body.String(), "not_loaded") {
		t.Errorf("readyz status = %d, body = %s", rr.Code, rr.Body.String())
	}
	// Exports do not depend on templates.
	if rr := do(t, srv, http.MethodGet, "/export/summary.csv"); rr.Code != http.StatusOK {
		t.Errorf("export status = %d", rr.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv, _ := newTestServer(t, fixture, nil)
	rr := do(t, srv, http.MethodGet, "/")
	if rr.Header().Get("Content-Security-Policy") == "" {
		t.Error("CSP header missing")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID missing")
	}
}
