package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	applog "asistencia/internal/log"
	"asistencia/internal/middleware/ratelimit"
	"asistencia/internal/middleware/security"
	"asistencia/internal/middleware/trace"
	"asistencia/internal/snapshot"
	appweb "asistencia/web"
)

// MirrorPublisher asks the worker to re-mirror the sheet.
type MirrorPublisher interface {
	PublishMirrorRequest(ctx context.Context, reason, requestID string) error
}

// Options configures NewServer. Snapshot is required.
type Options struct {
	Addr     string
	Snapshot *snapshot.Store
	Logger   *applog.Logger

	// Publisher is nil when AMQP is not configured.
	Publisher MirrorPublisher
	// ReadyCheck adds a dependency check to /readyz, e.g. a database ping.
	ReadyCheck func(ctx context.Context) error

	RefreshLimit ratelimit.Config

	// Templates and Static default to the embedded web assets.
	Templates fs.FS
	Static    fs.FS
}

type Server struct {
	http.Server
	templates *template.Template
	snap      *snapshot.Store
	publisher MirrorPublisher
	ready     func(ctx context.Context) error

	ips     *security.IPResolver
	trace   *trace.Middleware
	limiter *ratelimit.Limiter
	probes  *security.ProbeDetector

	started       time.Time
	exports       atomic.Int64
	refreshes     atomic.Int64
	publishErrors atomic.Int64

	shutdownOnce sync.Once
}

var templateFuncs = template.FuncMap{
	"fmtFloat": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"inc":      func(i int) int { return i + 1 },
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	ips := security.DefaultIPResolver()
	s := &Server{
		snap:      opts.Snapshot,
		publisher: opts.Publisher,
		ready:     opts.ReadyCheck,
		ips:       ips,
		trace:     trace.NewMiddleware(logger, ips.ClientIP),
		limiter:   ratelimit.NewLimiter(opts.RefreshLimit),
		probes:    security.NewProbeDetector(logger, ips.ClientIP),
		started:   time.Now(),
	}

	templates := opts.Templates
	if templates == nil {
		templates = appweb.TemplatesFS
	}
	t, err := template.New("").Funcs(templateFuncs).ParseFS(templates, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates",
			applog.FieldError, err,
			"error_type", applog.ErrorTypeConfiguration)
	} else {
		s.templates = t
	}

	mux := http.NewServeMux()

	static := opts.Static
	if static == nil {
		static = appweb.StaticFS
	}
	if sub, err := fs.Sub(static, "static"); err == nil {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(fileServer))
	} else {
		logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /ui/kpi", s.handleKPI)
	mux.HandleFunc("GET /ui/roster", s.handleRoster)
	mux.HandleFunc("GET /ui/top", s.handleTop)
	mux.HandleFunc("GET /ui/participation", s.handleParticipation)
	mux.HandleFunc("GET /ui/participation/detail", s.handleParticipationDetail)
	mux.Handle("GET /export/{file}", security.NoStore(http.HandlerFunc(s.handleExport)))
	mux.HandleFunc("GET /charts/{file}", s.handleChart)

	refresh := s.limiter.Middleware(ips.ClientIP, s.onRefreshLimited)(http.HandlerFunc(s.handleRefresh))
	mux.Handle("POST /refresh", refresh)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.probes.Middleware(s.trace.Middleware(headers.Middleware(mux))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter sweep and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// render executes a template into a buffer first so a failing template
// never leaves a half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded",
			applog.FieldPath, r.URL.Path,
			"error_type", applog.ErrorTypeConfiguration)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	var buf strings.Builder
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		requestLog(r).LogError(r.Context(), "Template execution failed", err,
			applog.ComponentTemplate, applog.OpRender, applog.NewFields())
		InternalServerError("Error al generar la vista").Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(buf.String()))
}

// requestLog wraps the request-scoped logger, which carries the request ID.
func requestLog(r *http.Request) *applog.StructuredLogger {
	return applog.NewStructuredLogger(applog.FromContext(r.Context()))
}
