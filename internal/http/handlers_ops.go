package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"asistencia/internal/amqp"
	applog "asistencia/internal/log"
	"asistencia/internal/middleware/trace"
)

// handleRefresh drops the cached snapshot and, when a publisher is
// configured, asks the worker for a fresh mirror run.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)
	s.snap.Invalidate()
	s.refreshes.Add(1)

	queued := false
	if s.publisher != nil {
		err := s.publisher.PublishMirrorRequest(ctx, amqp.ReasonDashboardRefresh, trace.GetRequestID(ctx))
		if err != nil {
			s.publishErrors.Add(1)
			applog.NewStructuredLogger(logger).LogError(ctx, "Mirror request publish failed", err,
				applog.ComponentAMQP, applog.OpRefresh, applog.NewFields())
		} else {
			queued = true
		}
	}

	logger.InfoContext(ctx, "Snapshot invalidated",
		applog.FieldOperation, applog.OpRefresh,
		"mirror_queued", queued)

	if !isHTMX(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	NewHTMXResponse().
		Status(http.StatusNoContent).
		TriggerSnapshotRefreshed(time.Now(), queued).
		TriggerSuccessNotification("Datos actualizados").
		Write(w)
}

func (s *Server) onRefreshLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Refresh rate limited",
		applog.FieldClientIP, s.ips.ClientIP(r))
	NewHTMXResponse().
		Status(http.StatusTooManyRequests).
		TriggerWarningNotification("Demasiadas actualizaciones, espere un momento").
		Write(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	})
}

// handleReady checks templates, the sheet snapshot and any extra
// dependency check. Any failure answers 503.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	checks := map[string]string{}
	status, code := "ready", http.StatusOK
	fail := func(name, msg string) {
		checks[name] = msg
		status, code = "not_ready", http.StatusServiceUnavailable
	}

	if s.templates == nil {
		fail("templates", "not_loaded")
	} else {
		checks["templates"] = "ok"
	}

	if s.snap.Ready(ctx) {
		checks["snapshot"] = "ok"
	} else {
		fail("snapshot", "degraded")
	}

	if s.ready != nil {
		if err := s.ready(ctx); err != nil {
			fail("backend", err.Error())
		} else {
			checks["backend"] = "ok"
		}
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics writes counters in Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	tm := s.trace.GetMetrics()
	rl := s.limiter.GetMetrics()
	st := s.snap.Stats()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	counter(w, "http_requests_total", "Total number of HTTP requests", tm.TotalRequests)
	classes := make([]string, 0, len(tm.ByStatusClass))
	for c := range tm.ByStatusClass {
		classes = append(classes, c)
	}
	sort.Strings(classes)
	fmt.Fprintf(w, "# HELP http_responses_total Responses by status class\n")
	fmt.Fprintf(w, "# TYPE http_responses_total counter\n")
	for _, c := range classes {
		fmt.Fprintf(w, "http_responses_total{class=%q} %d\n", c, tm.ByStatusClass[c])
	}
	fmt.Fprintln(w)
	gauge(w, "http_requests_in_flight", "Requests being served", tm.InFlight)
	counter(w, "http_request_duration_microseconds_total", "Cumulative request duration", tm.TotalDurationUs)

	counter(w, "snapshot_loads_total", "Sheet load attempts", st.Loads)
	counter(w, "snapshot_load_failures_total", "Failed sheet loads", st.LoadFailures)
	counter(w, "snapshot_cache_hits_total", "Snapshot cache hits", st.Hits)
	counter(w, "snapshot_cache_misses_total", "Snapshot cache misses", st.Misses)
	gauge(w, "snapshot_records", "Records in the current snapshot", st.Records)
	gauge(w, "snapshot_degraded", "1 when the snapshot is empty after a failure", boolInt(st.Degraded))

	counter(w, "refresh_allowed_total", "Refresh requests allowed", rl.Allowed)
	counter(w, "rate_limit_hits_total", "Refresh requests rejected", rl.Rejected)
	gauge(w, "active_rate_limit_clients", "Currently tracked rate limit clients", rl.ClientCount)
	counter(w, "probe_requests_total", "Scanner probes answered with 404", s.probes.Flagged())

	counter(w, "exports_total", "CSV downloads served", s.exports.Load())
	counter(w, "refreshes_total", "Manual refreshes", s.refreshes.Load())
	counter(w, "mirror_publish_errors_total", "Failed mirror request publishes", s.publishErrors.Load())
	gauge(w, "uptime_seconds", "Application uptime in seconds", int64(time.Since(s.started).Seconds()))
}

func counter(w http.ResponseWriter, name, help string, v int64) {
	metric(w, "counter", name, help, v)
}

func gauge(w http.ResponseWriter, name, help string, v int64) {
	metric(w, "gauge", name, help, v)
}

func metric(w http.ResponseWriter, kind, name, help string, v int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
	fmt.Fprintf(w, "%s %d\n\n", name, v)
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
