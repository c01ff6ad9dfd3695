package security

import (
	"net/http"
	"strings"
	"sync/atomic"

	applog "asistencia/internal/log"
)

var probePatterns = []string{
	"../", "..\\", "/.env", "/.git", "/.ssh", "wp-admin", "wp-login",
	"phpmyadmin", ".php", "etc/passwd", "cmd.exe",
}

// ProbeDetector answers 404 to obvious vulnerability scans without
// reaching the handlers.
type ProbeDetector struct {
	logger  *applog.Logger
	ip      func(*http.Request) string
	flagged atomic.Int64
}

func NewProbeDetector(logger *applog.Logger, ip func(*http.Request) string) *ProbeDetector {
	if logger == nil {
		logger = applog.Discard()
	}
	return &ProbeDetector{logger: logger.WithComponent(applog.ComponentSecurity), ip: ip}
}

// IsProbe reports whether the request path looks like a scan.
func IsProbe(r *http.Request) bool {
	path := strings.ToLower(r.URL.Path)
	for _, p := range probePatterns {
		if strings.Contains(path, p) {
			return true
		}
	}
	return r.Method == "TRACE" || r.Method == "TRACK" || len(r.URL.RawQuery) > 4096
}

func (d *ProbeDetector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IsProbe(r) {
			d.flagged.Add(1)
			ip := ""
			if d.ip != nil {
				ip = d.ip(r)
			}
			d.logger.WarnContext(r.Context(), "Suspicious request blocked",
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path,
				applog.FieldClientIP, ip)
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Flagged returns the number of blocked requests.
func (d *ProbeDetector) Flagged() int64 {
	return d.flagged.Load()
}
