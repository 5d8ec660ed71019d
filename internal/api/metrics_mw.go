package api

import (
	"net/http"
	"time"

	"github.com/passwordkeyorg/smtp2datadog/internal/metrics"
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func instrument(m metrics.APIMetrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)
		m.Observe(r.Method, routeLabel(r.URL.Path), sw.status, time.Since(start))
	})
}

// routeLabel keeps the path label bounded.
func routeLabel(path string) string {
	switch path {
	case "/healthz", "/metrics", "/v1/status":
		return path
	}
	return "other"
}
