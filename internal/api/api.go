// Package api serves the loopback admin endpoints: health, status and
// Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/passwordkeyorg/smtp2datadog/internal/metrics"
)

// Status is the body of GET /v1/status.
type Status struct {
	Service   string `json:"service"`
	Env       string `json:"env"`
	Sink      string `json:"sink"`
	SMTPAddr  string `json:"smtp_addr"`
	StartedAt string `json:"started_at"`
	Uptime    string `json:"uptime"`
}

type Deps struct {
	Logger         *slog.Logger
	Metrics        *metrics.APIMetrics
	MetricsHandler http.Handler

	Service  string
	Env      string
	Sink     string
	SMTPAddr string
	Started  time.Time
}

type handler struct {
	deps Deps
	now  func() time.Time
}

func New(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Started.IsZero() {
		deps.Started = time.Now()
	}
	mux := http.NewServeMux()
	h := &handler{deps: deps, now: time.Now}

	mux.HandleFunc("GET /healthz", h.healthz)
	mux.HandleFunc("GET /v1/status", h.status)
	if deps.MetricsHandler != nil {
		mux.Handle("GET /metrics", deps.MetricsHandler)
	}
	if deps.Metrics != nil {
		return instrument(*deps.Metrics, mux)
	}
	return mux
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(Status{
		Service:   h.deps.Service,
		Env:       h.deps.Env,
		Sink:      h.deps.Sink,
		SMTPAddr:  h.deps.SMTPAddr,
		StartedAt: h.deps.Started.UTC().Format(time.RFC3339),
		Uptime:    h.now().Sub(h.deps.Started).Truncate(time.Second).String(),
	})
}

// ListenAndServe serves h on addr until ctx is cancelled.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("admin listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
