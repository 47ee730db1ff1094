// Package web provides the status HTTP server used by watch mode:
// health, quota status, recent history, and Prometheus metrics.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tubegate/tubegate/domain/quota"
	"github.com/tubegate/tubegate/ports"
)

// QuotaSource exposes the current quota ledger for reporting.
type QuotaSource interface {
	Status() quota.Status
}

// Deps contains dependencies for the status handler.
type Deps struct {
	Quota       QuotaSource
	History     ports.HistoryStore
	Clock       ports.Clock
	Logger      zerolog.Logger
	Registry    *prometheus.Registry // nil serves the default registry
	MetricsPath string               // default: /metrics
}

// Handler serves the status endpoints.
type Handler struct {
	quota       QuotaSource
	history     ports.HistoryStore
	clock       ports.Clock
	log         zerolog.Logger
	registry    *prometheus.Registry
	metricsPath string
	started     time.Time
}

// NewHandler creates a status handler.
func NewHandler(deps Deps) *Handler {
	path := deps.MetricsPath
	if path == "" {
		path = "/metrics"
	}
	return &Handler{
		quota:       deps.Quota,
		history:     deps.History,
		clock:       deps.Clock,
		log:         deps.Logger,
		registry:    deps.Registry,
		metricsPath: path,
		started:     deps.Clock.Now(),
	}
}

// Routes returns the status router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealth)
	r.Get("/status", h.handleStatus)
	r.Get("/history", h.handleHistory)

	var metrics http.Handler
	if h.registry != nil {
		metrics = promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{})
	} else {
		metrics = promhttp.Handler()
	}
	r.Method(http.MethodGet, h.metricsPath, metrics)

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": h.clock.Now().Sub(h.started).String(),
	})
}

// statusResponse is the quota ledger view.
type statusResponse struct {
	DailyQuota  int       `json:"daily_quota"`
	Used        int       `json:"used_quota"`
	Remaining   int       `json:"remaining_quota"`
	PercentUsed float64   `json:"percent_used"`
	ResetTime   time.Time `json:"reset_time"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	s := h.quota.Status()
	h.writeJSON(w, http.StatusOK, statusResponse{
		DailyQuota:  s.DailyQuota,
		Used:        s.Used,
		Remaining:   s.Remaining,
		PercentUsed: s.PercentUsed,
		ResetTime:   s.ResetTime,
	})
}

// historyEntry is one upload outcome in the history view.
type historyEntry struct {
	Filename     string    `json:"filename"`
	VideoID      string    `json:"video_id,omitempty"`
	Title        string    `json:"title,omitempty"`
	CollectionID string    `json:"collection_id,omitempty"`
	Status       string    `json:"status"`
	Reason       string    `json:"reason,omitempty"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	records, err := h.history.Recent(r.Context(), 50)
	if err != nil {
		h.log.Error().Err(err).Msg("history query failed")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history unavailable"})
		return
	}

	entries := make([]historyEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, historyEntry{
			Filename:     rec.Filename,
			VideoID:      rec.VideoID,
			Title:        rec.Title,
			CollectionID: rec.CollectionID,
			Status:       string(rec.Status),
			Reason:       rec.Reason,
			UploadedAt:   rec.UploadedAt,
		})
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"records": entries})
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Debug().Err(err).Msg("failed to encode response")
	}
}

// Serve runs the status server until ctx is done, then shuts it down
// gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, readTimeout, writeTimeout time.Duration, log zerolog.Logger) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("status server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
