package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/upcoming/internal/models"
	"github.com/desertthunder/upcoming/internal/services"
	"github.com/desertthunder/upcoming/internal/shared"
	"github.com/desertthunder/upcoming/internal/tasks"
)

// SyncTrigger starts runs and reports scheduler state. [tasks.Scheduler] implements it.
type SyncTrigger interface {
	RunAsync(venueID string) error
	Status(ctx context.Context) tasks.SchedulerStatus
}

// RunLister lists recent runs, newest first.
type RunLister interface {
	List(ctx context.Context, limit int) ([]*models.RunSummary, error)
}

// StatsReporter reports per-venue lineup state.
type StatsReporter interface {
	Stats(ctx context.Context) ([]models.VenueStats, error)
}

// TokenReporter reports the catalog token state.
type TokenReporter interface {
	Status(ctx context.Context) services.TokenStatus
}

// StatusHandler serves read-only service state.
type StatusHandler struct {
	trigger SyncTrigger
	runs    RunLister
	stats   StatsReporter
	tokens  TokenReporter
}

// NewStatusHandler creates a status handler.
func NewStatusHandler(trigger SyncTrigger, runs RunLister, stats StatsReporter, tokens TokenReporter) *StatusHandler {
	return &StatusHandler{trigger: trigger, runs: runs, stats: stats, tokens: tokens}
}

func (h *StatusHandler) Routes() []string {
	return []string{"GET /health", "GET /status", "GET /runs", "GET /venues", "GET /auth/status"}
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/health":
		h.health(w, r)
	case "/status":
		h.status(w, r)
	case "/runs":
		h.listRuns(w, r)
	case "/venues":
		h.venues(w, r)
	case "/auth/status":
		writeJSON(w, http.StatusOK, h.tokens.Status(r.Context()))
	default:
		writeError(w, http.StatusNotFound, "not_found", "no such route")
	}
}

func (h *StatusHandler) health(w http.ResponseWriter, r *http.Request) {
	status := h.trigger.Status(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"running":   status.Running,
		"next_run":  status.NextRun,
	})
}

func (h *StatusHandler) status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.stats.Stats(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"scheduler": h.trigger.Status(ctx),
		"auth":      h.tokens.Status(ctx),
		"venues":    stats,
	})
}

func (h *StatusHandler) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	runs, err := h.runs.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	if runs == nil {
		runs = []*models.RunSummary{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *StatusHandler) venues(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// TriggerHandler starts manual runs. Requests are rate limited per client.
type TriggerHandler struct {
	trigger SyncTrigger
	limited http.Handler
	logger  *log.Logger
}

// NewTriggerHandler creates a trigger handler allowing limit requests per window per client.
func NewTriggerHandler(trigger SyncTrigger, limit int, window time.Duration, logger *log.Logger) *TriggerHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	h := &TriggerHandler{trigger: trigger, logger: logger}
	h.limited = RateLimit(limit, window)(http.HandlerFunc(h.start))
	return h
}

func (h *TriggerHandler) Routes() []string {
	return []string{"POST /sync", "POST /sync/{venue}"}
}

func (h *TriggerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.limited.ServeHTTP(w, r)
}

func (h *TriggerHandler) start(w http.ResponseWriter, r *http.Request) {
	venueID := r.PathValue("venue")

	err := h.trigger.RunAsync(venueID)
	switch {
	case err == nil:
		h.logger.Info("manual sync started", "venue", venueID)
		body := map[string]string{"status": "started"}
		if venueID != "" {
			body["venue"] = venueID
		}
		writeJSON(w, http.StatusAccepted, body)
	case errors.Is(err, shared.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, "already_running", "a sync is already running")
	case errors.Is(err, shared.ErrVenueNotFound):
		writeError(w, http.StatusNotFound, "venue_not_found", err.Error())
	default:
		h.logger.Error("manual sync failed to start", "venue", venueID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
