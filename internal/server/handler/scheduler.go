package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/oddsmux/oddsmux/internal/pipeline"
)

// SchedulerHandler serves the scheduler lifecycle and configuration
// endpoints.
type SchedulerHandler struct {
	sched  *pipeline.Scheduler
	logger *slog.Logger
}

// NewSchedulerHandler creates a SchedulerHandler over the scheduler.
func NewSchedulerHandler(sched *pipeline.Scheduler, logger *slog.Logger) *SchedulerHandler {
	return &SchedulerHandler{sched: sched, logger: logger}
}

// schedulerConfigJSON is the wire form of the scheduler configuration. The
// camelCase millisecond keys match the operator tooling that pushes config.
type schedulerConfigJSON struct {
	MarketSyncIntervalMs int64 `json:"marketSyncIntervalMs"`
	PriceSyncIntervalMs  int64 `json:"priceSyncIntervalMs"`
	SyncOnStartup        bool  `json:"syncOnStartup"`
}

func configJSON(cfg pipeline.SchedulerConfig) schedulerConfigJSON {
	return schedulerConfigJSON{
		MarketSyncIntervalMs: cfg.MarketSyncInterval.Milliseconds(),
		PriceSyncIntervalMs:  cfg.PriceSyncInterval.Milliseconds(),
		SyncOnStartup:        cfg.SyncOnStartup,
	}
}

// Start launches the sync loops. Starting a running scheduler is a no-op.
// POST /api/scheduler/start
func (h *SchedulerHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.sched.Start()
	h.logger.InfoContext(r.Context(), "handler: scheduler start requested")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "started",
		"running": h.sched.Running(),
	})
}

// Stop halts the sync loops without interrupting an in-flight run.
// POST /api/scheduler/stop
func (h *SchedulerHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.sched.Stop()
	h.logger.InfoContext(r.Context(), "handler: scheduler stop requested")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "stopped",
		"running": h.sched.Running(),
	})
}

// updateConfigRequest is the partial-update payload. Absent or sub-minimum
// intervals leave the current value untouched; an absent syncOnStartup
// keeps the current flag.
type updateConfigRequest struct {
	MarketSyncIntervalMs int64 `json:"marketSyncIntervalMs"`
	PriceSyncIntervalMs  int64 `json:"priceSyncIntervalMs"`
	SyncOnStartup        *bool `json:"syncOnStartup"`
}

// UpdateConfig merges the pushed values into the scheduler configuration
// and returns the effective result. A running scheduler restarts so new
// intervals take effect immediately.
// PUT /api/scheduler/config
func (h *SchedulerHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req updateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	next := pipeline.SchedulerConfig{
		MarketSyncInterval: time.Duration(req.MarketSyncIntervalMs) * time.Millisecond,
		PriceSyncInterval:  time.Duration(req.PriceSyncIntervalMs) * time.Millisecond,
		SyncOnStartup:      h.sched.Config().SyncOnStartup,
	}
	if req.SyncOnStartup != nil {
		next.SyncOnStartup = *req.SyncOnStartup
	}

	merged := h.sched.UpdateConfig(next)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "updated",
		"config": configJSON(merged),
	})
}
