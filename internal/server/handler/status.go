package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/oddsmux/oddsmux/internal/domain"
	"github.com/oddsmux/oddsmux/internal/pipeline"
)

// StatusHandler serves the engine status and aggregate statistics.
type StatusHandler struct {
	sched  *pipeline.Scheduler
	venues domain.VenueConfigStore
	logger *slog.Logger
}

// NewStatusHandler creates a StatusHandler over the scheduler and the venue
// config store.
func NewStatusHandler(sched *pipeline.Scheduler, venues domain.VenueConfigStore, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		sched:  sched,
		venues: venues,
		logger: logger,
	}
}

// syncErrorJSON is the wire form of one recent-error ring entry.
type syncErrorJSON struct {
	Kind       string    `json:"kind"`
	Venue      string    `json:"venue"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

// schedulerStateJSON is the wire form of the scheduler snapshot.
type schedulerStateJSON struct {
	Running            bool                 `json:"running"`
	Config             schedulerConfigJSON  `json:"config"`
	MarketRuns         uint64               `json:"market_runs"`
	PriceRuns          uint64               `json:"price_runs"`
	LastMarketSync     *time.Time           `json:"last_market_sync"`
	LastPriceSync      *time.Time           `json:"last_price_sync"`
	MarketSyncInFlight bool                 `json:"market_sync_in_flight"`
	PriceSyncInFlight  bool                 `json:"price_sync_in_flight"`
	RecentErrors       []syncErrorJSON      `json:"recent_errors"`
}

func stateJSON(st pipeline.State) schedulerStateJSON {
	out := schedulerStateJSON{
		Running:            st.Running,
		Config:             configJSON(st.Config),
		MarketRuns:         st.MarketRuns,
		PriceRuns:          st.PriceRuns,
		LastMarketSync:     st.LastMarketSync,
		LastPriceSync:      st.LastPriceSync,
		MarketSyncInFlight: st.MarketSyncInFlight,
		PriceSyncInFlight:  st.PriceSyncInFlight,
		RecentErrors:       make([]syncErrorJSON, 0, len(st.RecentErrors)),
	}
	for _, e := range st.RecentErrors {
		out.RecentErrors = append(out.RecentErrors, syncErrorJSON{
			Kind:       string(e.Kind),
			Venue:      e.Venue,
			Message:    e.Message,
			OccurredAt: e.OccurredAt,
		})
	}
	return out
}

// venueHealthJSON is the per-venue health line in the status response.
type venueHealthJSON struct {
	Slug        string    `json:"slug"`
	DisplayName string    `json:"display_name"`
	Health      string    `json:"health"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// GetStatus reports the scheduler snapshot plus per-venue health.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"scheduler": stateJSON(h.sched.State()),
	}

	venues, err := h.venues.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list venues failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list venues")
		return
	}
	healths := make([]venueHealthJSON, 0, len(venues))
	for _, v := range venues {
		healths = append(healths, venueHealthJSON{
			Slug:        v.Slug,
			DisplayName: v.DisplayName,
			Health:      string(v.Health),
			UpdatedAt:   v.UpdatedAt,
		})
	}
	resp["venues"] = healths

	writeJSON(w, http.StatusOK, resp)
}

// statsResponse supplements the state snapshot with ledger-derived numbers.
type statsResponse struct {
	Scheduler         schedulerStateJSON `json:"scheduler"`
	FailedRuns24h     int64              `json:"failed_runs_24h"`
	LastMarketSuccess *time.Time         `json:"last_market_success"`
	LastPriceSuccess  *time.Time         `json:"last_price_success"`
}

// GetStats reports run counters, the trailing-24h failure count, and the
// last successful completion of each job kind.
// GET /api/stats
func (h *StatusHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.sched.Stats(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: scheduler stats failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		Scheduler:         stateJSON(stats.State),
		FailedRuns24h:     stats.FailedRuns24h,
		LastMarketSuccess: stats.LastMarketSuccess,
		LastPriceSuccess:  stats.LastPriceSuccess,
	})
}
