package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/oddsmux/oddsmux/internal/domain"
	"github.com/oddsmux/oddsmux/internal/pipeline"
)

// SyncHandler serves manual sync triggers and the sync ledger.
type SyncHandler struct {
	sched  *pipeline.Scheduler
	ledger domain.SyncLogStore
	logger *slog.Logger
}

// NewSyncHandler creates a SyncHandler over the scheduler and the ledger.
func NewSyncHandler(sched *pipeline.Scheduler, ledger domain.SyncLogStore, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{
		sched:  sched,
		ledger: ledger,
		logger: logger,
	}
}

// runResultJSON is the wire form of one completed run.
type runResultJSON struct {
	Kind     string              `json:"kind"`
	Success  bool                `json:"success"`
	Started  time.Time           `json:"started"`
	Duration string              `json:"duration"`
	Venues   []venueResultJSON   `json:"venues"`
	Errors   []string            `json:"errors"`
}

type venueResultJSON struct {
	Venue          string   `json:"venue"`
	Success        bool     `json:"success"`
	Duration       string   `json:"duration"`
	MarketsCreated int      `json:"markets_created"`
	MarketsUpdated int      `json:"markets_updated"`
	PricesUpdated  int      `json:"prices_updated"`
	Errors         []string `json:"errors"`
}

func resultJSON(result *pipeline.RunResult) runResultJSON {
	out := runResultJSON{
		Kind:     string(result.Kind),
		Success:  result.Success,
		Started:  result.Started,
		Duration: result.Duration.String(),
		Venues:   make([]venueResultJSON, 0, len(result.Venues)),
		Errors:   result.Errors,
	}
	if out.Errors == nil {
		out.Errors = []string{}
	}
	for _, v := range result.Venues {
		vr := venueResultJSON{
			Venue:          v.VenueSlug,
			Success:        v.Success,
			Duration:       v.Duration.String(),
			MarketsCreated: v.MarketsCreated,
			MarketsUpdated: v.MarketsUpdated,
			PricesUpdated:  v.PricesUpdated,
			Errors:         v.Errors,
		}
		if vr.Errors == nil {
			vr.Errors = []string{}
		}
		out.Venues = append(out.Venues, vr)
	}
	return out
}

// TriggerMarketSync runs one market-discovery sync. With ?async=true the
// run is fired and the request returns 202 immediately; otherwise the
// request blocks until the run completes and returns its result. Either
// way a run already in flight yields 409.
// POST /api/sync/markets
func (h *SyncHandler) TriggerMarketSync(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, domain.SyncKindMarkets)
}

// TriggerPriceSync runs one price-refresh sync, with the same async and
// in-flight semantics as TriggerMarketSync.
// POST /api/sync/prices
func (h *SyncHandler) TriggerPriceSync(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, domain.SyncKindPrices)
}

func (h *SyncHandler) trigger(w http.ResponseWriter, r *http.Request, kind domain.SyncKind) {
	h.logger.InfoContext(r.Context(), "handler: manual sync requested",
		slog.String("kind", string(kind)),
		slog.String("async", r.URL.Query().Get("async")),
	)

	if r.URL.Query().Get("async") == "true" {
		st := h.sched.State()
		inFlight := st.MarketSyncInFlight
		if kind == domain.SyncKindPrices {
			inFlight = st.PriceSyncInFlight
		}
		if inFlight {
			writeError(w, http.StatusConflict, string(kind)+" sync already in flight")
			return
		}
		go h.run(context.Background(), kind)
		writeJSON(w, http.StatusAccepted, map[string]string{
			"status": "accepted",
			"kind":   string(kind),
		})
		return
	}

	// The run is detached from the request context: a disconnecting client
	// must not strand a half-finished run in the ledger.
	result := h.run(context.WithoutCancel(r.Context()), kind)
	if result == nil {
		writeError(w, http.StatusConflict, string(kind)+" sync already in flight")
		return
	}
	writeJSON(w, http.StatusOK, resultJSON(result))
}

func (h *SyncHandler) run(ctx context.Context, kind domain.SyncKind) *pipeline.RunResult {
	if kind == domain.SyncKindMarkets {
		return h.sched.RunMarketSync(ctx)
	}
	return h.sched.RunPriceSync(ctx)
}

// listLogResponse wraps the ledger page with its paging echo.
type listLogResponse struct {
	Entries []domain.SyncLogEntry `json:"entries"`
	Limit   int                   `json:"limit"`
	Offset  int                   `json:"offset"`
}

// ListLog returns recent ledger entries, optionally filtered by venue slug
// and job kind.
// GET /api/sync/log?venue=polymarket&kind=markets&limit=50&offset=0
func (h *SyncHandler) ListLog(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	venueSlug := r.URL.Query().Get("venue")

	var kind domain.SyncKind
	switch k := r.URL.Query().Get("kind"); k {
	case "":
	case string(domain.SyncKindMarkets):
		kind = domain.SyncKindMarkets
	case string(domain.SyncKindPrices):
		kind = domain.SyncKindPrices
	default:
		writeError(w, http.StatusBadRequest, "unknown kind "+k)
		return
	}

	entries, err := h.ledger.ListRecent(r.Context(), venueSlug, kind, opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list sync log failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list sync log")
		return
	}
	if entries == nil {
		entries = []domain.SyncLogEntry{}
	}

	writeJSON(w, http.StatusOK, listLogResponse{
		Entries: entries,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}
