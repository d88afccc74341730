package handler

import (
	"log/slog"
	"net/http"

	"github.com/oddsmux/oddsmux/internal/domain"
)

// VenueHandler serves venue configuration endpoints.
type VenueHandler struct {
	venues  domain.VenueConfigStore
	markets domain.VenueMarketStore
	logger  *slog.Logger
}

// NewVenueHandler creates a VenueHandler over the venue stores.
func NewVenueHandler(venues domain.VenueConfigStore, markets domain.VenueMarketStore, logger *slog.Logger) *VenueHandler {
	return &VenueHandler{
		venues:  venues,
		markets: markets,
		logger:  logger,
	}
}

// venueSummary pairs a venue config with its tracked market count.
type venueSummary struct {
	Venue       domain.VenueConfig `json:"venue"`
	MarketCount int64              `json:"market_count"`
}

// listVenuesResponse wraps the venue list.
type listVenuesResponse struct {
	Venues []venueSummary `json:"venues"`
}

// ListVenues returns every known venue with its health and market count.
// GET /api/venues
func (h *VenueHandler) ListVenues(w http.ResponseWriter, r *http.Request) {
	venues, err := h.venues.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list venues failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list venues")
		return
	}

	summaries := make([]venueSummary, 0, len(venues))
	for _, v := range venues {
		count, err := h.markets.CountByVenue(r.Context(), v.ID)
		if err != nil {
			h.logger.ErrorContext(r.Context(), "handler: count venue markets failed",
				slog.String("venue", v.Slug),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to count venue markets")
			return
		}
		summaries = append(summaries, venueSummary{Venue: v, MarketCount: count})
	}

	writeJSON(w, http.StatusOK, listVenuesResponse{Venues: summaries})
}
