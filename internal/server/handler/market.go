package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/oddsmux/oddsmux/internal/domain"
)

// MarketHandler serves canonical market HTTP endpoints.
type MarketHandler struct {
	markets domain.CanonicalMarketStore
	cache   domain.MarketCache // optional, nil disables the read-through
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler. cache may be nil.
func NewMarketHandler(markets domain.CanonicalMarketStore, cache domain.MarketCache, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		cache:   cache,
		logger:  logger,
	}
}

// listMarketsResponse wraps the list endpoint output with metadata.
type listMarketsResponse struct {
	Markets []domain.CanonicalMarket `json:"markets"`
	Total   int64                    `json:"total"`
	Limit   int                      `json:"limit"`
	Offset  int                      `json:"offset"`
}

// ListMarkets returns canonical markets with pagination, most recently
// updated first.
// GET /api/markets?limit=50&offset=0
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	markets, err := h.markets.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list markets failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list markets")
		return
	}
	if markets == nil {
		markets = []domain.CanonicalMarket{}
	}

	total, err := h.markets.Count(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: count markets failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to count markets")
		return
	}

	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: markets,
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// GetMarket returns a single canonical market by slug, consulting the cache
// before Postgres. Cache trouble falls through to the store.
// GET /api/markets/{slug}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	slug := pathParam(r, "slug")
	if slug == "" {
		writeError(w, http.StatusBadRequest, "missing market slug")
		return
	}

	if h.cache != nil {
		if m, err := h.cache.GetBySlug(r.Context(), slug); err == nil {
			writeJSON(w, http.StatusOK, m)
			return
		} else if !errors.Is(err, domain.ErrNotFound) {
			h.logger.DebugContext(r.Context(), "handler: market cache read failed",
				slog.String("slug", slug),
				slog.String("error", err.Error()),
			)
		}
	}

	market, err := h.markets.GetBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get market failed",
			slog.String("slug", slug),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get market")
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(r.Context(), market); err != nil {
			h.logger.DebugContext(r.Context(), "handler: market cache write failed",
				slog.String("slug", slug),
				slog.String("error", err.Error()),
			)
		}
	}

	writeJSON(w, http.StatusOK, market)
}
