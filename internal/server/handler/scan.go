package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/oddsmux/oddsmux/internal/domain"
	"github.com/oddsmux/oddsmux/internal/scan"
)

// ScanHandler serves the on-demand wallet position scan.
type ScanHandler struct {
	scanner    *scan.Scanner
	minBalance float64 // applied when the request omits min_balance
	logger     *slog.Logger
}

// NewScanHandler creates a ScanHandler over the scanner. minBalance is the
// configured dust filter used for requests that do not set their own.
func NewScanHandler(scanner *scan.Scanner, minBalance float64, logger *slog.Logger) *ScanHandler {
	return &ScanHandler{scanner: scanner, minBalance: minBalance, logger: logger}
}

// scanRequest is the scan input payload.
type scanRequest struct {
	Wallet     string             `json:"wallet"`
	MinBalance float64            `json:"min_balance"`
	Positions  []positionDescJSON `json:"positions"`
}

type positionDescJSON struct {
	Contract  string `json:"contract"`
	TokenID   string `json:"token_id"`
	Decimals  int    `json:"decimals"`
	ChainID   int64  `json:"chain_id"`
	MarketID  string `json:"market_id"`
	Slug      string `json:"slug"`
	VenueSlug string `json:"venue_slug"`
	Outcome   string `json:"outcome"`
}

// scannedPositionJSON is the wire form of one held position. The raw
// balance is a decimal string: ERC-1155 balances are 256-bit and would
// lose precision as a JSON number.
type scannedPositionJSON struct {
	MarketID  string  `json:"market_id"`
	Slug      string  `json:"slug"`
	VenueSlug string  `json:"venue_slug"`
	Outcome   string  `json:"outcome"`
	ChainID   int64   `json:"chain_id"`
	Contract  string  `json:"contract"`
	TokenID   string  `json:"token_id"`
	Raw       string  `json:"raw"`
	Balance   float64 `json:"balance"`
	Decimals  int     `json:"decimals"`
}

type scanResponse struct {
	Wallet    string                `json:"wallet"`
	Positions []scannedPositionJSON `json:"positions"`
	Total     float64               `json:"total"`
}

// ScanPositions reads the requested outcome-token balances and returns the
// positions that clear the dust filter.
// POST /api/scan
func (h *ScanHandler) ScanPositions(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !common.IsHexAddress(req.Wallet) {
		writeError(w, http.StatusBadRequest, "invalid wallet address")
		return
	}

	descriptors := make([]domain.PositionDescriptor, 0, len(req.Positions))
	for _, p := range req.Positions {
		descriptors = append(descriptors, domain.PositionDescriptor{
			Token: domain.TokenDescriptor{
				Contract: p.Contract,
				TokenID:  p.TokenID,
				Decimals: p.Decimals,
			},
			ChainID:   p.ChainID,
			MarketID:  p.MarketID,
			Slug:      p.Slug,
			VenueSlug: p.VenueSlug,
			Outcome:   p.Outcome,
		})
	}

	minBalance := req.MinBalance
	if minBalance <= 0 {
		minBalance = h.minBalance
	}

	report, err := h.scanner.ScanPositions(r.Context(), req.Wallet, descriptors, minBalance)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: position scan failed",
			slog.String("wallet", req.Wallet),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "position scan failed")
		return
	}

	resp := scanResponse{
		Wallet:    report.Wallet,
		Positions: make([]scannedPositionJSON, 0, len(report.Positions)),
		Total:     report.Total,
	}
	for _, p := range report.Positions {
		resp.Positions = append(resp.Positions, scannedPositionJSON{
			MarketID:  p.MarketID,
			Slug:      p.Slug,
			VenueSlug: p.VenueSlug,
			Outcome:   p.Outcome,
			ChainID:   p.ChainID,
			Contract:  p.Contract,
			TokenID:   p.TokenID,
			Raw:       p.Balance.Raw.String(),
			Balance:   p.Balance.Formatted,
			Decimals:  p.Balance.Decimals,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}
