package domain

import "time"

// PriceSnapshot is one append-only time-series point for a VenueMarket.
// Snapshot rows are never updated or deleted by the sync engine; the
// archiver may move old rows to cold storage.
type PriceSnapshot struct {
	ID            int64
	VenueMarketID string
	YesPrice      float64
	NoPrice       float64
	Volume        float64
	Liquidity     float64
	CapturedAt    time.Time
}
