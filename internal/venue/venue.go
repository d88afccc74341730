// Package venue defines the capability contract every prediction-market
// venue client implements, plus the per-venue profile the sync pipeline is
// parameterized with. One client implementation lives in each subpackage.
package venue

import (
	"context"
	"time"

	"github.com/oddsmux/oddsmux/internal/domain"
)

// MarketQuery selects one page of markets from a venue.
type MarketQuery struct {
	Limit      int
	Offset     int
	ActiveOnly bool
}

// Client is the minimal surface the sync pipeline needs from a venue.
// Implementations map their venue's HTTP status codes and body signals to
// the domain sentinels; the meaning of a 404 or a 400 differs per venue, so
// that classification stays inside each client.
type Client interface {
	// ListMarkets returns one page of normalized markets.
	ListMarkets(ctx context.Context, q MarketQuery) ([]domain.VenueMarket, error)
	// GetMarket returns one market or an error wrapping domain.ErrNotFound.
	GetMarket(ctx context.Context, externalID string) (domain.VenueMarket, error)
	// GetPrices returns the venue's current quote for one market. Delisted
	// markets yield domain.ErrMarketDelisted, already-resolved markets
	// domain.ErrMarketResolved.
	GetPrices(ctx context.Context, externalID string) (domain.PricePair, error)
	// HealthCheck probes the venue; nil means reachable.
	HealthCheck(ctx context.Context) error
}

// Profile carries a venue's identity and sync tuning. Zero tuning values
// are filled from config defaults at wire time.
type Profile struct {
	Slug        string
	DisplayName string
	BaseURL     string
	ChainID     *int64

	BatchSize  int
	MaxPages   int
	ActiveOnly bool
	PageDelay  time.Duration
	PriceCap   int
}
