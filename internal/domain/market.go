package domain

import "time"

// VenueMarket is a venue-scoped market row. (VenueConfigID, ExternalID) is
// the natural key; rows are created on first sync, updated on every later
// sync, and never deleted. Delisting only clears the Active flag.
type VenueMarket struct {
	ID            string
	VenueConfigID string
	ExternalID    string
	Question      string
	Description   string
	YesPrice      float64
	NoPrice       float64
	Volume        float64
	Liquidity     float64
	Active        bool
	Resolved      bool
	Resolution    string // winning outcome once resolved, "" otherwise
	CanonicalID   *string
	URL           string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CanonicalMarket is the cross-venue representation of one real-world
// question, keyed by the slug normalized from question text. BestYesPrice
// tracks the cheapest yes across venues; BestVenueSlug attributes it.
type CanonicalMarket struct {
	ID            string
	Slug          string
	Question      string
	BestYesPrice  float64
	BestNoPrice   float64
	BestVenueID   string
	BestVenueSlug string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PricePair is a venue's current quote for one market.
type PricePair struct {
	Yes float64
	No  float64
}
