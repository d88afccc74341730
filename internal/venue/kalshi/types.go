package kalshi

import "github.com/oddsmux/oddsmux/internal/domain"

// Market represents a market as returned by the Kalshi REST API. Prices are
// in cents (1-99).
type Market struct {
	Ticker       string  `json:"ticker"`
	EventTicker  string  `json:"event_ticker"`
	Title        string  `json:"title"`
	Subtitle     string  `json:"subtitle"`
	Status       string  `json:"status"` // "open", "closed", "settled"
	YesBid       float64 `json:"yes_bid"`
	YesAsk       float64 `json:"yes_ask"`
	NoBid        float64 `json:"no_bid"`
	NoAsk        float64 `json:"no_ask"`
	LastPrice    float64 `json:"last_price"`
	Volume       int64   `json:"volume"`
	OpenInterest int64   `json:"open_interest"`
	Liquidity    int64   `json:"liquidity"` // in cents
	Result       string  `json:"result"`    // "yes", "no", "" (unsettled)
	CloseTime    string  `json:"close_time"`
}

// marketsResponse is the envelope around the market list endpoint.
type marketsResponse struct {
	Markets []Market `json:"markets"`
	Cursor  string   `json:"cursor"`
}

// marketResponse is the envelope around the single-market endpoint.
type marketResponse struct {
	Market Market `json:"market"`
}

// ErrorResponse is the error body the Kalshi API returns with non-2xx codes.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ToVenueMarket converts a Kalshi market to a domain.VenueMarket. The quote
// is the bid/ask midpoint; when one side is unquoted the last trade price
// stands in.
func (m *Market) ToVenueMarket() domain.VenueMarket {
	vm := domain.VenueMarket{
		ExternalID:  m.Ticker,
		Question:    m.Title,
		Description: m.Subtitle,
		Active:      m.Status == "open",
		Resolved:    m.Status == "settled" || m.Result != "",
		Resolution:  m.Result,
		Volume:      float64(m.Volume),
		Liquidity:   float64(m.Liquidity) / 100,
		URL:         "https://kalshi.com/markets/" + m.Ticker,
	}

	vm.YesPrice = centsMid(m.YesBid, m.YesAsk, m.LastPrice)
	vm.NoPrice = centsMid(m.NoBid, m.NoAsk, 100-m.LastPrice)

	return vm
}

// centsMid converts a bid/ask pair in cents to a dollar midpoint.
func centsMid(bid, ask, fallback float64) float64 {
	switch {
	case bid > 0 && ask > 0:
		return (bid + ask) / 2 / 100
	case ask > 0:
		return ask / 100
	case bid > 0:
		return bid / 100
	case fallback > 0:
		return fallback / 100
	default:
		return 0
	}
}
