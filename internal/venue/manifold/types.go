package manifold

import (
	"time"

	"github.com/oddsmux/oddsmux/internal/domain"
)

// APIMarket represents a market as returned by the Manifold API. Timestamps
// are millisecond epochs; Probability is the yes price on binary markets.
type APIMarket struct {
	ID              string  `json:"id"`
	Question        string  `json:"question"`
	TextDescription string  `json:"textDescription"`
	OutcomeType     string  `json:"outcomeType"` // "BINARY", "MULTIPLE_CHOICE", ...
	Probability     float64 `json:"probability"`
	Volume          float64 `json:"volume"`
	TotalLiquidity  float64 `json:"totalLiquidity"`
	IsResolved      bool    `json:"isResolved"`
	Resolution      string  `json:"resolution"` // "YES", "NO", "MKT", "CANCEL"
	CloseTime       int64   `json:"closeTime"`
	URL             string  `json:"url"`
}

// ToVenueMarket converts a Manifold market to a domain.VenueMarket.
func (m *APIMarket) ToVenueMarket() domain.VenueMarket {
	closed := m.CloseTime > 0 && time.UnixMilli(m.CloseTime).Before(time.Now())

	return domain.VenueMarket{
		ExternalID:  m.ID,
		Question:    m.Question,
		Description: m.TextDescription,
		YesPrice:    m.Probability,
		NoPrice:     1 - m.Probability,
		Volume:      m.Volume,
		Liquidity:   m.TotalLiquidity,
		Active:      !m.IsResolved && !closed,
		Resolved:    m.IsResolved,
		Resolution:  m.Resolution,
		URL:         m.URL,
	}
}
