package limitless

import (
	"strconv"

	"github.com/oddsmux/oddsmux/internal/domain"
)

// marketsResponse is the envelope around the market list endpoint.
type marketsResponse struct {
	Markets []APIMarket `json:"data"`
	Total   int         `json:"totalMarketsCount"`
}

// APIMarket represents a market as returned by the Limitless API. Prices
// arrive as percentages (0-100); volume and liquidity as formatted strings.
type APIMarket struct {
	Address         string    `json:"address"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Prices          []float64 `json:"prices"` // [yes, no] in percent
	VolumeFormatted string    `json:"volumeFormatted"`
	Liquidity       string    `json:"liquidityFormatted"`
	Active          bool      `json:"active"`
	Expired         bool      `json:"expired"`
	WinningOutcome  *int      `json:"winningOutcomeIndex"` // 0 = yes, 1 = no
}

// ToVenueMarket converts a Limitless market to a domain.VenueMarket.
func (m *APIMarket) ToVenueMarket() domain.VenueMarket {
	vm := domain.VenueMarket{
		ExternalID:  m.Address,
		Question:    m.Title,
		Description: m.Description,
		Active:      m.Active && !m.Expired,
		Resolved:    m.Expired || m.WinningOutcome != nil,
		URL:         "https://limitless.exchange/markets/" + m.Address,
	}

	if len(m.Prices) >= 2 {
		vm.YesPrice = m.Prices[0] / 100
		vm.NoPrice = m.Prices[1] / 100
	}

	if v, err := strconv.ParseFloat(m.VolumeFormatted, 64); err == nil {
		vm.Volume = v
	}
	if l, err := strconv.ParseFloat(m.Liquidity, 64); err == nil {
		vm.Liquidity = l
	}

	if m.WinningOutcome != nil {
		switch *m.WinningOutcome {
		case 0:
			vm.Resolution = "Yes"
		case 1:
			vm.Resolution = "No"
		}
	}

	return vm
}
