package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/oddsmux/oddsmux/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// APIMarket represents a market as returned by the Polymarket Gamma API.
// Several numeric fields arrive JSON-encoded inside strings.
type APIMarket struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Description   string   `json:"description"`
	Slug          string   `json:"slug"`
	ActiveFromAPI flexBool `json:"active"` // API may send bool or "true"/"false" string
	Active        bool     `json:"is_active"`
	Closed        bool     `json:"closed"`
	Outcomes      string   `json:"outcomes"`      // JSON-encoded: e.g. "[\"Yes\",\"No\"]"
	OutcomePrices string   `json:"outcomePrices"` // JSON-encoded: e.g. "[\"0.5\",\"0.5\"]"
	Tokens        []Token  `json:"tokens"`
	Volume        string   `json:"volume"`
	Liquidity     string   `json:"liquidity"`
	EndDateISO    string   `json:"end_date_iso"`
}

// Token represents a token entry inside the Gamma API market response.
type Token struct {
	TokenID string `json:"token_id"`
	Outcome string `json:"outcome"`
	Winner  bool   `json:"winner"`
}

// ToVenueMarket converts a Gamma APIMarket to a domain.VenueMarket. Prices
// come from the string-encoded outcome arrays; index 0 is the Yes outcome
// on binary markets.
func (m *APIMarket) ToVenueMarket() domain.VenueMarket {
	vm := domain.VenueMarket{
		ExternalID:  m.ID,
		Question:    m.Question,
		Description: m.Description,
		Active:      (m.Active || bool(m.ActiveFromAPI)) && !m.Closed,
		Resolved:    m.Closed,
	}

	if prices := decodeStringArray(m.OutcomePrices); len(prices) >= 2 {
		vm.YesPrice, _ = strconv.ParseFloat(prices[0], 64)
		vm.NoPrice, _ = strconv.ParseFloat(prices[1], 64)
	}

	if v, err := strconv.ParseFloat(m.Volume, 64); err == nil {
		vm.Volume = v
	}
	if l, err := strconv.ParseFloat(m.Liquidity, 64); err == nil {
		vm.Liquidity = l
	}

	if m.Closed {
		for _, tok := range m.Tokens {
			if tok.Winner {
				vm.Resolution = tok.Outcome
				break
			}
		}
	}

	if m.Slug != "" {
		vm.URL = "https://polymarket.com/event/" + m.Slug
	}

	return vm
}

// decodeStringArray parses Gamma's JSON-encoded-inside-a-string arrays.
func decodeStringArray(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
