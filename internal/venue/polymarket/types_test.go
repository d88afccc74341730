package polymarket

import (
	"encoding/json"
	"testing"
)

func TestFlexBool(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{`true`, true},
		{`false`, false},
		{`"true"`, true},
		{`"TRUE"`, true},
		{`"false"`, false},
		{`"1"`, true},
		{`"0"`, false},
		{`""`, false},
	}
	for _, tt := range tests {
		var f flexBool
		if err := json.Unmarshal([]byte(tt.in), &f); err != nil {
			t.Errorf("unmarshal %s failed: %v", tt.in, err)
			continue
		}
		if bool(f) != tt.want {
			t.Errorf("flexBool(%s) = %v, want %v", tt.in, bool(f), tt.want)
		}
	}

	var f flexBool
	if err := json.Unmarshal([]byte(`42`), &f); err == nil {
		t.Error("numeric input accepted")
	}
}

func TestToVenueMarket(t *testing.T) {
	m := APIMarket{
		ID:            "512329",
		Question:      "Will it rain in NYC tomorrow?",
		Description:   "Resolves per NWS data.",
		Slug:          "will-it-rain-in-nyc-tomorrow",
		Active:        true,
		Outcomes:      `["Yes","No"]`,
		OutcomePrices: `["0.62","0.38"]`,
		Volume:        "125000.5",
		Liquidity:     "8400.25",
	}

	vm := m.ToVenueMarket()

	if vm.ExternalID != "512329" {
		t.Errorf("external id = %q, want the gamma id", vm.ExternalID)
	}
	if !vm.Active || vm.Resolved {
		t.Errorf("active/resolved = %v/%v, want active and unresolved", vm.Active, vm.Resolved)
	}
	if vm.YesPrice != 0.62 || vm.NoPrice != 0.38 {
		t.Errorf("prices = %v/%v, want the string-encoded outcome prices decoded", vm.YesPrice, vm.NoPrice)
	}
	if vm.Volume != 125000.5 || vm.Liquidity != 8400.25 {
		t.Errorf("volume/liquidity = %v/%v, want parsed from strings", vm.Volume, vm.Liquidity)
	}
	if vm.URL != "https://polymarket.com/event/will-it-rain-in-nyc-tomorrow" {
		t.Errorf("url = %q, want the event page", vm.URL)
	}
}

func TestToVenueMarket_ActiveSignals(t *testing.T) {
	tests := []struct {
		name   string
		market APIMarket
		want   bool
	}{
		{name: "is_active only", market: APIMarket{Active: true}, want: true},
		{name: "string active only", market: APIMarket{ActiveFromAPI: true}, want: true},
		{name: "neither flag", market: APIMarket{}, want: false},
		{name: "closed beats active", market: APIMarket{Active: true, Closed: true}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.market.ToVenueMarket().Active; got != tt.want {
				t.Errorf("active = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToVenueMarket_ClosedMarketResolution(t *testing.T) {
	m := APIMarket{
		ID:     "7",
		Closed: true,
		Tokens: []Token{
			{TokenID: "111", Outcome: "Yes", Winner: false},
			{TokenID: "222", Outcome: "No", Winner: true},
		},
	}

	vm := m.ToVenueMarket()

	if !vm.Resolved {
		t.Error("closed market must read as resolved")
	}
	if vm.Resolution != "No" {
		t.Errorf("resolution = %q, want the winning token's outcome", vm.Resolution)
	}

	open := APIMarket{ID: "8", Active: true, Tokens: []Token{{Outcome: "Yes", Winner: true}}}
	if got := open.ToVenueMarket().Resolution; got != "" {
		t.Errorf("resolution = %q, want empty while the market is open", got)
	}
}

func TestToVenueMarket_MalformedEncodedFields(t *testing.T) {
	m := APIMarket{
		ID:            "9",
		OutcomePrices: `not json`,
		Volume:        "n/a",
	}

	vm := m.ToVenueMarket()

	if vm.YesPrice != 0 || vm.NoPrice != 0 {
		t.Errorf("prices = %v/%v, want zero for undecodable arrays", vm.YesPrice, vm.NoPrice)
	}
	if vm.Volume != 0 {
		t.Errorf("volume = %v, want zero for an unparseable string", vm.Volume)
	}
	if vm.URL != "" {
		t.Errorf("url = %q, want empty without a slug", vm.URL)
	}
}
