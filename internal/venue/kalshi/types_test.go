package kalshi

import "testing"

func TestCentsMid(t *testing.T) {
	tests := []struct {
		name     string
		bid      float64
		ask      float64
		fallback float64
		want     float64
	}{
		{name: "two-sided midpoint", bid: 40, ask: 44, fallback: 50, want: 0.42},
		{name: "ask only", bid: 0, ask: 44, fallback: 50, want: 0.44},
		{name: "bid only", bid: 40, ask: 0, fallback: 50, want: 0.40},
		{name: "unquoted falls back to last trade", bid: 0, ask: 0, fallback: 62, want: 0.62},
		{name: "nothing quoted at all", bid: 0, ask: 0, fallback: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := centsMid(tt.bid, tt.ask, tt.fallback); got != tt.want {
				t.Errorf("centsMid(%v, %v, %v) = %v, want %v", tt.bid, tt.ask, tt.fallback, got, tt.want)
			}
		})
	}
}

func TestToVenueMarket(t *testing.T) {
	m := Market{
		Ticker:    "FED-25DEC-T4.50",
		Title:     "Fed funds above 4.5% in December?",
		Subtitle:  "Target range upper bound",
		Status:    "open",
		YesBid:    40,
		YesAsk:    44,
		NoBid:     56,
		NoAsk:     60,
		LastPrice: 41,
		Volume:    12500,
		Liquidity: 250000,
	}

	vm := m.ToVenueMarket()

	if vm.ExternalID != "FED-25DEC-T4.50" {
		t.Errorf("external id = %q, want the ticker", vm.ExternalID)
	}
	if vm.Question != m.Title || vm.Description != m.Subtitle {
		t.Errorf("question/description = %q/%q, want title and subtitle", vm.Question, vm.Description)
	}
	if !vm.Active || vm.Resolved {
		t.Errorf("active/resolved = %v/%v, want open market active and unresolved", vm.Active, vm.Resolved)
	}
	if vm.YesPrice != 0.42 {
		t.Errorf("yes price = %v, want the 42-cent midpoint in dollars", vm.YesPrice)
	}
	if vm.NoPrice != 0.58 {
		t.Errorf("no price = %v, want the 58-cent midpoint in dollars", vm.NoPrice)
	}
	if vm.Volume != 12500 {
		t.Errorf("volume = %v, want 12500", vm.Volume)
	}
	if vm.Liquidity != 2500 {
		t.Errorf("liquidity = %v, want cents converted to dollars", vm.Liquidity)
	}
	if vm.URL != "https://kalshi.com/markets/FED-25DEC-T4.50" {
		t.Errorf("url = %q, want the market page", vm.URL)
	}
}

func TestToVenueMarket_Lifecycle(t *testing.T) {
	tests := []struct {
		name         string
		status       string
		result       string
		wantActive   bool
		wantResolved bool
	}{
		{name: "open", status: "open", wantActive: true, wantResolved: false},
		{name: "closed but unsettled", status: "closed", wantActive: false, wantResolved: false},
		{name: "settled", status: "settled", result: "yes", wantActive: false, wantResolved: true},
		{name: "result set before status flips", status: "open", result: "no", wantActive: true, wantResolved: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Market{Ticker: "T", Status: tt.status, Result: tt.result}
			vm := m.ToVenueMarket()
			if vm.Active != tt.wantActive {
				t.Errorf("active = %v, want %v", vm.Active, tt.wantActive)
			}
			if vm.Resolved != tt.wantResolved {
				t.Errorf("resolved = %v, want %v", vm.Resolved, tt.wantResolved)
			}
			if vm.Resolution != tt.result {
				t.Errorf("resolution = %q, want %q", vm.Resolution, tt.result)
			}
		})
	}
}

func TestToVenueMarket_OneSidedNoQuote(t *testing.T) {
	m := Market{Ticker: "T", Status: "open", YesBid: 30, YesAsk: 34, LastPrice: 32}

	vm := m.ToVenueMarket()

	if vm.YesPrice != 0.32 {
		t.Errorf("yes price = %v, want 0.32", vm.YesPrice)
	}
	// No side unquoted: the complement of the last trade stands in.
	if vm.NoPrice != 0.68 {
		t.Errorf("no price = %v, want 0.68 from 100 minus last", vm.NoPrice)
	}
}
