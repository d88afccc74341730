package limitless

import "testing"

func TestToVenueMarket(t *testing.T) {
	m := APIMarket{
		Address:         "0xabc123",
		Title:           "Will ETH close above 5k this month?",
		Description:     "Settles against the Coinbase close.",
		Prices:          []float64{37.5, 62.5},
		VolumeFormatted: "48250.75",
		Liquidity:       "9100.5",
		Active:          true,
	}

	vm := m.ToVenueMarket()

	if vm.ExternalID != "0xabc123" {
		t.Errorf("external id = %q, want the market address", vm.ExternalID)
	}
	if !vm.Active || vm.Resolved {
		t.Errorf("active/resolved = %v/%v, want live market", vm.Active, vm.Resolved)
	}
	if vm.YesPrice != 0.375 || vm.NoPrice != 0.625 {
		t.Errorf("prices = %v/%v, want percentages converted to dollars", vm.YesPrice, vm.NoPrice)
	}
	if vm.Volume != 48250.75 || vm.Liquidity != 9100.5 {
		t.Errorf("volume/liquidity = %v/%v, want parsed from formatted strings", vm.Volume, vm.Liquidity)
	}
	if vm.URL != "https://limitless.exchange/markets/0xabc123" {
		t.Errorf("url = %q, want the market page", vm.URL)
	}
}

func TestToVenueMarket_Lifecycle(t *testing.T) {
	zero := 0
	one := 1

	tests := []struct {
		name           string
		market         APIMarket
		wantActive     bool
		wantResolved   bool
		wantResolution string
	}{
		{
			name:       "live",
			market:     APIMarket{Active: true},
			wantActive: true,
		},
		{
			name:         "expired without winner yet",
			market:       APIMarket{Active: true, Expired: true},
			wantResolved: true,
		},
		{
			name:           "yes outcome won",
			market:         APIMarket{Expired: true, WinningOutcome: &zero},
			wantResolved:   true,
			wantResolution: "Yes",
		},
		{
			name:           "no outcome won",
			market:         APIMarket{Expired: true, WinningOutcome: &one},
			wantResolved:   true,
			wantResolution: "No",
		},
		{
			name:           "winner set before expiry flag",
			market:         APIMarket{Active: true, WinningOutcome: &zero},
			wantActive:     true,
			wantResolved:   true,
			wantResolution: "Yes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := tt.market.ToVenueMarket()
			if vm.Active != tt.wantActive {
				t.Errorf("active = %v, want %v", vm.Active, tt.wantActive)
			}
			if vm.Resolved != tt.wantResolved {
				t.Errorf("resolved = %v, want %v", vm.Resolved, tt.wantResolved)
			}
			if vm.Resolution != tt.wantResolution {
				t.Errorf("resolution = %q, want %q", vm.Resolution, tt.wantResolution)
			}
		})
	}
}

func TestToVenueMarket_ShortPriceArray(t *testing.T) {
	m := APIMarket{Address: "0x1", Prices: []float64{55}}

	vm := m.ToVenueMarket()

	if vm.YesPrice != 0 || vm.NoPrice != 0 {
		t.Errorf("prices = %v/%v, want zero when both sides are not quoted", vm.YesPrice, vm.NoPrice)
	}
}
