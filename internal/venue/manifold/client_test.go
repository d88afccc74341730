package manifold

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/oddsmux/oddsmux/internal/domain"
	"github.com/oddsmux/oddsmux/internal/venue"
)

func marketsPayload() string {
	future := time.Now().Add(time.Hour).UnixMilli()
	past := time.Now().Add(-time.Hour).UnixMilli()
	return fmt.Sprintf(`[
		{"id": "m-binary", "question": "Open?", "outcomeType": "BINARY", "probability": 0.6, "closeTime": %d},
		{"id": "m-multi", "question": "Which?", "outcomeType": "MULTIPLE_CHOICE", "closeTime": %d},
		{"id": "m-done", "question": "Done?", "outcomeType": "BINARY", "probability": 1, "isResolved": true, "resolution": "YES", "closeTime": %d}
	]`, future, future, past)
}

func TestListMarkets(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets" {
			t.Errorf("path = %q, want /markets", r.URL.Path)
		}
		gotQuery = map[string]string{
			"limit":  r.URL.Query().Get("limit"),
			"offset": r.URL.Query().Get("offset"),
		}
		w.Write([]byte(marketsPayload()))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	markets, err := c.ListMarkets(context.Background(), venue.MarketQuery{Limit: 100, Offset: 200})
	if err != nil {
		t.Fatalf("ListMarkets() error = %v", err)
	}

	if gotQuery["limit"] != "100" || gotQuery["offset"] != "200" {
		t.Errorf("paging params = %v, want limit=100 offset=200", gotQuery)
	}

	// Non-binary markets are dropped; resolved ones stay without ActiveOnly.
	if len(markets) != 2 {
		t.Fatalf("len(markets) = %d, want 2", len(markets))
	}
	if markets[0].ExternalID != "m-binary" || markets[0].YesPrice != 0.6 {
		t.Errorf("markets[0] = %+v, want m-binary at 0.6", markets[0])
	}
	if markets[1].ExternalID != "m-done" || !markets[1].Resolved {
		t.Errorf("markets[1] = %+v, want resolved m-done", markets[1])
	}
}

func TestListMarkets_ActiveOnlyFiltersClientSide(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(marketsPayload()))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	markets, err := c.ListMarkets(context.Background(), venue.MarketQuery{Limit: 100, ActiveOnly: true})
	if err != nil {
		t.Fatalf("ListMarkets() error = %v", err)
	}

	if len(markets) != 1 {
		t.Fatalf("len(markets) = %d, want only the live binary market", len(markets))
	}
	if markets[0].ExternalID != "m-binary" {
		t.Errorf("markets[0].ExternalID = %q, want m-binary", markets[0].ExternalID)
	}
}

func TestGetMarket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/market/m-77" {
			t.Errorf("path = %q, want singular /market/m-77", r.URL.Path)
		}
		w.Write([]byte(`{"id": "m-77", "question": "Lookup?", "outcomeType": "BINARY", "probability": 0.25}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	m, err := c.GetMarket(context.Background(), "m-77")
	if err != nil {
		t.Fatalf("GetMarket() error = %v", err)
	}
	if m.ExternalID != "m-77" || m.YesPrice != 0.25 || m.NoPrice != 0.75 {
		t.Errorf("market = %+v, want m-77 at 0.25/0.75", m)
	}
}

func TestGetPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/market/m-live":
			w.Write([]byte(`{"id": "m-live", "outcomeType": "BINARY", "probability": 0.44}`))
		case "/market/m-done":
			w.Write([]byte(`{"id": "m-done", "outcomeType": "BINARY", "probability": 1, "isResolved": true, "resolution": "YES"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	pp, err := c.GetPrices(context.Background(), "m-live")
	if err != nil {
		t.Fatalf("GetPrices(live) error = %v", err)
	}
	if pp.Yes != 0.44 || pp.No != 1-0.44 {
		t.Errorf("prices = %+v, want 0.44 and complement", pp)
	}

	if _, err := c.GetPrices(context.Background(), "m-done"); !errors.Is(err, domain.ErrMarketResolved) {
		t.Errorf("GetPrices(resolved) error = %v, want ErrMarketResolved", err)
	}

	if _, err := c.GetPrices(context.Background(), "m-gone"); !errors.Is(err, domain.ErrMarketDelisted) {
		t.Errorf("GetPrices(missing) error = %v, want ErrMarketDelisted", err)
	}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"missing market", http.StatusNotFound, domain.ErrNotFound},
		{"throttled", http.StatusTooManyRequests, domain.ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			c := NewClient(srv.URL)
			_, err := c.GetMarket(context.Background(), "m-1")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("GetMarket() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "1" {
			t.Errorf("limit = %q, want 1", r.URL.Query().Get("limit"))
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	if err := NewClient(srv.URL).HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer down.Close()

	if err := NewClient(down.URL).HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() on failing API = nil, want error")
	}
}
