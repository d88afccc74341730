package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/oddsmux/oddsmux/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeMarketStore serves canonical markets from a slice and records the
// pagination it was asked for.
type fakeMarketStore struct {
	rows     []domain.CanonicalMarket
	listErr  error
	getCalls int
	listOpts domain.ListOpts
}

func (f *fakeMarketStore) Create(context.Context, domain.CanonicalMarket) error { return nil }

func (f *fakeMarketStore) GetBySlug(_ context.Context, slug string) (domain.CanonicalMarket, error) {
	f.getCalls++
	for _, m := range f.rows {
		if m.Slug == slug {
			return m, nil
		}
	}
	return domain.CanonicalMarket{}, domain.ErrNotFound
}

func (f *fakeMarketStore) GetByID(_ context.Context, id string) (domain.CanonicalMarket, error) {
	for _, m := range f.rows {
		if m.ID == id {
			return m, nil
		}
	}
	return domain.CanonicalMarket{}, domain.ErrNotFound
}

func (f *fakeMarketStore) UpdateBestPrice(context.Context, string, float64, float64, string, string) error {
	return nil
}

func (f *fakeMarketStore) List(_ context.Context, opts domain.ListOpts) ([]domain.CanonicalMarket, error) {
	f.listOpts = opts
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.rows, nil
}

func (f *fakeMarketStore) Count(context.Context) (int64, error) {
	return int64(len(f.rows)), nil
}

// fakeMarketCache is an in-memory domain.MarketCache with failure levers.
type fakeMarketCache struct {
	rows   map[string]domain.CanonicalMarket
	getErr error
	sets   []string
}

func newFakeMarketCache() *fakeMarketCache {
	return &fakeMarketCache{rows: make(map[string]domain.CanonicalMarket)}
}

func (f *fakeMarketCache) Set(_ context.Context, m domain.CanonicalMarket) error {
	f.rows[m.Slug] = m
	f.sets = append(f.sets, m.Slug)
	return nil
}

func (f *fakeMarketCache) GetBySlug(_ context.Context, slug string) (domain.CanonicalMarket, error) {
	if f.getErr != nil {
		return domain.CanonicalMarket{}, f.getErr
	}
	if m, ok := f.rows[slug]; ok {
		return m, nil
	}
	return domain.CanonicalMarket{}, domain.ErrNotFound
}

func (f *fakeMarketCache) Invalidate(_ context.Context, slug string) error {
	delete(f.rows, slug)
	return nil
}

func getMarketRequest(slug string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/markets/"+slug, nil)
	req.SetPathValue("slug", slug)
	return req
}

func TestGetMarket_CacheHitSkipsStore(t *testing.T) {
	store := &fakeMarketStore{}
	cache := newFakeMarketCache()
	cache.rows["will-it-rain"] = domain.CanonicalMarket{ID: "cm-1", Slug: "will-it-rain", BestYesPrice: 0.4}
	h := NewMarketHandler(store, cache, testLogger())

	rec := httptest.NewRecorder()
	h.GetMarket(rec, getMarketRequest("will-it-rain"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if store.getCalls != 0 {
		t.Errorf("store lookups = %d, want cache hit to skip the store", store.getCalls)
	}

	var got domain.CanonicalMarket
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Slug != "will-it-rain" || got.BestYesPrice != 0.4 {
		t.Errorf("market = %+v, want the cached row", got)
	}
}

func TestGetMarket_CacheMissBackfills(t *testing.T) {
	store := &fakeMarketStore{rows: []domain.CanonicalMarket{
		{ID: "cm-1", Slug: "will-it-rain"},
	}}
	cache := newFakeMarketCache()
	h := NewMarketHandler(store, cache, testLogger())

	rec := httptest.NewRecorder()
	h.GetMarket(rec, getMarketRequest("will-it-rain"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if store.getCalls != 1 {
		t.Errorf("store lookups = %d, want 1", store.getCalls)
	}
	if len(cache.sets) != 1 || cache.sets[0] != "will-it-rain" {
		t.Errorf("cache writes = %v, want the fetched market backfilled", cache.sets)
	}
}

func TestGetMarket_CacheErrorFallsThroughToStore(t *testing.T) {
	store := &fakeMarketStore{rows: []domain.CanonicalMarket{
		{ID: "cm-1", Slug: "will-it-rain"},
	}}
	cache := newFakeMarketCache()
	cache.getErr = errors.New("redis down")
	h := NewMarketHandler(store, cache, testLogger())

	rec := httptest.NewRecorder()
	h.GetMarket(rec, getMarketRequest("will-it-rain"))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want cache outage to degrade to the store", rec.Code)
	}
}

func TestGetMarket_NotFound(t *testing.T) {
	h := NewMarketHandler(&fakeMarketStore{}, nil, testLogger())

	rec := httptest.NewRecorder()
	h.GetMarket(rec, getMarketRequest("no-such-market"))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "market not found") {
		t.Errorf("body = %q, want not-found message", rec.Body.String())
	}
}

func TestGetMarket_MissingSlug(t *testing.T) {
	h := NewMarketHandler(&fakeMarketStore{}, nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/markets/", nil)
	rec := httptest.NewRecorder()
	h.GetMarket(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestListMarkets(t *testing.T) {
	store := &fakeMarketStore{rows: []domain.CanonicalMarket{
		{ID: "cm-1", Slug: "first"},
		{ID: "cm-2", Slug: "second"},
	}}
	h := NewMarketHandler(store, nil, testLogger())

	rec := httptest.NewRecorder()
	h.ListMarkets(rec, httptest.NewRequest(http.MethodGet, "/api/markets?limit=10&offset=20", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if store.listOpts.Limit != 10 || store.listOpts.Offset != 20 {
		t.Errorf("list opts = %+v, want limit=10 offset=20", store.listOpts)
	}

	var got listMarketsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got.Markets) != 2 || got.Total != 2 {
		t.Errorf("response = %d markets total %d, want 2/2", len(got.Markets), got.Total)
	}
	if got.Limit != 10 || got.Offset != 20 {
		t.Errorf("response paging = %d/%d, want 10/20", got.Limit, got.Offset)
	}
}

func TestListMarkets_EmptyIsArrayNotNull(t *testing.T) {
	h := NewMarketHandler(&fakeMarketStore{}, nil, testLogger())

	rec := httptest.NewRecorder()
	h.ListMarkets(rec, httptest.NewRequest(http.MethodGet, "/api/markets", nil))

	if !strings.Contains(rec.Body.String(), `"markets":[]`) {
		t.Errorf("body = %q, want empty array rather than null", rec.Body.String())
	}
}

func TestListMarkets_StoreError(t *testing.T) {
	store := &fakeMarketStore{listErr: errors.New("pg down")}
	h := NewMarketHandler(store, nil, testLogger())

	rec := httptest.NewRecorder()
	h.ListMarkets(rec, httptest.NewRequest(http.MethodGet, "/api/markets", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestParseListOpts(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"defaults", "", 50, 0},
		{"explicit values", "limit=25&offset=100", 25, 100},
		{"limit capped", "limit=9999", 500, 0},
		{"garbage ignored", "limit=abc&offset=-5", 50, 0},
		{"zero limit ignored", "limit=0", 50, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/markets?"+tt.query, nil)
			opts := parseListOpts(req)
			if opts.Limit != tt.wantLimit || opts.Offset != tt.wantOffset {
				t.Errorf("opts = %+v, want limit=%d offset=%d", opts, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}
