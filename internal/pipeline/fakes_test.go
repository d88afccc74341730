package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/oddsmux/oddsmux/internal/domain"
	"github.com/oddsmux/oddsmux/internal/venue"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClient scripts a venue.Client with per-method hooks. Unset hooks
// answer with benign defaults.
type fakeClient struct {
	mu        sync.Mutex
	listCalls int
	listFn    func(q venue.MarketQuery) ([]domain.VenueMarket, error)
	getFn     func(externalID string) (domain.VenueMarket, error)
	pricesFn  func(externalID string) (domain.PricePair, error)
	healthFn  func() error
}

func (c *fakeClient) ListMarkets(_ context.Context, q venue.MarketQuery) ([]domain.VenueMarket, error) {
	c.mu.Lock()
	c.listCalls++
	c.mu.Unlock()
	if c.listFn == nil {
		return nil, nil
	}
	return c.listFn(q)
}

func (c *fakeClient) GetMarket(_ context.Context, externalID string) (domain.VenueMarket, error) {
	if c.getFn == nil {
		return domain.VenueMarket{ExternalID: externalID}, nil
	}
	return c.getFn(externalID)
}

func (c *fakeClient) GetPrices(_ context.Context, externalID string) (domain.PricePair, error) {
	if c.pricesFn == nil {
		return domain.PricePair{}, nil
	}
	return c.pricesFn(externalID)
}

func (c *fakeClient) HealthCheck(context.Context) error {
	if c.healthFn == nil {
		return nil
	}
	return c.healthFn()
}

func (c *fakeClient) ListCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listCalls
}

// memConfigStore is an in-memory domain.VenueConfigStore.
type memConfigStore struct {
	mu          sync.Mutex
	rows        map[string]domain.VenueConfig // by slug
	createCalls int
	getErr      error
	createErr   error
	healthByID  map[string]domain.HealthStatus
}

func newMemConfigStore() *memConfigStore {
	return &memConfigStore{
		rows:       make(map[string]domain.VenueConfig),
		healthByID: make(map[string]domain.HealthStatus),
	}
}

func (s *memConfigStore) Create(_ context.Context, cfg domain.VenueConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	if s.createErr != nil {
		return s.createErr
	}
	if _, ok := s.rows[cfg.Slug]; ok {
		return domain.ErrAlreadyExists
	}
	s.rows[cfg.Slug] = cfg
	return nil
}

func (s *memConfigStore) GetBySlug(_ context.Context, slug string) (domain.VenueConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return domain.VenueConfig{}, s.getErr
	}
	cfg, ok := s.rows[slug]
	if !ok {
		return domain.VenueConfig{}, domain.ErrNotFound
	}
	return cfg, nil
}

func (s *memConfigStore) GetByID(_ context.Context, id string) (domain.VenueConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cfg := range s.rows {
		if cfg.ID == id {
			return cfg, nil
		}
	}
	return domain.VenueConfig{}, domain.ErrNotFound
}

func (s *memConfigStore) UpdateHealth(_ context.Context, id string, health domain.HealthStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthByID[id] = health
	return nil
}

func (s *memConfigStore) List(context.Context) ([]domain.VenueConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.VenueConfig, 0, len(s.rows))
	for _, cfg := range s.rows {
		out = append(out, cfg)
	}
	return out, nil
}

func (s *memConfigStore) health(id string) domain.HealthStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.healthByID[id]
}

// memMarketStore is an in-memory domain.VenueMarketStore preserving
// insertion order.
type memMarketStore struct {
	mu            sync.Mutex
	rows          []domain.VenueMarket
	createErrFor  map[string]error // by external ID
	updateErrFor  map[string]error // by external ID
	lastListLimit int
	setActive     map[string]bool   // market ID -> last value
	setResolved   map[string]string // market ID -> resolution
}

func newMemMarketStore() *memMarketStore {
	return &memMarketStore{
		createErrFor: make(map[string]error),
		updateErrFor: make(map[string]error),
		setActive:    make(map[string]bool),
		setResolved:  make(map[string]string),
	}
}

func (s *memMarketStore) Create(_ context.Context, m domain.VenueMarket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.createErrFor[m.ExternalID]; err != nil {
		return err
	}
	for _, row := range s.rows {
		if row.VenueConfigID == m.VenueConfigID && row.ExternalID == m.ExternalID {
			return domain.ErrAlreadyExists
		}
	}
	s.rows = append(s.rows, m)
	return nil
}

func (s *memMarketStore) Update(_ context.Context, m domain.VenueMarket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.updateErrFor[m.ExternalID]; err != nil {
		return err
	}
	for i, row := range s.rows {
		if row.ID == m.ID {
			s.rows[i] = m
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *memMarketStore) GetByExternalID(_ context.Context, venueConfigID, externalID string) (domain.VenueMarket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.VenueConfigID == venueConfigID && row.ExternalID == externalID {
			return row, nil
		}
	}
	return domain.VenueMarket{}, domain.ErrNotFound
}

func (s *memMarketStore) ListActiveUnresolved(_ context.Context, venueConfigID string, limit int) ([]domain.VenueMarket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastListLimit = limit
	var out []domain.VenueMarket
	for _, row := range s.rows {
		if len(out) == limit {
			break
		}
		if row.VenueConfigID == venueConfigID && row.Active && !row.Resolved {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *memMarketStore) ListByVenue(_ context.Context, venueConfigID string, opts domain.ListOpts) ([]domain.VenueMarket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.VenueMarket
	for _, row := range s.rows {
		if row.VenueConfigID == venueConfigID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *memMarketStore) SetCanonical(_ context.Context, id, canonicalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, row := range s.rows {
		if row.ID == id {
			cid := canonicalID
			s.rows[i].CanonicalID = &cid
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *memMarketStore) SetActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setActive[id] = active
	for i, row := range s.rows {
		if row.ID == id {
			s.rows[i].Active = active
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *memMarketStore) SetResolved(_ context.Context, id, resolution string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setResolved[id] = resolution
	for i, row := range s.rows {
		if row.ID == id {
			s.rows[i].Resolved = true
			s.rows[i].Resolution = resolution
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *memMarketStore) CountByVenue(_ context.Context, venueConfigID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, row := range s.rows {
		if row.VenueConfigID == venueConfigID {
			n++
		}
	}
	return n, nil
}

func (s *memMarketStore) seed(m domain.VenueMarket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, m)
}

func (s *memMarketStore) get(id string) (domain.VenueMarket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.ID == id {
			return row, true
		}
	}
	return domain.VenueMarket{}, false
}

// bestPriceCall records one UpdateBestPrice invocation.
type bestPriceCall struct {
	id        string
	yes, no   float64
	venueID   string
	venueSlug string
}

// memCanonicalStore is an in-memory domain.CanonicalMarketStore.
type memCanonicalStore struct {
	mu          sync.Mutex
	rows        map[string]domain.CanonicalMarket // by slug
	createCalls int
	bestCalls   []bestPriceCall
}

func newMemCanonicalStore() *memCanonicalStore {
	return &memCanonicalStore{rows: make(map[string]domain.CanonicalMarket)}
}

func (s *memCanonicalStore) Create(_ context.Context, m domain.CanonicalMarket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	if _, ok := s.rows[m.Slug]; ok {
		return domain.ErrAlreadyExists
	}
	s.rows[m.Slug] = m
	return nil
}

func (s *memCanonicalStore) GetBySlug(_ context.Context, slug string) (domain.CanonicalMarket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[slug]
	if !ok {
		return domain.CanonicalMarket{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *memCanonicalStore) GetByID(_ context.Context, id string) (domain.CanonicalMarket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.rows {
		if m.ID == id {
			return m, nil
		}
	}
	return domain.CanonicalMarket{}, domain.ErrNotFound
}

func (s *memCanonicalStore) UpdateBestPrice(_ context.Context, id string, yes, no float64, venueID, venueSlug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bestCalls = append(s.bestCalls, bestPriceCall{id: id, yes: yes, no: no, venueID: venueID, venueSlug: venueSlug})
	for slug, m := range s.rows {
		if m.ID == id {
			m.BestYesPrice = yes
			m.BestNoPrice = no
			m.BestVenueID = venueID
			m.BestVenueSlug = venueSlug
			s.rows[slug] = m
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *memCanonicalStore) List(_ context.Context, opts domain.ListOpts) ([]domain.CanonicalMarket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CanonicalMarket, 0, len(s.rows))
	for _, m := range s.rows {
		out = append(out, m)
	}
	return out, nil
}

func (s *memCanonicalStore) Count(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.rows)), nil
}

// memSnapshotStore is an in-memory domain.PriceSnapshotStore.
type memSnapshotStore struct {
	mu    sync.Mutex
	snaps []domain.PriceSnapshot
}

func (s *memSnapshotStore) Append(_ context.Context, snap domain.PriceSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
	return nil
}

func (s *memSnapshotStore) ListByMarket(_ context.Context, venueMarketID string, opts domain.ListOpts) ([]domain.PriceSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PriceSnapshot
	for _, snap := range s.snaps {
		if snap.VenueMarketID == venueMarketID {
			out = append(out, snap)
		}
	}
	return out, nil
}

func (s *memSnapshotStore) Count(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.snaps)), nil
}

func (s *memSnapshotStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snaps)
}

// memLedger is an in-memory domain.SyncLogStore.
type memLedger struct {
	mu          sync.Mutex
	entries     []domain.SyncLogEntry
	createErr   error
	failedSince int64
	lastSuccess map[domain.SyncKind]time.Time
}

func newMemLedger() *memLedger {
	return &memLedger{lastSuccess: make(map[domain.SyncKind]time.Time)}
}

func (s *memLedger) Create(_ context.Context, entry domain.SyncLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *memLedger) Finish(_ context.Context, entry domain.SyncLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.ID == entry.ID {
			s.entries[i] = entry
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *memLedger) ListRecent(_ context.Context, venueSlug string, kind domain.SyncKind, opts domain.ListOpts) ([]domain.SyncLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SyncLogEntry
	for _, e := range s.entries {
		if venueSlug != "" && e.VenueSlug != venueSlug {
			continue
		}
		if kind != "" && e.Kind != kind {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *memLedger) CountFailedSince(_ context.Context, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failedSince, nil
}

func (s *memLedger) LastSuccess(_ context.Context, kind domain.SyncKind) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSuccess[kind], nil
}

func (s *memLedger) all() []domain.SyncLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.SyncLogEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// memPriceCache is an in-memory domain.PriceCache.
type memPriceCache struct {
	mu    sync.Mutex
	pairs map[string]domain.PricePair
}

func newMemPriceCache() *memPriceCache {
	return &memPriceCache{pairs: make(map[string]domain.PricePair)}
}

func (c *memPriceCache) SetPair(_ context.Context, venueSlug, externalID string, pair domain.PricePair, ts time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pairs[venueSlug+"/"+externalID] = pair
	return nil
}

func (c *memPriceCache) GetPair(_ context.Context, venueSlug, externalID string) (domain.PricePair, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pair, ok := c.pairs[venueSlug+"/"+externalID]
	if !ok {
		return domain.PricePair{}, time.Time{}, domain.ErrNotFound
	}
	return pair, time.Time{}, nil
}

// memMarketCache is an in-memory domain.MarketCache.
type memMarketCache struct {
	mu   sync.Mutex
	rows map[string]domain.CanonicalMarket
}

func newMemMarketCache() *memMarketCache {
	return &memMarketCache{rows: make(map[string]domain.CanonicalMarket)}
}

func (c *memMarketCache) Set(_ context.Context, m domain.CanonicalMarket) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows[m.Slug] = m
	return nil
}

func (c *memMarketCache) GetBySlug(_ context.Context, slug string) (domain.CanonicalMarket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.rows[slug]
	if !ok {
		return domain.CanonicalMarket{}, domain.ErrNotFound
	}
	return m, nil
}

func (c *memMarketCache) Invalidate(_ context.Context, slug string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rows, slug)
	return nil
}

// recordingAlerter captures scheduler alerts by event type.
type recordingAlerter struct {
	mu     sync.Mutex
	events []string
}

func (a *recordingAlerter) Notify(_ context.Context, event, title, message string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *recordingAlerter) byEvent(event string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, e := range a.events {
		if e == event {
			n++
		}
	}
	return n
}

// fakeLocks scripts a domain.LockManager.
type fakeLocks struct {
	mu       sync.Mutex
	err      error
	acquired int
	released int
}

func (l *fakeLocks) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.acquired++
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.released++
	}, nil
}

// fakeArchive scripts a domain.Archiver.
type fakeArchive struct {
	mu     sync.Mutex
	calls  int
	cutoff time.Time
	count  int64
	err    error
}

func (a *fakeArchive) ArchiveSnapshots(_ context.Context, before time.Time) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.cutoff = before
	if a.err != nil {
		return 0, a.err
	}
	return a.count, nil
}

// newTestAdapter wires an adapter over fresh in-memory stores.
func newTestAdapter(client venue.Client, profile venue.Profile) (*Adapter, *memConfigStore, *memMarketStore, *memCanonicalStore, *memSnapshotStore, *memLedger) {
	configs := newMemConfigStore()
	markets := newMemMarketStore()
	canonical := newMemCanonicalStore()
	snapshots := &memSnapshotStore{}
	ledger := newMemLedger()
	rec := NewReconciler(markets, canonical, snapshots, nil, testLogger())
	a := NewAdapter(client, profile, rec, configs, markets, ledger, nil, testLogger())
	return a, configs, markets, canonical, snapshots, ledger
}

// pagedClient serves markets out of a fixed page table.
func pagedClient(pages [][]domain.VenueMarket) *fakeClient {
	return &fakeClient{
		listFn: func(q venue.MarketQuery) ([]domain.VenueMarket, error) {
			page := q.Offset / q.Limit
			if page >= len(pages) {
				return nil, nil
			}
			return pages[page], nil
		},
	}
}

// marketRow builds a minimal normalized market.
func marketRow(externalID, question string, yes float64) domain.VenueMarket {
	return domain.VenueMarket{
		ExternalID: externalID,
		Question:   question,
		YesPrice:   yes,
		NoPrice:    1 - yes,
		Active:     true,
	}
}
