package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oddsmux/oddsmux/internal/domain"
)

// Interval floors for the two sync loops. Updates below these are silently
// ignored so a bad config push cannot hammer the venues.
const (
	MinMarketSyncInterval = 10 * time.Second
	MinPriceSyncInterval  = 5 * time.Second
)

// maxRecentErrors bounds the scheduler's in-process error ring.
const maxRecentErrors = 50

// SchedulerConfig tunes the two sync loops.
type SchedulerConfig struct {
	MarketSyncInterval time.Duration
	PriceSyncInterval  time.Duration
	SyncOnStartup      bool
}

// DefaultSchedulerConfig returns the intervals used when config is silent.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		MarketSyncInterval: 5 * time.Minute,
		PriceSyncInterval:  time.Minute,
		SyncOnStartup:      true,
	}
}

// merge overlays next onto s. Sub-minimum intervals keep the previous
// value; SyncOnStartup is always taken.
func (s SchedulerConfig) merge(next SchedulerConfig) SchedulerConfig {
	out := s
	if next.MarketSyncInterval >= MinMarketSyncInterval {
		out.MarketSyncInterval = next.MarketSyncInterval
	}
	if next.PriceSyncInterval >= MinPriceSyncInterval {
		out.PriceSyncInterval = next.PriceSyncInterval
	}
	out.SyncOnStartup = next.SyncOnStartup
	return out
}

// RunResult aggregates one scheduler-driven run across all venues.
type RunResult struct {
	Kind     domain.SyncKind
	Success  bool
	Started  time.Time
	Duration time.Duration
	Venues   []domain.SyncResult
	Errors   []string
}

// SyncError is one entry in the scheduler's bounded error ring.
type SyncError struct {
	Kind       domain.SyncKind
	Venue      string
	Message    string
	OccurredAt time.Time
}

// State is a point-in-time snapshot of scheduler bookkeeping. RecentErrors
// is ordered most recent first.
type State struct {
	Running            bool
	Config             SchedulerConfig
	MarketRuns         uint64
	PriceRuns          uint64
	LastMarketSync     *time.Time
	LastPriceSync      *time.Time
	MarketSyncInFlight bool
	PriceSyncInFlight  bool
	RecentErrors       []SyncError
}

// Stats supplements State with ledger-derived staleness signals: a venue
// can look healthy right now while its last good sync is hours old.
type Stats struct {
	State             State
	FailedRuns24h     int64
	LastMarketSuccess *time.Time
	LastPriceSuccess  *time.Time
}

// Alerter pushes operator-facing alerts about sync outcomes. Satisfied by
// notify.Notifier; nil disables alerting.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Alert event types emitted by the scheduler.
const (
	EventSyncFailed    = "sync_failed"
	EventVenueDegraded = "venue_degraded"
)

// Scheduler owns the two repeating sync jobs: market discovery and price
// refresh. Each job is single-flight guarded by an atomic compare-and-set,
// so timer ticks and manual triggers can race freely; the loser of the race
// observes a nil result and walks away. Market sync visits venues
// sequentially in declared order; price sync fans out across venues.
type Scheduler struct {
	adapters []*Adapter
	ledger   domain.SyncLogStore
	alerter  Alerter
	logger   *slog.Logger

	marketFlight atomic.Bool
	priceFlight  atomic.Bool

	mu             sync.Mutex
	cfg            SchedulerConfig
	running        bool
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	marketRuns     uint64
	priceRuns      uint64
	lastMarketSync *time.Time
	lastPriceSync  *time.Time
	recentErrors   []SyncError
	venueFailing   map[string]bool
}

// NewScheduler creates a stopped scheduler over the given adapters. The
// adapter order is the market-sync execution order. alerter may be nil.
func NewScheduler(adapters []*Adapter, ledger domain.SyncLogStore, alerter Alerter, cfg SchedulerConfig, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		adapters:     adapters,
		ledger:       ledger,
		alerter:      alerter,
		cfg:          DefaultSchedulerConfig().merge(cfg),
		venueFailing: make(map[string]bool),
		logger:       logger.With(slog.String("component", "scheduler")),
	}
}

// Start launches both sync loops. Starting a running scheduler is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Debug("start ignored, scheduler already running")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true
	cfg := s.cfg
	s.mu.Unlock()

	s.wg.Add(2)
	go s.runLoop(ctx, domain.SyncKindMarkets, cfg.MarketSyncInterval, cfg.SyncOnStartup)
	go s.runLoop(ctx, domain.SyncKindPrices, cfg.PriceSyncInterval, cfg.SyncOnStartup)

	s.logger.Info("scheduler started",
		slog.Duration("market_sync_interval", cfg.MarketSyncInterval),
		slog.Duration("price_sync_interval", cfg.PriceSyncInterval),
		slog.Bool("sync_on_startup", cfg.SyncOnStartup),
		slog.Int("venues", len(s.adapters)),
	)
}

// Stop cancels both loops and waits for them to exit. Stopping a stopped
// scheduler is a no-op. An in-flight run is not interrupted; Stop only
// prevents future scheduled invocations.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Running reports whether the loops are active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Config returns the current merged configuration.
func (s *Scheduler) Config() SchedulerConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// UpdateConfig merges cfg into the scheduler configuration and returns the
// result. A running scheduler restarts so new intervals take effect
// immediately; a stopped one only stores the merge.
func (s *Scheduler) UpdateConfig(cfg SchedulerConfig) SchedulerConfig {
	s.mu.Lock()
	s.cfg = s.cfg.merge(cfg)
	merged := s.cfg
	running := s.running
	s.mu.Unlock()

	if running {
		s.Stop()
		s.Start()
	}

	s.logger.Info("scheduler config updated",
		slog.Duration("market_sync_interval", merged.MarketSyncInterval),
		slog.Duration("price_sync_interval", merged.PriceSyncInterval),
		slog.Bool("sync_on_startup", merged.SyncOnStartup),
		slog.Bool("restarted", running),
	)
	return merged
}

// runLoop drives one job on its ticker until the loop context is
// cancelled. Runs execute on a detached context: stopping the scheduler
// must not cut a sync off mid-flight.
func (s *Scheduler) runLoop(ctx context.Context, kind domain.SyncKind, interval time.Duration, immediate bool) {
	defer s.wg.Done()
	logger := s.logger.With(slog.String("job", string(kind)))

	if immediate {
		s.dispatch(context.WithoutCancel(ctx), kind, logger)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("sync loop stopped")
			return
		case <-ticker.C:
			s.dispatch(context.WithoutCancel(ctx), kind, logger)
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context, kind domain.SyncKind, logger *slog.Logger) {
	var result *RunResult
	if kind == domain.SyncKindMarkets {
		result = s.RunMarketSync(ctx)
	} else {
		result = s.RunPriceSync(ctx)
	}
	if result == nil {
		logger.Debug("tick skipped, previous run still in flight")
	}
}

// RunMarketSync executes one market-discovery run across every venue in
// declared order. It returns nil, and opens no ledger entries, when a
// market sync is already in flight.
func (s *Scheduler) RunMarketSync(ctx context.Context) *RunResult {
	if !s.marketFlight.CompareAndSwap(false, true) {
		return nil
	}
	defer s.marketFlight.Store(false)

	result := &RunResult{Kind: domain.SyncKindMarkets, Started: time.Now().UTC()}
	for _, a := range s.adapters {
		venueResult := a.SyncMarkets(ctx, SyncOptions{})
		result.Venues = append(result.Venues, *venueResult)
		result.Errors = append(result.Errors, venueResult.Errors...)
	}

	s.finishRun(ctx, result)
	return result
}

// RunPriceSync executes one price-refresh run, fanning out across venues.
// It returns nil, and opens no ledger entries, when a price sync is
// already in flight.
func (s *Scheduler) RunPriceSync(ctx context.Context) *RunResult {
	if !s.priceFlight.CompareAndSwap(false, true) {
		return nil
	}
	defer s.priceFlight.Store(false)

	result := &RunResult{Kind: domain.SyncKindPrices, Started: time.Now().UTC()}

	venueResults := make([]*domain.SyncResult, len(s.adapters))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range s.adapters {
		g.Go(func() error {
			venueResults[i] = a.SyncPrices(gctx)
			return nil
		})
	}
	// Adapters fold their failures into results, so Wait has nothing to
	// return.
	_ = g.Wait()

	for _, r := range venueResults {
		result.Venues = append(result.Venues, *r)
		result.Errors = append(result.Errors, r.Errors...)
	}

	s.finishRun(ctx, result)
	return result
}

// finishRun stamps the bookkeeping shared by both jobs: counters, last-run
// timestamps, the bounded error ring, and operator alerts.
func (s *Scheduler) finishRun(ctx context.Context, result *RunResult) {
	now := time.Now().UTC()
	result.Duration = now.Sub(result.Started)
	result.Success = len(result.Errors) == 0

	var degraded []string

	s.mu.Lock()
	switch result.Kind {
	case domain.SyncKindMarkets:
		s.marketRuns++
		s.lastMarketSync = &now
	case domain.SyncKindPrices:
		s.priceRuns++
		s.lastPriceSync = &now
	}
	for _, v := range result.Venues {
		failing := len(v.Errors) > 0
		if failing && !s.venueFailing[v.VenueSlug] {
			degraded = append(degraded, v.VenueSlug)
		}
		s.venueFailing[v.VenueSlug] = failing
		for _, msg := range v.Errors {
			s.recentErrors = append(s.recentErrors, SyncError{
				Kind:       result.Kind,
				Venue:      v.VenueSlug,
				Message:    msg,
				OccurredAt: now,
			})
		}
	}
	if overflow := len(s.recentErrors) - maxRecentErrors; overflow > 0 {
		s.recentErrors = s.recentErrors[overflow:]
	}
	s.mu.Unlock()

	if result.Success {
		s.logger.Info("sync run complete",
			slog.String("kind", string(result.Kind)),
			slog.Duration("duration", result.Duration),
			slog.Int("venues", len(result.Venues)),
		)
	} else {
		s.logger.Warn("sync run finished with errors",
			slog.String("kind", string(result.Kind)),
			slog.Duration("duration", result.Duration),
			slog.Int("errors", len(result.Errors)),
		)
	}

	s.alert(ctx, result, degraded)
}

// alert emits operator notifications for failed runs and for venues that
// just transitioned from healthy to failing. Alert trouble is only logged.
func (s *Scheduler) alert(ctx context.Context, result *RunResult, degraded []string) {
	if s.alerter == nil {
		return
	}

	for _, slug := range degraded {
		title := fmt.Sprintf("venue degraded: %s", slug)
		if err := s.alerter.Notify(ctx, EventVenueDegraded, title, fmt.Sprintf("%s sync reported errors for %s", result.Kind, slug)); err != nil {
			s.logger.Error("venue degraded alert failed", slog.String("error", err.Error()))
		}
	}

	if !result.Success {
		title := fmt.Sprintf("%s sync failed", result.Kind)
		sample := result.Errors
		if len(sample) > 5 {
			sample = sample[:5]
		}
		if err := s.alerter.Notify(ctx, EventSyncFailed, title, strings.Join(sample, "\n")); err != nil {
			s.logger.Error("sync failed alert failed", slog.String("error", err.Error()))
		}
	}
}

// State returns a snapshot of scheduler bookkeeping. Recent errors are
// returned most recent first.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Running:            s.running,
		Config:             s.cfg,
		MarketRuns:         s.marketRuns,
		PriceRuns:          s.priceRuns,
		MarketSyncInFlight: s.marketFlight.Load(),
		PriceSyncInFlight:  s.priceFlight.Load(),
	}
	if s.lastMarketSync != nil {
		t := *s.lastMarketSync
		st.LastMarketSync = &t
	}
	if s.lastPriceSync != nil {
		t := *s.lastPriceSync
		st.LastPriceSync = &t
	}

	st.RecentErrors = make([]SyncError, len(s.recentErrors))
	for i, e := range s.recentErrors {
		st.RecentErrors[len(s.recentErrors)-1-i] = e
	}
	return st
}

// Stats combines the in-memory state with ledger-derived counters.
func (s *Scheduler) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{State: s.State()}

	failed, err := s.ledger.CountFailedSince(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		return stats, fmt.Errorf("count failed runs: %w", err)
	}
	stats.FailedRuns24h = failed

	if t, err := s.ledger.LastSuccess(ctx, domain.SyncKindMarkets); err != nil {
		return stats, fmt.Errorf("last market success: %w", err)
	} else if !t.IsZero() {
		stats.LastMarketSuccess = &t
	}
	if t, err := s.ledger.LastSuccess(ctx, domain.SyncKindPrices); err != nil {
		return stats, fmt.Errorf("last price success: %w", err)
	} else if !t.IsZero() {
		stats.LastPriceSuccess = &t
	}

	return stats, nil
}
