package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oddsmux/oddsmux/internal/domain"
	"github.com/oddsmux/oddsmux/internal/venue"
)

// SyncOptions override the venue profile's paging defaults for one run.
// Zero values fall back to the profile; ActiveOnly is tri-state so an
// explicit false can override a profile default of true.
type SyncOptions struct {
	BatchSize  int
	MaxPages   int
	ActiveOnly *bool
}

// Adapter drives the fetch-normalize-upsert pipeline for one venue. All
// venues share this implementation; behavior differences live in the venue
// client and the profile. An adapter never returns a Go error from its sync
// entry points: every failure is folded into the returned SyncResult so one
// venue cannot abort a scheduler run.
type Adapter struct {
	client  venue.Client
	profile venue.Profile
	rec     *Reconciler
	configs domain.VenueConfigStore
	markets domain.VenueMarketStore
	ledger  domain.SyncLogStore
	prices  domain.PriceCache // optional, nil disables write-through
	logger  *slog.Logger

	mu  sync.Mutex
	cfg *domain.VenueConfig // cached after first resolution
}

// NewAdapter creates the sync adapter for one venue. prices may be nil.
func NewAdapter(
	client venue.Client,
	profile venue.Profile,
	rec *Reconciler,
	configs domain.VenueConfigStore,
	markets domain.VenueMarketStore,
	ledger domain.SyncLogStore,
	prices domain.PriceCache,
	logger *slog.Logger,
) *Adapter {
	return &Adapter{
		client:  client,
		profile: profile,
		rec:     rec,
		configs: configs,
		markets: markets,
		ledger:  ledger,
		prices:  prices,
		logger:  logger.With(slog.String("component", "sync_adapter"), slog.String("venue", profile.Slug)),
	}
}

// VenueSlug returns the adapter's venue identity.
func (a *Adapter) VenueSlug() string { return a.profile.Slug }

// Profile returns the adapter's venue profile.
func (a *Adapter) Profile() venue.Profile { return a.profile }

// HealthCheck probes the venue through its client.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	return a.client.HealthCheck(ctx)
}

// SyncMarkets discovers the venue's markets page by page and upserts each
// row through the reconciler. Paging stops at the first short or empty page
// and never exceeds maxPages. Per-row failures are recorded and skipped;
// they mark the run FAILED in the ledger but do not stop it.
func (a *Adapter) SyncMarkets(ctx context.Context, opts SyncOptions) *domain.SyncResult {
	started := time.Now().UTC()
	result := &domain.SyncResult{VenueSlug: a.profile.Slug, Kind: domain.SyncKindMarkets}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = a.profile.BatchSize
	}
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = a.profile.MaxPages
	}
	activeOnly := a.profile.ActiveOnly
	if opts.ActiveOnly != nil {
		activeOnly = *opts.ActiveOnly
	}

	cfg, err := a.ensureConfig(ctx)
	if err != nil {
		return a.abort(result, started, err)
	}
	entry, err := a.openLedger(ctx, domain.SyncKindMarkets, started)
	if err != nil {
		return a.abort(result, started, err)
	}

	var errs []string
	for page := 0; page < maxPages; page++ {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", a.profile.Slug, err))
			break
		}

		markets, err := a.client.ListMarkets(ctx, venue.MarketQuery{
			Limit:      batchSize,
			Offset:     page * batchSize,
			ActiveOnly: activeOnly,
		})
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", a.profile.Slug, err))
			break
		}
		if len(markets) == 0 {
			break
		}

		for i := range markets {
			created, err := a.rec.Upsert(ctx, markets[i], cfg)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", a.profile.Slug, err))
				continue
			}
			if created {
				result.MarketsCreated++
			} else {
				result.MarketsUpdated++
			}
		}

		a.logger.Info("synced market page",
			slog.Int("page", page+1),
			slog.Int("rows", len(markets)),
			slog.Int("created", result.MarketsCreated),
			slog.Int("updated", result.MarketsUpdated),
		)

		if len(markets) < batchSize {
			break
		}
		if page < maxPages-1 {
			a.pausePage(ctx)
		}
	}

	a.finish(ctx, result, entry, cfg, started, errs)
	return result
}

// SyncPrices refreshes quotes for the venue's active, unresolved markets,
// bounded to the profile's price cap. Per-item failures are swallowed into
// the error list. The venue client classifies its own lifecycle signals:
// a delisted market is recorded and deactivated, an already-resolved market
// is expected, marked resolved, and kept out of the error list.
func (a *Adapter) SyncPrices(ctx context.Context) *domain.SyncResult {
	started := time.Now().UTC()
	result := &domain.SyncResult{VenueSlug: a.profile.Slug, Kind: domain.SyncKindPrices}

	cfg, err := a.ensureConfig(ctx)
	if err != nil {
		return a.abort(result, started, err)
	}
	entry, err := a.openLedger(ctx, domain.SyncKindPrices, started)
	if err != nil {
		return a.abort(result, started, err)
	}

	var errs []string
	markets, err := a.markets.ListActiveUnresolved(ctx, cfg.ID, a.profile.PriceCap)
	if err != nil {
		errs = append(errs, fmt.Sprintf("%s: %v", a.profile.Slug, err))
		a.finish(ctx, result, entry, cfg, started, errs)
		return result
	}

	for i := range markets {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", a.profile.Slug, err))
			break
		}

		m := markets[i]
		pair, err := a.client.GetPrices(ctx, m.ExternalID)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrMarketResolved):
				if err := a.markets.SetResolved(ctx, m.ID, m.Resolution); err != nil {
					errs = append(errs, fmt.Sprintf("%s: %v", a.profile.Slug, err))
				}
			case errors.Is(err, domain.ErrMarketDelisted):
				if err := a.markets.SetActive(ctx, m.ID, false); err != nil {
					errs = append(errs, fmt.Sprintf("%s: %v", a.profile.Slug, err))
				}
				errs = append(errs, fmt.Sprintf("%s: %v", a.profile.Slug, err))
			default:
				errs = append(errs, fmt.Sprintf("%s: %v", a.profile.Slug, err))
			}
			continue
		}

		m.YesPrice = pair.Yes
		m.NoPrice = pair.No
		m.UpdatedAt = time.Now().UTC()
		if err := a.rec.RecordPrice(ctx, m); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", a.profile.Slug, err))
			continue
		}
		a.cachePair(ctx, m.ExternalID, pair)
		result.PricesUpdated++
	}

	a.finish(ctx, result, entry, cfg, started, errs)
	return result
}

// ensureConfig lazily resolves or creates the venue's configuration row.
// The resolved row is cached for the adapter's lifetime.
func (a *Adapter) ensureConfig(ctx context.Context) (domain.VenueConfig, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cfg != nil {
		return *a.cfg, nil
	}

	cfg, err := a.configs.GetBySlug(ctx, a.profile.Slug)
	switch {
	case err == nil:

	case errors.Is(err, domain.ErrNotFound):
		now := time.Now().UTC()
		cfg = domain.VenueConfig{
			ID:          uuid.NewString(),
			Slug:        a.profile.Slug,
			DisplayName: a.profile.DisplayName,
			BaseURL:     a.profile.BaseURL,
			ChainID:     a.profile.ChainID,
			Health:      domain.HealthUnknown,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := a.configs.Create(ctx, cfg); err != nil {
			if !errors.Is(err, domain.ErrAlreadyExists) {
				return domain.VenueConfig{}, fmt.Errorf("create venue config: %w", err)
			}
			// Lost a create race with another process; take theirs.
			cfg, err = a.configs.GetBySlug(ctx, a.profile.Slug)
			if err != nil {
				return domain.VenueConfig{}, fmt.Errorf("resolve venue config: %w", err)
			}
		}

	default:
		return domain.VenueConfig{}, fmt.Errorf("resolve venue config: %w", err)
	}

	a.cfg = &cfg
	return cfg, nil
}

// abort finalizes a run that failed before any unit of work began. No
// ledger entry exists at this point, so the single error only reaches the
// result and the log.
func (a *Adapter) abort(result *domain.SyncResult, started time.Time, err error) *domain.SyncResult {
	result.Errors = []string{fmt.Sprintf("%s: %v", a.profile.Slug, err)}
	result.SyncedAt = time.Now().UTC()
	result.Duration = result.SyncedAt.Sub(started)
	a.logger.Error("sync aborted", slog.String("kind", string(result.Kind)), slog.String("error", err.Error()))
	return result
}

// finish stamps the result, closes the ledger entry, and updates health.
func (a *Adapter) finish(ctx context.Context, result *domain.SyncResult, entry domain.SyncLogEntry, cfg domain.VenueConfig, started time.Time, errs []string) {
	result.Errors = errs
	result.Success = len(errs) == 0
	result.SyncedAt = time.Now().UTC()
	result.Duration = result.SyncedAt.Sub(started)

	a.closeLedger(ctx, entry, result)
	a.updateHealth(ctx, cfg, result.Success)

	if result.Success {
		a.logger.Info("sync complete",
			slog.String("kind", string(result.Kind)),
			slog.Int("created", result.MarketsCreated),
			slog.Int("updated", result.MarketsUpdated),
			slog.Int("prices_updated", result.PricesUpdated),
			slog.Duration("duration", result.Duration),
		)
	} else {
		a.logger.Warn("sync finished with errors",
			slog.String("kind", string(result.Kind)),
			slog.Int("errors", len(errs)),
			slog.Duration("duration", result.Duration),
		)
	}
}

func (a *Adapter) openLedger(ctx context.Context, kind domain.SyncKind, started time.Time) (domain.SyncLogEntry, error) {
	entry := domain.SyncLogEntry{
		ID:        uuid.NewString(),
		VenueSlug: a.profile.Slug,
		Kind:      kind,
		Status:    domain.SyncStatusInProgress,
		StartedAt: started,
	}
	if err := a.ledger.Create(ctx, entry); err != nil {
		return domain.SyncLogEntry{}, fmt.Errorf("open ledger entry: %w", err)
	}
	return entry, nil
}

// closeLedger finishes the entry opened for this run. The stored error
// sample is bounded; the full list still reaches the caller via the result.
func (a *Adapter) closeLedger(ctx context.Context, entry domain.SyncLogEntry, result *domain.SyncResult) {
	entry.Status = domain.SyncStatusSuccess
	if !result.Success {
		entry.Status = domain.SyncStatusFailed
	}
	completed := result.SyncedAt
	entry.CompletedAt = &completed
	entry.MarketsCreated = result.MarketsCreated
	entry.MarketsUpdated = result.MarketsUpdated
	entry.PricesUpdated = result.PricesUpdated
	entry.Errors = result.Errors
	if len(entry.Errors) > domain.MaxLedgerErrors {
		entry.Errors = entry.Errors[:domain.MaxLedgerErrors]
	}

	if err := a.ledger.Finish(ctx, entry); err != nil {
		a.logger.Error("close ledger entry", slog.String("error", err.Error()))
	}
}

func (a *Adapter) updateHealth(ctx context.Context, cfg domain.VenueConfig, healthy bool) {
	health := domain.HealthHealthy
	if !healthy {
		health = domain.HealthDegraded
	}
	if err := a.configs.UpdateHealth(ctx, cfg.ID, health); err != nil {
		a.logger.Error("update venue health", slog.String("error", err.Error()))
	}
}

// cachePair writes a refreshed quote through to the price cache. Cache
// trouble never fails a sync.
func (a *Adapter) cachePair(ctx context.Context, externalID string, pair domain.PricePair) {
	if a.prices == nil {
		return
	}
	if err := a.prices.SetPair(ctx, a.profile.Slug, externalID, pair, time.Now().UTC()); err != nil {
		a.logger.Debug("price cache write failed",
			slog.String("external_id", externalID),
			slog.String("error", err.Error()),
		)
	}
}

// pausePage sleeps the profile's fixed inter-page delay, honoring ctx.
func (a *Adapter) pausePage(ctx context.Context) {
	if a.profile.PageDelay <= 0 {
		return
	}
	timer := time.NewTimer(a.profile.PageDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
