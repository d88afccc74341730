package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/oddsmux/oddsmux/internal/domain"
)

// Reconciler folds normalized venue rows into storage: venue-scoped upsert,
// append-only price history, and cross-venue canonical linking by slug.
// One instance is shared by every adapter.
type Reconciler struct {
	markets     domain.VenueMarketStore
	canonical   domain.CanonicalMarketStore
	snapshots   domain.PriceSnapshotStore
	marketCache domain.MarketCache // optional, nil disables write-through
	logger      *slog.Logger
}

// NewReconciler creates a Reconciler. marketCache may be nil.
func NewReconciler(
	markets domain.VenueMarketStore,
	canonical domain.CanonicalMarketStore,
	snapshots domain.PriceSnapshotStore,
	marketCache domain.MarketCache,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		markets:     markets,
		canonical:   canonical,
		snapshots:   snapshots,
		marketCache: marketCache,
		logger:      logger.With(slog.String("component", "reconciler")),
	}
}

// Upsert stores one normalized market row for the given venue. An existing
// (venue, externalID) row is updated in place; a new row is created, given
// an initial snapshot, and linked to its canonical market. The returned
// bool reports whether a row was created.
func (r *Reconciler) Upsert(ctx context.Context, incoming domain.VenueMarket, cfg domain.VenueConfig) (bool, error) {
	existing, err := r.markets.GetByExternalID(ctx, cfg.ID, incoming.ExternalID)
	switch {
	case err == nil:
		updated := existing
		updated.Question = incoming.Question
		updated.Description = incoming.Description
		updated.YesPrice = incoming.YesPrice
		updated.NoPrice = incoming.NoPrice
		updated.Volume = incoming.Volume
		updated.Liquidity = incoming.Liquidity
		updated.Active = incoming.Active
		updated.Resolved = incoming.Resolved
		updated.Resolution = incoming.Resolution
		updated.URL = incoming.URL
		updated.UpdatedAt = time.Now().UTC()

		if err := r.markets.Update(ctx, updated); err != nil {
			return false, fmt.Errorf("update market %s: %w", incoming.ExternalID, err)
		}
		if err := r.appendSnapshot(ctx, updated); err != nil {
			return false, err
		}
		return false, nil

	case errors.Is(err, domain.ErrNotFound):
		// Created below.

	default:
		return false, fmt.Errorf("lookup market %s: %w", incoming.ExternalID, err)
	}

	created := incoming
	created.ID = uuid.NewString()
	created.VenueConfigID = cfg.ID
	now := time.Now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now

	if err := r.markets.Create(ctx, created); err != nil {
		return false, fmt.Errorf("create market %s: %w", incoming.ExternalID, err)
	}
	if err := r.appendSnapshot(ctx, created); err != nil {
		return false, err
	}
	if err := r.link(ctx, created, cfg); err != nil {
		return false, err
	}
	return true, nil
}

// RecordPrice persists a refreshed quote: the mutated market row plus one
// appended snapshot.
func (r *Reconciler) RecordPrice(ctx context.Context, m domain.VenueMarket) error {
	if err := r.markets.Update(ctx, m); err != nil {
		return fmt.Errorf("update market %s: %w", m.ExternalID, err)
	}
	return r.appendSnapshot(ctx, m)
}

// link attaches a newly created venue market to its canonical market,
// creating the canonical lazily on first sight of the slug. An existing
// canonical is left untouched unless this venue quotes a strictly better
// yes price, in which case best-price fields and attribution move here.
func (r *Reconciler) link(ctx context.Context, m domain.VenueMarket, cfg domain.VenueConfig) error {
	slug := Slugify(m.Question)
	if slug == "" {
		r.logger.Debug("question normalizes to empty slug, skipping canonical link",
			slog.String("venue", cfg.Slug),
			slog.String("external_id", m.ExternalID),
		)
		return nil
	}

	canon, err := r.canonical.GetBySlug(ctx, slug)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		now := time.Now().UTC()
		canon = domain.CanonicalMarket{
			ID:            uuid.NewString(),
			Slug:          slug,
			Question:      m.Question,
			BestYesPrice:  m.YesPrice,
			BestNoPrice:   m.NoPrice,
			BestVenueID:   cfg.ID,
			BestVenueSlug: cfg.Slug,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := r.canonical.Create(ctx, canon); err != nil {
			return fmt.Errorf("create canonical %s: %w", slug, err)
		}
		r.cacheCanonical(ctx, canon)

	case err != nil:
		return fmt.Errorf("lookup canonical %s: %w", slug, err)

	default:
		if betterPrice(m.YesPrice, canon.BestYesPrice) {
			if err := r.canonical.UpdateBestPrice(ctx, canon.ID, m.YesPrice, m.NoPrice, cfg.ID, cfg.Slug); err != nil {
				return fmt.Errorf("update canonical %s: %w", slug, err)
			}
			canon.BestYesPrice = m.YesPrice
			canon.BestNoPrice = m.NoPrice
			canon.BestVenueID = cfg.ID
			canon.BestVenueSlug = cfg.Slug
			r.cacheCanonical(ctx, canon)
			r.logger.Info("canonical best price moved",
				slog.String("slug", slug),
				slog.String("venue", cfg.Slug),
				slog.Float64("yes_price", m.YesPrice),
			)
		}
	}

	if err := r.markets.SetCanonical(ctx, m.ID, canon.ID); err != nil {
		return fmt.Errorf("set canonical for %s: %w", m.ExternalID, err)
	}
	return nil
}

func (r *Reconciler) appendSnapshot(ctx context.Context, m domain.VenueMarket) error {
	snap := domain.PriceSnapshot{
		VenueMarketID: m.ID,
		YesPrice:      m.YesPrice,
		NoPrice:       m.NoPrice,
		Volume:        m.Volume,
		Liquidity:     m.Liquidity,
		CapturedAt:    time.Now().UTC(),
	}
	if err := r.snapshots.Append(ctx, snap); err != nil {
		return fmt.Errorf("append snapshot for %s: %w", m.ExternalID, err)
	}
	return nil
}

// cacheCanonical refreshes the read cache. Cache trouble never fails a sync.
func (r *Reconciler) cacheCanonical(ctx context.Context, canon domain.CanonicalMarket) {
	if r.marketCache == nil {
		return
	}
	if err := r.marketCache.Set(ctx, canon); err != nil {
		r.logger.Debug("canonical cache write failed",
			slog.String("slug", canon.Slug),
			slog.String("error", err.Error()),
		)
	}
}

// betterPrice reports whether the candidate yes price beats the incumbent.
// A zero or negative quote never wins; otherwise strictly lower is better.
func betterPrice(candidate, incumbent float64) bool {
	if candidate <= 0 {
		return false
	}
	if incumbent <= 0 {
		return true
	}
	return candidate < incumbent
}
