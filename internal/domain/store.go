package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// VenueConfigStore persists venue identity and health.
type VenueConfigStore interface {
	Create(ctx context.Context, cfg VenueConfig) error
	GetBySlug(ctx context.Context, slug string) (VenueConfig, error)
	GetByID(ctx context.Context, id string) (VenueConfig, error)
	UpdateHealth(ctx context.Context, id string, health HealthStatus) error
	List(ctx context.Context) ([]VenueConfig, error)
}

// VenueMarketStore persists venue-scoped market rows.
type VenueMarketStore interface {
	Create(ctx context.Context, m VenueMarket) error
	Update(ctx context.Context, m VenueMarket) error
	GetByExternalID(ctx context.Context, venueConfigID, externalID string) (VenueMarket, error)
	ListActiveUnresolved(ctx context.Context, venueConfigID string, limit int) ([]VenueMarket, error)
	ListByVenue(ctx context.Context, venueConfigID string, opts ListOpts) ([]VenueMarket, error)
	SetCanonical(ctx context.Context, id, canonicalID string) error
	SetActive(ctx context.Context, id string, active bool) error
	SetResolved(ctx context.Context, id, resolution string) error
	CountByVenue(ctx context.Context, venueConfigID string) (int64, error)
}

// CanonicalMarketStore persists cross-venue canonical markets.
type CanonicalMarketStore interface {
	Create(ctx context.Context, m CanonicalMarket) error
	GetBySlug(ctx context.Context, slug string) (CanonicalMarket, error)
	GetByID(ctx context.Context, id string) (CanonicalMarket, error)
	UpdateBestPrice(ctx context.Context, id string, yes, no float64, venueID, venueSlug string) error
	List(ctx context.Context, opts ListOpts) ([]CanonicalMarket, error)
	Count(ctx context.Context) (int64, error)
}

// PriceSnapshotStore persists the append-only price time series.
type PriceSnapshotStore interface {
	Append(ctx context.Context, snap PriceSnapshot) error
	ListByMarket(ctx context.Context, venueMarketID string, opts ListOpts) ([]PriceSnapshot, error)
	Count(ctx context.Context) (int64, error)
}

// SyncLogStore persists the append-only sync ledger. Create opens an entry
// in IN_PROGRESS; Finish closes it with final status and counts.
type SyncLogStore interface {
	Create(ctx context.Context, entry SyncLogEntry) error
	Finish(ctx context.Context, entry SyncLogEntry) error
	ListRecent(ctx context.Context, venueSlug string, kind SyncKind, opts ListOpts) ([]SyncLogEntry, error)
	CountFailedSince(ctx context.Context, since time.Time) (int64, error)
	LastSuccess(ctx context.Context, kind SyncKind) (time.Time, error)
}
