package domain

import (
	"context"
	"time"
)

// PriceCache provides fast access to the latest venue quotes.
type PriceCache interface {
	SetPair(ctx context.Context, venueSlug, externalID string, pair PricePair, ts time.Time) error
	GetPair(ctx context.Context, venueSlug, externalID string) (PricePair, time.Time, error)
}

// MarketCache provides fast canonical market lookups.
type MarketCache interface {
	Set(ctx context.Context, m CanonicalMarket) error
	GetBySlug(ctx context.Context, slug string) (CanonicalMarket, error)
	Invalidate(ctx context.Context, slug string) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
