package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oddsmux/oddsmux/internal/domain"
)

// priceTTL bounds how long a quote outlives its last refresh, so delisted
// markets fall out of the cache instead of serving stale prices forever.
const priceTTL = 10 * time.Minute

// PriceCache implements domain.PriceCache using Redis hashes. Each quote
// is stored at "price:{venue}:{externalID}" with fields "yes", "no", and
// "ts" (Unix nanosecond timestamp).
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func priceKey(venueSlug, externalID string) string {
	return "price:" + venueSlug + ":" + externalID
}

// SetPair stores the latest quote for a venue market.
func (pc *PriceCache) SetPair(ctx context.Context, venueSlug, externalID string, pair domain.PricePair, ts time.Time) error {
	key := priceKey(venueSlug, externalID)
	fields := map[string]interface{}{
		"yes": strconv.FormatFloat(pair.Yes, 'f', -1, 64),
		"no":  strconv.FormatFloat(pair.No, 'f', -1, 64),
		"ts":  strconv.FormatInt(ts.UnixNano(), 10),
	}

	pipe := pc.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, priceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set price %s/%s: %w", venueSlug, externalID, err)
	}
	return nil
}

// GetPair retrieves the latest quote and its timestamp for a venue market.
// Returns domain.ErrNotFound when no quote is cached.
func (pc *PriceCache) GetPair(ctx context.Context, venueSlug, externalID string) (domain.PricePair, time.Time, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(venueSlug, externalID)).Result()
	if err != nil {
		return domain.PricePair{}, time.Time{}, fmt.Errorf("redis: get price %s/%s: %w", venueSlug, externalID, err)
	}
	if len(vals) == 0 {
		return domain.PricePair{}, time.Time{}, domain.ErrNotFound
	}

	yes, err := parseField(vals, "yes")
	if err != nil {
		return domain.PricePair{}, time.Time{}, fmt.Errorf("redis: price %s/%s: %w", venueSlug, externalID, err)
	}
	no, err := parseField(vals, "no")
	if err != nil {
		return domain.PricePair{}, time.Time{}, fmt.Errorf("redis: price %s/%s: %w", venueSlug, externalID, err)
	}

	tsStr, ok := vals["ts"]
	if !ok {
		return domain.PricePair{}, time.Time{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return domain.PricePair{}, time.Time{}, fmt.Errorf("redis: price %s/%s: parse ts: %w", venueSlug, externalID, err)
	}

	return domain.PricePair{Yes: yes, No: no}, time.Unix(0, tsNano), nil
}

func parseField(vals map[string]string, field string) (float64, error) {
	s, ok := vals[field]
	if !ok {
		return 0, domain.ErrNotFound
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", field, err)
	}
	return v, nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
