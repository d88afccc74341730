package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oddsmux/oddsmux/internal/domain"
)

const canonicalTTL = 5 * time.Minute

// MarketCache implements domain.MarketCache using JSON-serialised canonical
// markets stored at "canonical:{slug}". The sync pipeline writes through on
// every canonical change, so the read API usually avoids Postgres entirely.
type MarketCache struct {
	rdb *redis.Client
}

// NewMarketCache creates a MarketCache backed by the given Client.
func NewMarketCache(c *Client) *MarketCache {
	return &MarketCache{rdb: c.Underlying()}
}

func canonicalKey(slug string) string { return "canonical:" + slug }

// Set stores a canonical market with a short TTL.
func (mc *MarketCache) Set(ctx context.Context, m domain.CanonicalMarket) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("redis: marshal canonical market %s: %w", m.Slug, err)
	}

	if err := mc.rdb.Set(ctx, canonicalKey(m.Slug), data, canonicalTTL).Err(); err != nil {
		return fmt.Errorf("redis: set canonical market %s: %w", m.Slug, err)
	}
	return nil
}

// GetBySlug retrieves a canonical market from the cache. Returns
// domain.ErrNotFound when the slug is not cached.
func (mc *MarketCache) GetBySlug(ctx context.Context, slug string) (domain.CanonicalMarket, error) {
	data, err := mc.rdb.Get(ctx, canonicalKey(slug)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.CanonicalMarket{}, domain.ErrNotFound
		}
		return domain.CanonicalMarket{}, fmt.Errorf("redis: get canonical market %s: %w", slug, err)
	}

	var m domain.CanonicalMarket
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.CanonicalMarket{}, fmt.Errorf("redis: unmarshal canonical market %s: %w", slug, err)
	}
	return m, nil
}

// Invalidate drops a canonical market from the cache.
func (mc *MarketCache) Invalidate(ctx context.Context, slug string) error {
	if err := mc.rdb.Del(ctx, canonicalKey(slug)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate canonical market %s: %w", slug, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.MarketCache = (*MarketCache)(nil)
