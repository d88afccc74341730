package app

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	s3blob "github.com/oddsmux/oddsmux/internal/blob/s3"
	"github.com/oddsmux/oddsmux/internal/cache/redis"
	"github.com/oddsmux/oddsmux/internal/chain"
	"github.com/oddsmux/oddsmux/internal/config"
	"github.com/oddsmux/oddsmux/internal/domain"
	"github.com/oddsmux/oddsmux/internal/notify"
	"github.com/oddsmux/oddsmux/internal/scan"
	"github.com/oddsmux/oddsmux/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	VenueConfigs     domain.VenueConfigStore
	VenueMarkets     domain.VenueMarketStore
	CanonicalMarkets domain.CanonicalMarketStore
	Snapshots        domain.PriceSnapshotStore
	SyncLog          domain.SyncLogStore
	Audit            domain.AuditStore

	// Caches
	PriceCache  domain.PriceCache
	MarketCache domain.MarketCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager

	// Blob storage (nil unless archival is enabled)
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	// On-chain scanning (nil unless scanning is enabled)
	Scanner *scan.Scanner

	// Notifications
	Notifier *notify.Notifier

	// Raw clients, kept for health checks
	Postgres *postgres.Client
	Redis    *redis.Client
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)
	deps.Postgres = pgClient

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	snapshotStore := postgres.NewPriceSnapshotStore(pool)
	deps.VenueConfigs = postgres.NewVenueConfigStore(pool)
	deps.VenueMarkets = postgres.NewVenueMarketStore(pool)
	deps.CanonicalMarkets = postgres.NewCanonicalMarketStore(pool)
	deps.Snapshots = snapshotStore
	deps.SyncLog = postgres.NewSyncLogStore(pool)
	deps.Audit = postgres.NewAuditStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })
	deps.Redis = redisClient

	deps.PriceCache = redis.NewPriceCache(redisClient)
	deps.MarketCache = redis.NewMarketCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)

	// --- S3 blob storage (only when archival is enabled) ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.BlobReader, snapshotStore, deps.Audit)
	}

	// --- On-chain balance scanning ---
	if cfg.Scan.Enabled {
		registry := chain.NewRegistry(scanEndpoints(cfg.Scan.RPCURLs, logger))
		closers = append(closers, registry.Close)
		deps.Scanner = scan.NewScanner(registry, logger)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

// scanEndpoints overlays configured RPC URLs on the built-in chain
// endpoints. Overrides are keyed by decimal chain ID; keys outside the
// built-in allow-list are ignored because unsupported chains stay
// unsupported no matter what URL they point at.
func scanEndpoints(overrides map[string]string, logger *slog.Logger) []chain.Endpoint {
	endpoints := chain.DefaultEndpoints()
	for key, url := range overrides {
		chainID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			logger.Warn("scan: ignoring rpc_urls entry with non-numeric chain id", slog.String("key", key))
			continue
		}
		found := false
		for i := range endpoints {
			if endpoints[i].ChainID == chainID {
				endpoints[i].RPCURL = url
				found = true
				break
			}
		}
		if !found {
			logger.Warn("scan: ignoring rpc_urls entry for unsupported chain", slog.Int64("chain_id", chainID))
		}
	}
	return endpoints
}
