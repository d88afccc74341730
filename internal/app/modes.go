package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oddsmux/oddsmux/internal/config"
	"github.com/oddsmux/oddsmux/internal/crypto"
	"github.com/oddsmux/oddsmux/internal/pipeline"
	"github.com/oddsmux/oddsmux/internal/server"
	"github.com/oddsmux/oddsmux/internal/server/handler"
	"github.com/oddsmux/oddsmux/internal/venue"
	"github.com/oddsmux/oddsmux/internal/venue/kalshi"
	"github.com/oddsmux/oddsmux/internal/venue/limitless"
	"github.com/oddsmux/oddsmux/internal/venue/manifold"
	"github.com/oddsmux/oddsmux/internal/venue/polymarket"
)

// FullMode runs the complete engine: sync loops, retention cron, and the
// HTTP API in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	sched, err := a.buildEngine(deps)
	if err != nil {
		return fmt.Errorf("full mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.Scheduler.Enabled {
		sched.Start()
	} else {
		a.logger.InfoContext(ctx, "scheduler.enabled is false; sync loops wait for a manual start")
	}
	g.Go(func() error {
		<-ctx.Done()
		sched.Stop()
		return ctx.Err()
	})

	if a.cfg.Archive.Enabled && deps.Archiver != nil {
		a.startArchiver(ctx, g, deps)
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, sched)
	}

	return g.Wait()
}

// ServerMode serves the HTTP API over a constructed but stopped scheduler,
// so an operator can drive syncs by hand. The loops start only on
// POST /api/scheduler/start.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	sched, err := a.buildEngine(deps)
	if err != nil {
		return fmt.Errorf("server mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		sched.Stop()
		return ctx.Err()
	})

	if !a.cfg.Server.Enabled {
		a.logger.WarnContext(ctx, "server.enabled is false, but server mode serves the API by design")
	}
	a.startHTTPServer(ctx, g, deps, sched)

	return g.Wait()
}

// SyncMode runs the sync loops and the retention cron without the HTTP
// API. Suitable for a headless worker next to a separate server-mode
// process.
func (a *App) SyncMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting sync mode")

	sched, err := a.buildEngine(deps)
	if err != nil {
		return fmt.Errorf("sync mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	if !a.cfg.Scheduler.Enabled {
		a.logger.WarnContext(ctx, "scheduler.enabled is false, but sync mode runs the loops by design")
	}
	sched.Start()
	g.Go(func() error {
		<-ctx.Done()
		sched.Stop()
		return ctx.Err()
	})

	if a.cfg.Archive.Enabled && deps.Archiver != nil {
		a.startArchiver(ctx, g, deps)
	}

	return g.Wait()
}

// OneshotMode runs one market sync followed by one price sync and exits.
// The exit status reflects the outcome, which makes it usable from
// external cron or CI.
func (a *App) OneshotMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting oneshot sync")

	sched, err := a.buildEngine(deps)
	if err != nil {
		return fmt.Errorf("oneshot: %w", err)
	}

	var failures []string
	if res := sched.RunMarketSync(ctx); res == nil {
		failures = append(failures, "market sync did not run")
	} else if !res.Success {
		failures = append(failures, fmt.Sprintf("market sync finished with %d error(s)", len(res.Errors)))
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if res := sched.RunPriceSync(ctx); res == nil {
		failures = append(failures, "price sync did not run")
	} else if !res.Success {
		failures = append(failures, fmt.Sprintf("price sync finished with %d error(s)", len(res.Errors)))
	}

	if len(failures) > 0 {
		return fmt.Errorf("oneshot: %s", strings.Join(failures, "; "))
	}
	a.logger.InfoContext(ctx, "oneshot sync complete")
	return nil
}

// buildEngine constructs the shared reconciler, one sync adapter per
// enabled venue in declared order, and the scheduler over them.
func (a *App) buildEngine(deps *Dependencies) (*pipeline.Scheduler, error) {
	rec := pipeline.NewReconciler(deps.VenueMarkets, deps.CanonicalMarkets, deps.Snapshots, deps.MarketCache, a.logger)

	var adapters []*pipeline.Adapter
	for _, name := range a.cfg.Venues.Order {
		vc, ok := a.cfg.Venues.Venue(name)
		if !ok || !vc.Enabled {
			continue
		}
		client, err := a.buildVenueClient(name, vc)
		if err != nil {
			return nil, fmt.Errorf("venue %s: %w", name, err)
		}
		adapters = append(adapters, pipeline.NewAdapter(
			client,
			venueProfile(name, vc),
			rec,
			deps.VenueConfigs,
			deps.VenueMarkets,
			deps.SyncLog,
			deps.PriceCache,
			a.logger,
		))
	}
	if len(adapters) == 0 {
		return nil, errors.New("no venues enabled")
	}

	return pipeline.NewScheduler(adapters, deps.SyncLog, deps.Notifier, pipeline.SchedulerConfig{
		MarketSyncInterval: a.cfg.Scheduler.MarketSyncInterval.Duration,
		PriceSyncInterval:  a.cfg.Scheduler.PriceSyncInterval.Duration,
		SyncOnStartup:      a.cfg.Scheduler.SyncOnStartup,
	}, a.logger), nil
}

// buildVenueClient constructs the API client for one venue. Only Kalshi
// carries a credential; it may arrive raw from the environment or sealed
// on disk.
func (a *App) buildVenueClient(name string, vc config.VenueConfig) (venue.Client, error) {
	switch name {
	case "polymarket":
		return polymarket.NewClient(vc.BaseURL), nil
	case "kalshi":
		apiKey, err := crypto.LoadSecret(crypto.SecretConfig{
			Raw:        vc.APIKey,
			SealedPath: vc.SealedKeyPath,
			Passphrase: a.cfg.Keystore.Passphrase,
		})
		if err != nil {
			return nil, fmt.Errorf("load api key: %w", err)
		}
		return kalshi.NewClient(vc.BaseURL, apiKey), nil
	case "limitless":
		return limitless.NewClient(vc.BaseURL), nil
	case "manifold":
		return manifold.NewClient(vc.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown venue %q", name)
	}
}

// venueProfile maps one venue's config section onto the adapter profile.
func venueProfile(name string, vc config.VenueConfig) venue.Profile {
	var chainID *int64
	if vc.ChainID != 0 {
		id := vc.ChainID
		chainID = &id
	}
	return venue.Profile{
		Slug:        name,
		DisplayName: vc.DisplayName,
		BaseURL:     vc.BaseURL,
		ChainID:     chainID,
		BatchSize:   vc.BatchSize,
		MaxPages:    vc.MaxPages,
		ActiveOnly:  vc.ActiveOnly,
		PageDelay:   vc.PageDelay.Duration,
		PriceCap:    vc.PriceCap,
	}
}

// startArchiver adds the snapshot retention cron to the errgroup.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	arch := pipeline.NewArchiver(deps.Archiver, deps.LockManager, a.cfg.Archive.RetentionDays, a.logger)
	cronExpr := a.cfg.Archive.Cron
	g.Go(func() error {
		return arch.RunCron(ctx, cronExpr)
	})
}

// startHTTPServer adds the API server and its shutdown watcher to the
// errgroup. The scan and archive routes are registered only when their
// backends are wired.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, sched *pipeline.Scheduler) {
	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(deps.Postgres, deps.Redis, a.logger),
		Status:    handler.NewStatusHandler(sched, deps.VenueConfigs, a.logger),
		Scheduler: handler.NewSchedulerHandler(sched, a.logger),
		Sync:      handler.NewSyncHandler(sched, deps.SyncLog, a.logger),
		Markets:   handler.NewMarketHandler(deps.CanonicalMarkets, deps.MarketCache, a.logger),
		Venues:    handler.NewVenueHandler(deps.VenueConfigs, deps.VenueMarkets, a.logger),
	}
	if deps.Scanner != nil {
		handlers.Scan = handler.NewScanHandler(deps.Scanner, a.cfg.Scan.MinBalance, a.logger)
	}
	if deps.BlobReader != nil {
		handlers.Archives = handler.NewArchiveHandler(deps.BlobReader, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, deps.RateLimiter, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "http server listening", slog.Int("port", a.cfg.Server.Port))
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
